package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/emilythestrangee/forum/backend/internal/apperrors"
	"github.com/emilythestrangee/forum/backend/internal/middleware"
	"github.com/emilythestrangee/forum/backend/internal/voting"
)

// VoteApplier is the vote ledger as seen by the HTTP layer.
type VoteApplier interface {
	ApplyVote(ctx context.Context, userID int, target voting.Target, value int) (voting.Result, error)
}

// Ranking is an optional score index used for the front page.
type Ranking interface {
	TopPosts(ctx context.Context, limit int) ([]int, error)
	SetScore(ctx context.Context, target voting.Target, score int) error
	Remove(ctx context.Context, target voting.Target) error
}

// Handler combines all handler types
type Handler struct {
	Auth      *AuthHandler
	Community *CommunityHandler
	Post      *PostHandler
	Comment   *CommentHandler
	User      *UserHandler
	Vote      *VoteHandler
}

type Deps struct {
	DB        *gorm.DB
	Votes     VoteApplier
	Ranking   Ranking // nil disables the cached ranking
	JWTSecret []byte
	TokenTTL  time.Duration
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(d Deps) *Handler {
	return &Handler{
		Auth:      NewAuthHandler(d.DB, d.JWTSecret, d.TokenTTL),
		Community: NewCommunityHandler(d.DB),
		Post:      NewPostHandler(d.DB, d.Ranking),
		Comment:   NewCommentHandler(d.DB),
		User:      NewUserHandler(d.DB),
		Vote:      NewVoteHandler(d.Votes),
	}
}

func extractUserID(c *gin.Context) (int, bool) {
	raw, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := raw.(int)
	return id, ok && id > 0
}

// respondError writes err as a JSON error body with its mapped status.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	if appErr.Type == apperrors.TypeInternal || appErr.Type == apperrors.TypeUnavailable {
		_ = c.Error(err)
		requestLogger(c).WithError(err).Error("Request error")
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus(), appErr.ToResponse())
}

func requestLogger(c *gin.Context) *log.Entry {
	return log.WithField("request_id", c.GetString(middleware.RequestIDKey))
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
