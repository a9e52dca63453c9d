package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/forum/backend/internal/apperrors"
	"github.com/emilythestrangee/forum/backend/internal/models"
)

const profilePostLimit = 25

type UserHandler struct {
	db *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// GetUserProfile returns a user's profile, recent posts and karma
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil || userID <= 0 {
		respondError(c, apperrors.NotFound("User not found"))
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		if isNotFound(err) {
			respondError(c, apperrors.NotFound("User not found"))
			return
		}
		respondError(c, apperrors.Internal("Failed to fetch user", err))
		return
	}

	// Get user's posts
	posts := []models.Post{}
	err = h.db.Where("author_id = ?", userID).Preload("Community").
		Order("created_at desc").Limit(profilePostLimit).Find(&posts).Error
	if err != nil {
		respondError(c, apperrors.Internal("Failed to fetch user posts", err))
		return
	}

	var postKarma, commentKarma int64
	err = h.db.Model(&models.Post{}).Where("author_id = ?", userID).Select("COALESCE(SUM(score), 0)").Scan(&postKarma).Error
	if err == nil {
		err = h.db.Model(&models.Comment{}).Where("author_id = ?", userID).Select("COALESCE(SUM(score), 0)").Scan(&commentKarma).Error
	}
	if err != nil {
		respondError(c, apperrors.Internal("Failed to compute karma", err))
		return
	}

	var subscriptions []string
	err = h.db.Model(&models.Subscription{}).
		Joins("JOIN communities ON communities.id = subscriptions.community_id").
		Where("subscriptions.user_id = ?", userID).
		Order("communities.name").
		Pluck("communities.name", &subscriptions).Error
	if err != nil {
		respondError(c, apperrors.Internal("Failed to fetch subscriptions", err))
		return
	}
	if subscriptions == nil {
		subscriptions = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":         user.ID,
			"username":   user.Username,
			"created_at": user.CreatedAt,
		},
		"posts":         posts,
		"post_karma":    postKarma,
		"comment_karma": commentKarma,
		"karma":         postKarma + commentKarma,
		"subscriptions": subscriptions,
	})
}
