package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/forum/backend/internal/apperrors"
	"github.com/emilythestrangee/forum/backend/internal/models"
)

// listingLimit caps every post listing.
const listingLimit = 100

var communityNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

type CommunityHandler struct {
	db *gorm.DB
}

func NewCommunityHandler(db *gorm.DB) *CommunityHandler {
	return &CommunityHandler{db: db}
}

// CreateCommunity creates a new community (PROTECTED - requires authentication)
func (h *CommunityHandler) CreateCommunity(c *gin.Context) {
	var input models.CreateCommunityRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.Validation(err.Error()))
		return
	}

	name := strings.ToLower(strings.TrimSpace(input.Name))
	if !communityNamePattern.MatchString(name) {
		respondError(c, apperrors.Validation("Name must be 1-32 lowercase letters, digits, '-' or '_'"))
		return
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		respondError(c, apperrors.Validation("Title is required"))
		return
	}

	community := models.Community{
		Name:        name,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
	}
	result := h.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&community)
	if result.Error != nil {
		respondError(c, apperrors.Internal("Failed to create community", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, apperrors.Conflict("Community already exists"))
		return
	}

	c.JSON(http.StatusCreated, community)
}

// ListCommunities returns every community ordered by name
func (h *CommunityHandler) ListCommunities(c *gin.Context) {
	communities := []models.Community{}
	if err := h.db.Order("name").Find(&communities).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to fetch communities", err))
		return
	}

	c.JSON(http.StatusOK, communities)
}

// GetCommunity returns a community and its top posts
func (h *CommunityHandler) GetCommunity(c *gin.Context) {
	community, err := h.findCommunity(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	posts := []models.Post{}
	err = h.db.Preload("Author").Preload("Community").
		Where("community_id = ?", community.ID).
		Order("score desc, created_at desc").
		Limit(listingLimit).
		Find(&posts).Error
	if err != nil {
		respondError(c, apperrors.Internal("Failed to fetch posts", err))
		return
	}

	var subscribers int64
	if err := h.db.Model(&models.Subscription{}).Where("community_id = ?", community.ID).Count(&subscribers).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to count subscribers", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"community":   community,
		"posts":       posts,
		"subscribers": subscribers,
	})
}

// Subscribe joins the current user to a community; repeating it is a no-op
func (h *CommunityHandler) Subscribe(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("User not authenticated"))
		return
	}

	community, err := h.findCommunity(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	sub := models.Subscription{UserID: userID, CommunityID: community.ID}
	err = h.db.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&sub).Error
	if err != nil {
		respondError(c, apperrors.Internal("Failed to subscribe", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Subscribed", "community": community.Name})
}

// Unsubscribe removes the current user from a community
func (h *CommunityHandler) Unsubscribe(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("User not authenticated"))
		return
	}

	community, err := h.findCommunity(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	err = h.db.Where("user_id = ? AND community_id = ?", userID, community.ID).
		Delete(&models.Subscription{}).Error
	if err != nil {
		respondError(c, apperrors.Internal("Failed to unsubscribe", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unsubscribed", "community": community.Name})
}

func (h *CommunityHandler) findCommunity(name string) (models.Community, error) {
	var community models.Community
	err := h.db.Where("name = ?", strings.ToLower(name)).First(&community).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return community, apperrors.NotFound("Community not found")
	}
	if err != nil {
		return community, apperrors.Internal("Failed to fetch community", err)
	}
	return community, nil
}
