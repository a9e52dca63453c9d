package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/forum/backend/internal/apperrors"
	"github.com/emilythestrangee/forum/backend/internal/models"
	"github.com/emilythestrangee/forum/backend/internal/voting"
)

type CommentHandler struct {
	db *gorm.DB
}

func NewCommentHandler(db *gorm.DB) *CommentHandler {
	return &CommentHandler{db: db}
}

// buildThread nests comments under their parents. Input order is kept within
// each level; a comment whose parent is absent becomes a root.
func buildThread(comments []models.Comment) []*models.Comment {
	nodes := make(map[int]*models.Comment, len(comments))
	for i := range comments {
		comments[i].Replies = []*models.Comment{}
		nodes[comments[i].ID] = &comments[i]
	}

	roots := []*models.Comment{}
	for i := range comments {
		node := &comments[i]
		if node.ParentID != nil {
			if parent, ok := nodes[*node.ParentID]; ok && parent != node {
				parent.Replies = append(parent.Replies, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// GetComments returns the comment thread of a post, oldest first
func (h *CommentHandler) GetComments(c *gin.Context) {
	postID, err := h.postExists(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var comments []models.Comment
	err = h.db.Where("post_id = ?", postID).Preload("Author").Order("created_at, id").Find(&comments).Error
	if err != nil {
		respondError(c, apperrors.Internal("Failed to fetch comments", err))
		return
	}

	c.JSON(http.StatusOK, buildThread(comments))
}

// CreateComment adds a comment, optionally as a reply (PROTECTED - requires authentication)
func (h *CommentHandler) CreateComment(c *gin.Context) {
	authorID, ok := extractUserID(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("User not authenticated"))
		return
	}

	postID, err := h.postExists(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var input models.CreateCommentRequest
	if err := c.ShouldBind(&input); err != nil {
		respondError(c, apperrors.Validation(err.Error()))
		return
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		respondError(c, apperrors.InvalidFields("Invalid comment", map[string]string{"body": "Comment cannot be empty."}))
		return
	}

	// A parent from another post is dropped rather than rejected.
	var parentID *int
	if input.ParentID != nil {
		var n int64
		err = h.db.Model(&models.Comment{}).Where("id = ? AND post_id = ?", *input.ParentID, postID).Count(&n).Error
		if err != nil {
			respondError(c, apperrors.Internal("Failed to check parent comment", err))
			return
		}
		if n > 0 {
			parentID = input.ParentID
		}
	}

	comment := models.Comment{
		PostID:   postID,
		AuthorID: authorID,
		ParentID: parentID,
		Body:     body,
	}
	if err := h.db.Omit(clause.Associations).Create(&comment).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to create comment", err))
		return
	}

	// Reload with author information
	if err := h.db.Preload("Author").First(&comment, comment.ID).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to load comment", err))
		return
	}
	comment.Replies = []*models.Comment{}

	c.JSON(http.StatusCreated, comment)
}

// DeleteComment deletes a comment, its replies and their votes (owner only)
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	authorID, ok := extractUserID(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("User not authenticated"))
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, apperrors.NotFound("Comment not found"))
		return
	}

	var comment models.Comment
	if err := h.db.First(&comment, id).Error; err != nil {
		if isNotFound(err) {
			respondError(c, apperrors.NotFound("Comment not found"))
			return
		}
		respondError(c, apperrors.Internal("Failed to fetch comment", err))
		return
	}

	if comment.AuthorID != authorID {
		respondError(c, apperrors.Forbidden("You can only delete your own comments"))
		return
	}

	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var siblings []models.Comment
		if err := tx.Select("id", "parent_id").Where("post_id = ?", comment.PostID).Find(&siblings).Error; err != nil {
			return err
		}

		// Replies go with the foreign key cascade; their votes have to be removed here.
		ids := subtreeIDs(siblings, comment.ID)
		err := tx.Where("target_type = ? AND target_id IN ?", voting.KindComment.String(), ids).
			Delete(&models.Vote{}).Error
		if err != nil {
			return err
		}
		return tx.Delete(&models.Comment{ID: comment.ID}).Error
	})
	if err != nil {
		respondError(c, apperrors.Internal("Failed to delete comment", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

// subtreeIDs returns root and the ids of every comment below it.
func subtreeIDs(comments []models.Comment, root int) []int {
	children := make(map[int][]int)
	for _, cm := range comments {
		if cm.ParentID != nil {
			children[*cm.ParentID] = append(children[*cm.ParentID], cm.ID)
		}
	}

	ids := []int{root}
	for i := 0; i < len(ids); i++ {
		ids = append(ids, children[ids[i]]...)
	}
	return ids
}

func (h *CommentHandler) postExists(rawID string) (int, error) {
	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		return 0, apperrors.NotFound("Post not found")
	}

	var n int64
	if err := h.db.Model(&models.Post{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return 0, apperrors.Internal("Failed to fetch post", err)
	}
	if n == 0 {
		return 0, apperrors.NotFound("Post not found")
	}
	return id, nil
}
