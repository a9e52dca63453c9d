package handlers

import (
	"cmp"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/forum/backend/internal/apperrors"
	"github.com/emilythestrangee/forum/backend/internal/models"
	"github.com/emilythestrangee/forum/backend/internal/voting"
)

const maxTitleLength = 300

type PostHandler struct {
	db      *gorm.DB
	ranking Ranking
}

func NewPostHandler(db *gorm.DB, ranking Ranking) *PostHandler {
	return &PostHandler{db: db, ranking: ranking}
}

// validatePost trims every field of in and returns the rejected fields.
func validatePost(in *models.CreatePostRequest) map[string]string {
	in.PostType = strings.ToLower(strings.TrimSpace(in.PostType))
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	in.URL = strings.TrimSpace(in.URL)

	fields := map[string]string{}

	if in.Title == "" {
		fields["title"] = "Title is required."
	} else if utf8.RuneCountInString(in.Title) > maxTitleLength {
		fields["title"] = "Title must be at most 300 characters."
	}

	switch in.PostType {
	case models.PostTypeLink:
		if in.URL == "" {
			fields["url"] = "URL is required for link posts."
		}
		if in.Body != "" {
			fields["body"] = "Body must be empty for link posts."
		}
	case models.PostTypeText:
		if in.URL != "" {
			fields["url"] = "URL must be empty for text posts."
		}
	case models.PostTypeImage:
		if in.URL == "" {
			fields["url"] = "URL is required for image posts."
		}
	default:
		fields["post_type"] = "Post type must be one of text, link or image."
	}

	if _, bad := fields["url"]; !bad && in.URL != "" && !isHTTPURL(in.URL) {
		fields["url"] = "URL must be an absolute http or https address."
	}

	return fields
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// GetPosts returns the front page: the highest scored posts across all communities
func (h *PostHandler) GetPosts(c *gin.Context) {
	posts, err := h.frontPage(c)
	if err != nil {
		respondError(c, apperrors.Internal("Failed to fetch posts", err))
		return
	}

	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) frontPage(c *gin.Context) ([]models.Post, error) {
	posts := []models.Post{}
	query := h.db.Preload("Author").Preload("Community")

	if h.ranking != nil {
		ids, err := h.ranking.TopPosts(c.Request.Context(), listingLimit)
		if err == nil {
			if len(ids) == 0 {
				return posts, nil
			}
			if err := query.Where("id IN ?", ids).Find(&posts).Error; err != nil {
				return nil, err
			}
			// The ranking only picks the candidates; the database score decides the order.
			slices.SortStableFunc(posts, func(a, b models.Post) int {
				if a.Score != b.Score {
					return cmp.Compare(b.Score, a.Score)
				}
				return b.CreatedAt.Compare(a.CreatedAt)
			})
			return posts, nil
		}
		requestLogger(c).WithError(err).Warn("Post ranking unavailable, reading from database")
	}

	err := query.Order("score desc, created_at desc").Limit(listingLimit).Find(&posts).Error
	return posts, err
}

// GetPost returns a single post by ID
func (h *PostHandler) GetPost(c *gin.Context) {
	post, err := h.findPost(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, post)
}

// CreatePost submits a new post to a community (PROTECTED - requires authentication)
func (h *PostHandler) CreatePost(c *gin.Context) {
	authorID, ok := extractUserID(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("User not authenticated"))
		return
	}

	var community models.Community
	if err := h.db.Where("name = ?", strings.ToLower(c.Param("name"))).First(&community).Error; err != nil {
		if isNotFound(err) {
			respondError(c, apperrors.NotFound("Community not found"))
			return
		}
		respondError(c, apperrors.Internal("Failed to fetch community", err))
		return
	}

	var input models.CreatePostRequest
	if err := c.ShouldBind(&input); err != nil {
		respondError(c, apperrors.Validation(err.Error()))
		return
	}
	if fields := validatePost(&input); len(fields) > 0 {
		respondError(c, apperrors.InvalidFields("Invalid post", fields))
		return
	}

	post := models.Post{
		CommunityID: community.ID,
		AuthorID:    authorID,
		PostType:    input.PostType,
		Title:       input.Title,
		Body:        input.Body,
		URL:         input.URL,
	}
	if err := h.db.Omit(clause.Associations).Create(&post).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to create post", err))
		return
	}

	if h.ranking != nil {
		if err := h.ranking.SetScore(c.Request.Context(), voting.PostTarget(post.ID), post.Score); err != nil {
			requestLogger(c).WithError(err).WithField("post_id", post.ID).Warn("Failed to rank new post")
		}
	}

	// Reload with author and community
	created, err := h.findPost(strconv.Itoa(post.ID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// UpdatePost edits the title, body or url of a post (PROTECTED - requires ownership)
func (h *PostHandler) UpdatePost(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("User not authenticated"))
		return
	}

	post, err := h.findPost(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if post.AuthorID != userID {
		respondError(c, apperrors.Forbidden("You can only edit your own posts"))
		return
	}

	input := models.CreatePostRequest{
		PostType: post.PostType,
		Title:    post.Title,
		Body:     post.Body,
		URL:      post.URL,
	}
	if err := c.ShouldBind(&input); err != nil {
		respondError(c, apperrors.Validation(err.Error()))
		return
	}
	// The type of a post is fixed at submission.
	input.PostType = post.PostType
	if fields := validatePost(&input); len(fields) > 0 {
		respondError(c, apperrors.InvalidFields("Invalid post", fields))
		return
	}

	err = h.db.Model(&models.Post{ID: post.ID}).
		Select("title", "body", "url").
		Updates(models.Post{Title: input.Title, Body: input.Body, URL: input.URL}).Error
	if err != nil {
		respondError(c, apperrors.Internal("Failed to update post", err))
		return
	}

	updated, err := h.findPost(strconv.Itoa(post.ID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeletePost deletes a post with its comments and votes (PROTECTED - requires ownership)
func (h *PostHandler) DeletePost(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("User not authenticated"))
		return
	}

	post, err := h.findPost(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if post.AuthorID != userID {
		respondError(c, apperrors.Forbidden("You can only delete your own posts"))
		return
	}

	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		// Votes reference their target without a foreign key, so they are not cascaded.
		comments := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", post.ID)
		err := tx.Where("(target_type = ? AND target_id = ?) OR (target_type = ? AND target_id IN (?))",
			voting.KindPost.String(), post.ID, voting.KindComment.String(), comments).
			Delete(&models.Vote{}).Error
		if err != nil {
			return err
		}
		return tx.Delete(&models.Post{ID: post.ID}).Error
	})
	if err != nil {
		respondError(c, apperrors.Internal("Failed to delete post", err))
		return
	}

	if h.ranking != nil {
		if err := h.ranking.Remove(c.Request.Context(), voting.PostTarget(post.ID)); err != nil {
			requestLogger(c).WithError(err).WithField("post_id", post.ID).Warn("Failed to unrank deleted post")
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

func (h *PostHandler) findPost(rawID string) (models.Post, error) {
	var post models.Post
	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		return post, apperrors.NotFound("Post not found")
	}

	err = h.db.Preload("Author").Preload("Community").First(&post, id).Error
	if isNotFound(err) {
		return post, apperrors.NotFound("Post not found")
	}
	if err != nil {
		return post, apperrors.Internal("Failed to fetch post", err)
	}
	return post, nil
}
