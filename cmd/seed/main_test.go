package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emilythestrangee/forum/backend/internal/models"
)

func TestDemoPost(t *testing.T) {
	community := models.Community{ID: 3, Name: "tech"}
	author := models.User{ID: 2, Username: "bob"}

	for _, postType := range postTypes {
		t.Run(postType, func(t *testing.T) {
			post := demoPost(4, community, author, postType)

			assert.Equal(t, "Post 5", post.Title)
			assert.Equal(t, 3, post.CommunityID)
			assert.Equal(t, 2, post.AuthorID)
			assert.GreaterOrEqual(t, post.Score, 0)
			assert.LessOrEqual(t, post.Score, 100)

			switch postType {
			case models.PostTypeText:
				assert.Equal(t, "Sample body", post.Body)
				assert.Empty(t, post.URL)
			default:
				assert.Empty(t, post.Body)
				assert.NotEmpty(t, post.URL)
			}
		})
	}
}
