// Command seed fills the database with demo users, communities and posts.
package main

import (
	"fmt"
	"math/rand/v2"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/emilythestrangee/forum/backend/internal/config"
	"github.com/emilythestrangee/forum/backend/internal/database"
	"github.com/emilythestrangee/forum/backend/internal/logging"
	"github.com/emilythestrangee/forum/backend/internal/models"
)

const (
	demoPassword = "pass12345!"
	demoPosts    = 30
)

var demoUsers = []models.User{
	{Username: "alice", Email: "alice@example.com"},
	{Username: "bob", Email: "bob@example.com"},
}

var demoCommunities = []models.Community{
	{Name: "news", Title: "News", Description: "Latest news"},
	{Name: "pics", Title: "Pics", Description: "Photos and images"},
	{Name: "tech", Title: "Tech", Description: "Technology discussions"},
}

var postTypes = []string{models.PostTypeText, models.PostTypeLink, models.PostTypeImage}

func seedUsers(db *gorm.DB) ([]models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing demo password: %w", err)
	}

	users := make([]models.User, 0, len(demoUsers))
	for _, tmpl := range demoUsers {
		user := tmpl
		result := db.Where(models.User{Username: tmpl.Username}).
			Attrs(models.User{Email: tmpl.Email}).
			FirstOrCreate(&user)
		if result.Error != nil {
			return nil, fmt.Errorf("seeding user %s: %w", tmpl.Username, result.Error)
		}
		if result.RowsAffected > 0 {
			log.WithField("username", user.Username).Info("Created user")
		}

		// The password is reset on every run so the demo login always works.
		if err := db.Model(&user).Update("password", string(hash)).Error; err != nil {
			return nil, fmt.Errorf("setting password for %s: %w", tmpl.Username, err)
		}
		users = append(users, user)
	}
	return users, nil
}

func seedCommunities(db *gorm.DB) ([]models.Community, error) {
	communities := make([]models.Community, 0, len(demoCommunities))
	for _, tmpl := range demoCommunities {
		community := tmpl
		result := db.Where(models.Community{Name: tmpl.Name}).
			Attrs(models.Community{Title: tmpl.Title, Description: tmpl.Description}).
			FirstOrCreate(&community)
		if result.Error != nil {
			return nil, fmt.Errorf("seeding community %s: %w", tmpl.Name, result.Error)
		}
		if result.RowsAffected > 0 {
			log.WithField("community", community.Name).Info("Created community")
		}
		communities = append(communities, community)
	}
	return communities, nil
}

// demoPost builds the i-th demo post. Link and image posts get a URL, text posts a body.
func demoPost(i int, community models.Community, author models.User, postType string) models.Post {
	post := models.Post{
		CommunityID: community.ID,
		AuthorID:    author.ID,
		PostType:    postType,
		Title:       fmt.Sprintf("Post %d", i+1),
		Score:       rand.IntN(101),
	}
	switch postType {
	case models.PostTypeText:
		post.Body = "Sample body"
	case models.PostTypeLink:
		post.URL = fmt.Sprintf("https://example.com/%d", i+1)
	case models.PostTypeImage:
		post.URL = fmt.Sprintf("https://example.com/%d.webp", i+1)
	}
	return post
}

func seedPosts(db *gorm.DB, users []models.User, communities []models.Community) ([]models.Post, error) {
	posts := make([]models.Post, 0, demoPosts)
	for i := 0; i < demoPosts; i++ {
		posts = append(posts, demoPost(i,
			communities[rand.IntN(len(communities))],
			users[rand.IntN(len(users))],
			postTypes[rand.IntN(len(postTypes))],
		))
	}

	if err := db.Omit("Community", "Author").Create(&posts).Error; err != nil {
		return nil, fmt.Errorf("seeding posts: %w", err)
	}
	return posts, nil
}

func main() {
	logging.Init("info", "text")

	db, err := database.Open(config.LoadDatabaseURL())
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	users, err := seedUsers(db.GetDB())
	if err != nil {
		log.WithError(err).Fatal("Failed to seed users")
	}
	communities, err := seedCommunities(db.GetDB())
	if err != nil {
		log.WithError(err).Fatal("Failed to seed communities")
	}
	posts, err := seedPosts(db.GetDB(), users, communities)
	if err != nil {
		log.WithError(err).Fatal("Failed to seed posts")
	}

	log.Infof("Created %d users, %d communities, and %d posts.", len(users), len(communities), len(posts))
}
