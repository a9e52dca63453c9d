package models

import "time"

const (
	PostTypeText  = "text"
	PostTypeLink  = "link"
	PostTypeImage = "image"
)

type Post struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	CommunityID int       `gorm:"not null;index:idx_posts_community_created,priority:1" json:"community_id"`
	Community   Community `gorm:"foreignKey:CommunityID;constraint:OnDelete:CASCADE" json:"community"`
	AuthorID    int       `gorm:"not null" json:"author_id"`
	Author      User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	PostType    string    `gorm:"size:5;not null" json:"post_type"`
	Title       string    `gorm:"size:300;not null" json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	Score       int       `gorm:"not null;default:0;index" json:"score"`
	CreatedAt   time.Time `gorm:"index:idx_posts_community_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreatePostRequest struct {
	PostType string `json:"post_type" form:"post_type"`
	Title    string `json:"title" form:"title"`
	Body     string `json:"body" form:"body"`
	URL      string `json:"url" form:"url"`
}
