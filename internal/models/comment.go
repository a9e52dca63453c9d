package models

import "time"

type Comment struct {
	ID        int        `gorm:"primaryKey" json:"id"`
	PostID    int        `gorm:"not null;index" json:"post_id"`
	Post      Post       `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	AuthorID  int        `gorm:"not null" json:"author_id"`
	Author    User       `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	ParentID  *int       `gorm:"index" json:"parent_id,omitempty"`
	Parent    *Comment   `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	Body      string     `gorm:"not null" json:"body"`
	Score     int        `gorm:"not null;default:0" json:"score"`
	Replies   []*Comment `gorm:"-" json:"replies"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CreateCommentRequest struct {
	Body     string `json:"body" form:"body"`
	ParentID *int   `json:"parent_id,omitempty" form:"parent_id"`
}
