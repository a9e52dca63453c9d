package models

import "time"

// Community is a named group that posts are submitted to.
type Community struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:32;uniqueIndex;not null" json:"name"`
	Title       string    `gorm:"size:80;not null" json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Subscription links a user to a community they joined.
type Subscription struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	UserID      int       `gorm:"not null;uniqueIndex:idx_subscriptions_user_community" json:"user_id"`
	CommunityID int       `gorm:"not null;uniqueIndex:idx_subscriptions_user_community" json:"community_id"`
	User        User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Community   Community `gorm:"foreignKey:CommunityID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateCommunityRequest struct {
	Name        string `json:"name" binding:"required"`
	Title       string `json:"title" binding:"required,max=80"`
	Description string `json:"description"`
}
