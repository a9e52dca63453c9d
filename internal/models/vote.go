package models

import "time"

// Vote is one user's current stance on one post or comment. TargetType and
// TargetID form a polymorphic reference with no foreign key; the unique
// index on (user_id, target_type, target_id) is what the vote ledger relies on.
type Vote struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	UserID     int       `gorm:"not null;uniqueIndex:idx_votes_user_target,priority:1" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	TargetType string    `gorm:"size:7;not null;uniqueIndex:idx_votes_user_target,priority:2;index:idx_votes_target,priority:1" json:"target_type"`
	TargetID   int       `gorm:"not null;uniqueIndex:idx_votes_user_target,priority:3;index:idx_votes_target,priority:2" json:"target_id"`
	Value      int       `gorm:"type:smallint;not null;check:chk_votes_value,value IN (-1, 1)" json:"value"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
