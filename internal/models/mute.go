package models

import "time"

// MutedUser is a per-owner block-list entry. Purely a view filter: muting
// never deletes the muted user's messages.
type MutedUser struct {
	UserID      string    `gorm:"primaryKey;type:text" json:"userId"`
	MutedUserID string    `gorm:"primaryKey;type:text" json:"mutedUserId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (MutedUser) TableName() string {
	return "muted_users"
}
