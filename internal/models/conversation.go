package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a chat thread. Direct conversations have exactly two
// participants; the counterpart is resolved client-side from the membership
// relation and never stored.
type Conversation struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Title     string    `gorm:"type:text" json:"title"`
	IsGroup   bool      `gorm:"default:false" json:"isGroup"`
	AvatarURL string    `gorm:"type:text" json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Resolved counterpart profile for direct conversations (not a column)
	Counterpart *ProfileView `gorm:"-" json:"counterpart,omitempty"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// ConversationParticipant tracks who is in a conversation
type ConversationParticipant struct {
	ConversationID string    `gorm:"primaryKey;type:text" json:"conversationId"`
	UserID         string    `gorm:"primaryKey;type:text" json:"userId"`
	JoinedAt       time.Time `json:"joinedAt"`
}
