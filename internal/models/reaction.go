package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageReaction stores emoji reactions on messages.
// One reaction per emoji per user per message.
type MessageReaction struct {
	ID        string `gorm:"primaryKey;type:text" json:"id"`
	MessageID string `gorm:"uniqueIndex:idx_unique_reaction;type:text;not null" json:"messageId"`
	UserID    string `gorm:"uniqueIndex:idx_unique_reaction;type:text;not null" json:"userId"`
	Emoji     string `gorm:"uniqueIndex:idx_unique_reaction;type:text;not null" json:"emoji"`
	// Denormalized from the message so feed consumers can filter by
	// conversation without a lookup
	ConversationID string    `gorm:"index;type:text" json:"conversationId"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (r *MessageReaction) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// ReactionGroup is the display grouping of all reactions with the same emoji
// on one message
type ReactionGroup struct {
	Emoji          string   `json:"emoji"`
	Count          int      `json:"count"`
	Users          []string `json:"users"`
	HasCurrentUser bool     `json:"hasCurrentUser"`
}
