package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message types
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// Message is a durable chat message. Rows persisted by the store always
// carry a server-assigned id; entries held only in the local timeline may
// instead carry a temporary client-assigned id (utils.IsTempID) until the
// change feed confirms them.
type Message struct {
	ID             string `gorm:"primaryKey;type:text" json:"id"`
	ConversationID string `gorm:"index;type:text;not null" json:"conversationId"`
	SenderID       string `gorm:"index;type:text;not null" json:"senderId"`
	Content        string `gorm:"type:text" json:"content"`

	// text, image or file
	Type    string `gorm:"type:text;default:'text';not null" json:"type"`
	FileURL string `gorm:"type:text" json:"fileUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	// Correlation token: client-generated UUID set at send time and carried
	// through to the change-feed event, so an inbound insert can be matched
	// deterministically against the optimistic entry that produced it.
	ClientMessageID *string `gorm:"index;type:text" json:"clientMessageId,omitempty"`

	// Denormalized sender profile, filled in asynchronously (not a column)
	Sender *ProfileView `gorm:"-" json:"sender,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}
