package models

import "time"

// MessageReadReceipt marks a message as seen by a user.
// Insert-only and unique per (message, user).
type MessageReadReceipt struct {
	MessageID string `gorm:"primaryKey;type:text" json:"messageId"`
	UserID    string `gorm:"primaryKey;type:text" json:"userId"`
	// Denormalized from the message so feed consumers can filter by
	// conversation without a lookup
	ConversationID string    `gorm:"index;type:text" json:"conversationId"`
	ReadAt         time.Time `json:"readAt"`
}

func (MessageReadReceipt) TableName() string {
	return "message_read_receipts"
}
