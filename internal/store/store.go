// Package store is the client's access layer to the authoritative remote
// store. The sync core only ever talks to the Store interface; the gorm
// implementation below is the production Postgres binding.
package store

import (
	"context"

	"github.com/pushp314/chatsync/internal/models"
)

// Store is the narrow contract the sync core consumes. All reads return the
// remote truth at call time; all writes are single-attempt, retry policy is
// the caller's concern.
type Store interface {
	// Conversations
	UserConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	// DirectCounterparts resolves, in one query, the sole other participant
	// of each given conversation from excludeUserID's point of view.
	DirectCounterparts(ctx context.Context, conversationIDs []string, excludeUserID string) (map[string]string, error)
	CreateConversation(ctx context.Context, title string, isGroup bool, participantIDs []string) (*models.Conversation, error)
	FindDirectConversation(ctx context.Context, userA, userB string) (*models.Conversation, error)

	// Profiles. The batched lookup returns the restricted projection only.
	Profiles(ctx context.Context, userIDs []string) ([]models.ProfileView, error)
	SelfProfile(ctx context.Context, userID string) (*models.Profile, error)
	SaveCustomization(ctx context.Context, userID string, c models.Customization) error

	// Messages
	ConversationMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg *models.Message) error

	// Read receipts (insert-only, idempotent)
	InsertReadReceipt(ctx context.Context, messageID, userID string) error
	ConversationReadReceipts(ctx context.Context, conversationID string) ([]models.MessageReadReceipt, error)

	// Reactions
	InsertReaction(ctx context.Context, messageID, userID, emoji string) error
	DeleteReaction(ctx context.Context, messageID, userID, emoji string) error
	ConversationReactions(ctx context.Context, conversationID string) ([]models.MessageReaction, error)

	// Mutes
	MutedUserIDs(ctx context.Context, ownerID string) ([]string, error)
	MuteUser(ctx context.Context, ownerID, targetID string) error
	UnmuteUser(ctx context.Context, ownerID, targetID string) error
}
