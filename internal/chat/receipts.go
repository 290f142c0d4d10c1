package chat

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/pushp314/chatsync/internal/auth"
	"github.com/pushp314/chatsync/internal/models"
	"github.com/pushp314/chatsync/internal/realtime"
	"github.com/pushp314/chatsync/internal/store"
	"github.com/pushp314/chatsync/pkg/logger"
)

// Receipts caches durable per-(message, user) seen markers for the active
// conversation, kept live by the receipt change feed.
type Receipts struct {
	store   store.Store
	session *auth.Session

	mu sync.RWMutex
	// Conversation the cache is scoped to; feed events for any other
	// conversation are dropped so the cache stays bounded
	conversationID string
	// messageID -> set of users that have read it
	readers map[string]map[string]struct{}

	feed io.Closer
}

func NewReceipts(st store.Store, session *auth.Session) *Receipts {
	return &Receipts{
		store:   st,
		session: session,
		readers: make(map[string]map[string]struct{}),
	}
}

// Start subscribes to receipt inserts on the change feed
func (r *Receipts) Start(transport realtime.Transport) error {
	feed, err := transport.Feed(realtime.TableReadReceipts, r.onEvent)
	if err != nil {
		return err
	}
	r.feed = feed
	return nil
}

func (r *Receipts) onEvent(ev realtime.Event) {
	if ev.Kind != realtime.EventInsert {
		return
	}
	var receipt models.MessageReadReceipt
	if err := json.Unmarshal(ev.Payload, &receipt); err != nil {
		return
	}
	r.mu.Lock()
	if receipt.ConversationID == r.conversationID && r.conversationID != "" {
		r.addLocked(receipt)
	}
	r.mu.Unlock()
}

func (r *Receipts) addLocked(receipt models.MessageReadReceipt) {
	readers, ok := r.readers[receipt.MessageID]
	if !ok {
		readers = make(map[string]struct{})
		r.readers[receipt.MessageID] = readers
	}
	readers[receipt.UserID] = struct{}{}
}

// LoadConversation rescopes the cache to the conversation and replaces its
// contents. A read failure keeps the previous entries; the scope still
// moves so live events for the new conversation are not dropped.
func (r *Receipts) LoadConversation(ctx context.Context, conversationID string) {
	r.mu.Lock()
	r.conversationID = conversationID
	r.mu.Unlock()

	receipts, err := r.store.ConversationReadReceipts(ctx, conversationID)
	if err != nil {
		logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("Read receipt fetch failed, keeping previous state")
		return
	}

	r.mu.Lock()
	if r.conversationID == conversationID {
		r.readers = make(map[string]map[string]struct{}, len(receipts))
		for _, receipt := range receipts {
			r.addLocked(receipt)
		}
	}
	r.mu.Unlock()
}

// MarkAsRead records that self has seen the message. Idempotent: duplicate
// calls produce neither duplicate rows nor errors.
func (r *Receipts) MarkAsRead(ctx context.Context, messageID string) error {
	if err := r.store.InsertReadReceipt(ctx, messageID, r.session.UserID()); err != nil {
		return err
	}
	r.mu.Lock()
	r.addLocked(models.MessageReadReceipt{MessageID: messageID, UserID: r.session.UserID()})
	r.mu.Unlock()
	return nil
}

// MarkVisible applies the auto-read policy over a rendered timeline: every
// visible message not authored by self is marked read, fire and forget.
func (r *Receipts) MarkVisible(ctx context.Context, messages []models.Message) {
	self := r.session.UserID()
	for _, m := range messages {
		if m.SenderID == self {
			continue
		}
		if r.HasCurrentUserRead(m.ID) {
			continue
		}
		if err := r.MarkAsRead(ctx, m.ID); err != nil {
			logger.Warn().Err(err).Str("message_id", m.ID).Msg("Mark-as-read failed")
		}
	}
}

// IsMessageRead reports whether someone other than self has read a message
// sent by self. Only meaningful for senderID == self; anything else is
// false by definition.
func (r *Receipts) IsMessageRead(messageID, senderID string) bool {
	if senderID != r.session.UserID() {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for userID := range r.readers[messageID] {
		if userID != r.session.UserID() {
			return true
		}
	}
	return false
}

// HasCurrentUserRead reports whether self has a receipt for the message
func (r *Receipts) HasCurrentUserRead(messageID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.readers[messageID][r.session.UserID()]
	return ok
}

// Close tears the feed subscription down
func (r *Receipts) Close() error {
	if r.feed == nil {
		return nil
	}
	return r.feed.Close()
}
