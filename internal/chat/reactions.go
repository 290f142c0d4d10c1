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

// Reactions caches reaction rows for the active conversation and groups
// them for display. The cache is kept live by the reaction change feed
// (inserts and deletes).
type Reactions struct {
	store   store.Store
	session *auth.Session

	mu sync.RWMutex
	// Conversation the cache is scoped to; feed events for any other
	// conversation are dropped so the cache stays bounded
	conversationID string
	rows           []models.MessageReaction

	feed io.Closer
}

func NewReactions(st store.Store, session *auth.Session) *Reactions {
	return &Reactions{store: st, session: session}
}

// Start subscribes to reaction changes on the change feed
func (r *Reactions) Start(transport realtime.Transport) error {
	feed, err := transport.Feed(realtime.TableReactions, r.onEvent)
	if err != nil {
		return err
	}
	r.feed = feed
	return nil
}

func (r *Reactions) onEvent(ev realtime.Event) {
	var reaction models.MessageReaction
	if err := json.Unmarshal(ev.Payload, &reaction); err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if reaction.ConversationID != r.conversationID || r.conversationID == "" {
		return
	}
	switch ev.Kind {
	case realtime.EventInsert:
		for i := range r.rows {
			if r.rows[i].ID == reaction.ID {
				return
			}
		}
		r.rows = append(r.rows, reaction)
	case realtime.EventDelete:
		for i := range r.rows {
			if r.rows[i].ID == reaction.ID {
				r.rows = append(r.rows[:i], r.rows[i+1:]...)
				return
			}
		}
	}
}

// LoadConversation rescopes the cache to the conversation and replaces its
// contents. A read failure keeps the previous rows; the scope still moves
// so live events for the new conversation are not dropped.
func (r *Reactions) LoadConversation(ctx context.Context, conversationID string) {
	r.mu.Lock()
	r.conversationID = conversationID
	r.mu.Unlock()

	rows, err := r.store.ConversationReactions(ctx, conversationID)
	if err != nil {
		logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("Reaction fetch failed, keeping previous state")
		return
	}
	r.mu.Lock()
	if r.conversationID == conversationID {
		r.rows = rows
	}
	r.mu.Unlock()
}

// AddReaction records self's reaction. Idempotent: a second add of the same
// emoji on the same message is a no-op. Remote failures surface.
func (r *Reactions) AddReaction(ctx context.Context, messageID, emoji string) error {
	return r.store.InsertReaction(ctx, messageID, r.session.UserID(), emoji)
}

// RemoveReaction removes self's reaction; removing a non-existent reaction
// is a no-op, not an error
func (r *Reactions) RemoveReaction(ctx context.Context, messageID, emoji string) error {
	return r.store.DeleteReaction(ctx, messageID, r.session.UserID(), emoji)
}

// GetMessageReactions groups the message's reactions by emoji in stable
// first-seen order
func (r *Reactions) GetMessageReactions(messageID string) []models.ReactionGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var order []string
	groups := make(map[string]*models.ReactionGroup)
	for _, row := range r.rows {
		if row.MessageID != messageID {
			continue
		}
		group, ok := groups[row.Emoji]
		if !ok {
			group = &models.ReactionGroup{Emoji: row.Emoji}
			groups[row.Emoji] = group
			order = append(order, row.Emoji)
		}
		group.Count++
		group.Users = append(group.Users, row.UserID)
		if row.UserID == r.session.UserID() {
			group.HasCurrentUser = true
		}
	}

	out := make([]models.ReactionGroup, 0, len(order))
	for _, emoji := range order {
		out = append(out, *groups[emoji])
	}
	return out
}

// Close tears the feed subscription down
func (r *Reactions) Close() error {
	if r.feed == nil {
		return nil
	}
	return r.feed.Close()
}
