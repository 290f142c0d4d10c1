package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pushp314/chatsync/internal/auth"
	"github.com/pushp314/chatsync/internal/models"
	"github.com/pushp314/chatsync/internal/store"
	"github.com/pushp314/chatsync/pkg/errors"
	"github.com/pushp314/chatsync/pkg/logger"
	"github.com/pushp314/chatsync/pkg/utils"
)

// Timeline holds the ordered message history of the active conversation
// plus at most one unresolved optimistic entry. Order is whatever the
// authoritative history fetch returned; reconciled arrivals are appended,
// never re-sorted.
type Timeline struct {
	store   store.Store
	session *auth.Session
	mutes   *Mutes

	mu      sync.RWMutex
	active  string
	epoch   uint64
	entries []models.Message

	// Correlation token of the in-flight optimistic send, "" when none.
	// An inbound insert event clears the optimistic entry only when its
	// token matches, so a foreign message arriving first cannot discard it.
	pendingToken string
}

func NewTimeline(st store.Store, session *auth.Session, mutes *Mutes) *Timeline {
	return &Timeline{store: st, session: session, mutes: mutes}
}

// Active returns the active conversation id, "" when none is selected
func (t *Timeline) Active() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// Select makes conversationID the active conversation and loads its full
// history. If the active conversation changes while the fetch is in flight,
// the stale result is discarded (the request itself is not aborted). A
// fetch failure keeps the previously cached entries.
func (t *Timeline) Select(ctx context.Context, conversationID string) error {
	t.mu.Lock()
	t.active = conversationID
	t.epoch++
	epoch := t.epoch
	// An unresolved optimistic entry is dropped with its token: keeping the
	// entry without the token would strand it past its confirmation event
	if t.pendingToken != "" {
		t.removePendingLocked()
	}
	t.mu.Unlock()

	history, err := t.store.ConversationMessages(ctx, conversationID)
	if err != nil {
		logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("History fetch failed, keeping cached timeline")
		return nil
	}

	t.attachSenderProfiles(ctx, history)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch != epoch {
		// Conversation switched underneath us; drop the stale result
		return nil
	}
	t.entries = history
	return nil
}

// attachSenderProfiles fills denormalized sender profiles via one batched
// lookup over the distinct sender id set. A failed lookup leaves the
// messages unenriched.
func (t *Timeline) attachSenderProfiles(ctx context.Context, messages []models.Message) {
	seen := make(map[string]struct{})
	var senderIDs []string
	for _, m := range messages {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	if len(senderIDs) == 0 {
		return
	}

	profiles, err := t.store.Profiles(ctx, senderIDs)
	if err != nil {
		logger.Warn().Err(err).Msg("Sender profile fetch failed, rendering without profiles")
		return
	}
	byUserID := make(map[string]models.ProfileView, len(profiles))
	for _, p := range profiles {
		byUserID[p.UserID] = p
	}
	for i := range messages {
		if view, ok := byUserID[messages[i].SenderID]; ok {
			v := view
			messages[i].Sender = &v
		}
	}
}

// Send runs the optimistic send pipeline: validate, append a temporary
// entry for immediate feedback, then issue the durable insert. On remote
// failure the temporary entry is rolled back and ErrSendFailed returned.
// On success the durable entry is spliced in by the reconciler when the
// change-feed event arrives; the insert's own echo is not trusted.
func (t *Timeline) Send(ctx context.Context, content, messageType, fileURL string) error {
	if strings.TrimSpace(content) == "" && fileURL == "" {
		return errors.ErrEmptyContent
	}
	if messageType == "" {
		messageType = models.MessageTypeText
	}

	t.mu.Lock()
	if t.active == "" {
		t.mu.Unlock()
		return errors.ErrNoConversation
	}
	conversationID := t.active

	// A still-unresolved optimistic entry from an earlier send is dropped
	// here: its durable row, if the insert succeeded, still arrives via the
	// feed, and keeping both would violate the one-pending-entry invariant.
	if t.pendingToken != "" {
		t.removePendingLocked()
	}

	token := utils.GenerateID()
	self := t.session.ProfileView()
	temp := models.Message{
		ID:              utils.TempID(),
		ConversationID:  conversationID,
		SenderID:        t.session.UserID(),
		Content:         content,
		Type:            messageType,
		FileURL:         fileURL,
		CreatedAt:       time.Now(),
		ClientMessageID: &token,
		Sender:          &self,
	}
	t.entries = append(t.entries, temp)
	t.pendingToken = token
	t.mu.Unlock()

	durable := models.Message{
		ConversationID:  conversationID,
		SenderID:        temp.SenderID,
		Content:         content,
		Type:            messageType,
		FileURL:         fileURL,
		CreatedAt:       temp.CreatedAt,
		ClientMessageID: &token,
	}
	if err := t.store.InsertMessage(ctx, &durable); err != nil {
		logger.Error().Err(err).Str("conversation_id", conversationID).Msg("Message insert rejected")
		t.mu.Lock()
		if t.pendingToken == token {
			t.removePendingLocked()
		}
		t.mu.Unlock()
		return errors.ErrSendFailed
	}
	return nil
}

// removePendingLocked drops the current optimistic entry and returns its
// denormalized sender profile, if any. Caller holds mu.
func (t *Timeline) removePendingLocked() *models.ProfileView {
	token := t.pendingToken
	t.pendingToken = ""
	for i := range t.entries {
		if t.entries[i].ClientMessageID != nil && *t.entries[i].ClientMessageID == token && utils.IsTempID(t.entries[i].ID) {
			sender := t.entries[i].Sender
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return sender
		}
	}
	return nil
}

// reconcile merges a confirmed insert into the timeline. It returns whether
// the message was appended and whether its sender profile still needs to be
// fetched (progressive enrichment).
func (t *Timeline) reconcile(msg models.Message) (appended, needsProfile bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Deterministic optimistic clearing: only the entry this event confirms
	if t.pendingToken != "" && msg.ClientMessageID != nil && *msg.ClientMessageID == t.pendingToken {
		// The optimistic entry already rendered the cached self profile;
		// keep it on the confirmed entry
		if sender := t.removePendingLocked(); sender != nil && msg.Sender == nil {
			msg.Sender = sender
		}
	}

	if msg.ConversationID != t.active {
		return false, false
	}
	for i := range t.entries {
		if t.entries[i].ID == msg.ID {
			return false, false
		}
	}

	// Reuse the sender's profile if another entry already carries it
	if msg.Sender == nil {
		for i := range t.entries {
			if t.entries[i].SenderID == msg.SenderID && t.entries[i].Sender != nil {
				v := *t.entries[i].Sender
				msg.Sender = &v
				break
			}
		}
	}

	t.entries = append(t.entries, msg)
	return true, msg.Sender == nil
}

// patchSender fills a message's profile in place once the async fetch
// resolves
func (t *Timeline) patchSender(messageID string, view models.ProfileView) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		if t.entries[i].ID == messageID {
			v := view
			t.entries[i].Sender = &v
			return
		}
	}
}

// Messages returns the rendered timeline: a snapshot with the mute filter
// applied. Muted senders are excluded from view only; the underlying
// entries are untouched, so unmuting restores them without a refetch.
func (t *Timeline) Messages() []models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.Message, 0, len(t.entries))
	for _, m := range t.entries {
		if t.mutes != nil && t.mutes.IsMuted(m.SenderID) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// HasPending reports whether an optimistic entry is still unresolved
func (t *Timeline) HasPending() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pendingToken != ""
}
