package chat

import (
	"context"
	"sync"
	"time"

	"github.com/pushp314/chatsync/internal/auth"
	"github.com/pushp314/chatsync/internal/realtime"
	"github.com/pushp314/chatsync/pkg/logger"
)

// defaultTypingTimeout is the client-enforced soft expiry: with no further
// input for this long, the typing state is withdrawn automatically.
const defaultTypingTimeout = 2 * time.Second

// TypingUser is one peer currently typing in the active conversation
type TypingUser struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Typing broadcasts the user's "is typing" state on one ephemeral channel
// per active conversation, and derives the peer typing list from that
// channel's presence state.
type Typing struct {
	transport realtime.Transport
	session   *auth.Session

	timeout time.Duration

	mu             sync.Mutex
	conversationID string
	channel        realtime.Channel
	timer          *time.Timer

	stateMu sync.RWMutex
	state   realtime.PresenceState
}

func NewTyping(transport realtime.Transport, session *auth.Session) *Typing {
	return &Typing{
		transport: transport,
		session:   session,
		timeout:   defaultTypingTimeout,
	}
}

// Activate opens the typing channel for a conversation, closing the
// previous one first. Called on every active-conversation switch.
func (t *Typing) Activate(conversationID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeLocked()
	if conversationID == "" {
		return nil
	}

	channel, err := t.transport.Subscribe("typing:"+conversationID, t.session.UserID(), t.onSync)
	if err != nil {
		return err
	}
	t.conversationID = conversationID
	t.channel = channel
	return nil
}

// Deactivate closes the active typing channel
func (t *Typing) Deactivate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
}

func (t *Typing) closeLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.channel != nil {
		if err := t.channel.Close(); err != nil {
			logger.Warn().Err(err).Str("conversation_id", t.conversationID).Msg("Typing channel close failed")
		}
		t.channel = nil
	}
	t.conversationID = ""
	t.stateMu.Lock()
	t.state = nil
	t.stateMu.Unlock()
}

func (t *Typing) onSync(state realtime.PresenceState) {
	t.stateMu.Lock()
	t.state = state
	t.stateMu.Unlock()
}

// SetTyping tracks or untracks the self typing entry. Failures are logged,
// not surfaced; state self-heals on the next track cycle.
func (t *Typing) SetTyping(ctx context.Context, isTyping bool, displayName string) {
	t.mu.Lock()
	channel := t.channel
	t.mu.Unlock()
	if channel == nil {
		return
	}

	var err error
	if isTyping {
		err = channel.Track(ctx, realtime.PresenceEntry{
			UserID:      t.session.UserID(),
			DisplayName: displayName,
			IsTyping:    true,
			OnlineAt:    time.Now(),
		})
	} else {
		err = channel.Untrack(ctx)
	}
	if err != nil {
		logger.Warn().Err(err).Bool("is_typing", isTyping).Msg("Typing update failed")
	}
}

// NotifyInput is called on every content-change event: it broadcasts the
// typing state and (re)arms the inactivity timer that withdraws it.
func (t *Typing) NotifyInput(displayName string) {
	t.SetTyping(context.Background(), true, displayName)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.timeout, func() {
		t.SetTyping(context.Background(), false, displayName)
	})
}

// Stop withdraws the typing state immediately and cancels any pending
// timer. Sending a message calls this.
func (t *Typing) Stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()

	t.SetTyping(context.Background(), false, "")
}

// TypingUsers returns the peers currently typing: entries with is_typing
// set, excluding self
func (t *Typing) TypingUsers() []TypingUser {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()

	var users []TypingUser
	for userID, entry := range t.state {
		if userID == t.session.UserID() || !entry.IsTyping {
			continue
		}
		users = append(users, TypingUser{UserID: userID, DisplayName: entry.DisplayName})
	}
	return users
}
