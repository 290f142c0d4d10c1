package chat

import (
	"context"
	"sync"
	"time"

	"github.com/pushp314/chatsync/internal/auth"
	"github.com/pushp314/chatsync/internal/realtime"
	"github.com/pushp314/chatsync/pkg/logger"
)

// onlineChannel is the single shared presence channel for global presence
const onlineChannel = "online-users"

// Presence tracks which users are currently connected. The set is rebuilt
// from scratch on every sync callback, never incrementally diffed.
type Presence struct {
	session *auth.Session

	mu      sync.RWMutex
	channel realtime.Channel
	online  map[string]struct{}
	closed  bool
}

// NewPresence subscribes to the shared channel and registers self. A track
// failure is logged; the next sync callback notices the missing self entry
// and re-registers.
func NewPresence(transport realtime.Transport, session *auth.Session) (*Presence, error) {
	p := &Presence{
		session: session,
		online:  make(map[string]struct{}),
	}

	channel, err := transport.Subscribe(onlineChannel, session.UserID(), p.onSync)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.channel = channel
	p.mu.Unlock()

	p.track(channel)
	return p, nil
}

func (p *Presence) track(channel realtime.Channel) {
	entry := realtime.PresenceEntry{
		UserID:   p.session.UserID(),
		OnlineAt: time.Now(),
	}
	if err := channel.Track(context.Background(), entry); err != nil {
		logger.Warn().Err(err).Msg("Presence track failed")
	}
}

func (p *Presence) onSync(state realtime.PresenceState) {
	online := make(map[string]struct{}, len(state))
	for userID := range state {
		online[userID] = struct{}{}
	}
	_, selfPresent := online[p.session.UserID()]

	p.mu.Lock()
	p.online = online
	channel := p.channel
	closed := p.closed
	p.mu.Unlock()

	if selfPresent || closed || channel == nil {
		return
	}
	// Our own entry is gone: the track failed or the server dropped it.
	// Re-register so the client does not stay invisible for the session.
	go p.track(channel)
}

// IsOnline is a pure set membership lookup
func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, online := p.online[userID]
	return online
}

// OnlineUsers returns the current online user id set
func (p *Presence) OnlineUsers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	users := make([]string, 0, len(p.online))
	for userID := range p.online {
		users = append(users, userID)
	}
	return users
}

// Close untracks self and unsubscribes, so other clients observe the
// departure promptly
func (p *Presence) Close() error {
	p.mu.Lock()
	p.closed = true
	channel := p.channel
	p.mu.Unlock()
	return channel.Close()
}
