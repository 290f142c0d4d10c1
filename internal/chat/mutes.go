package chat

import (
	"context"
	"sync"

	"github.com/pushp314/chatsync/internal/auth"
	"github.com/pushp314/chatsync/internal/store"
	"github.com/pushp314/chatsync/pkg/logger"
)

// Mutes is the session's block list, applied as a pure view filter over the
// timeline. Muting never deletes stored messages and takes effect without a
// refetch.
type Mutes struct {
	mu      sync.RWMutex
	store   store.Store
	session *auth.Session
	set     map[string]struct{}
}

func NewMutes(st store.Store, session *auth.Session) *Mutes {
	return &Mutes{
		store:   st,
		session: session,
		set:     make(map[string]struct{}),
	}
}

// Load fetches the current mute set. A read failure keeps the previous set.
func (m *Mutes) Load(ctx context.Context) {
	userIDs, err := m.store.MutedUserIDs(ctx, m.session.UserID())
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load mute list, keeping previous state")
		return
	}

	set := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		set[id] = struct{}{}
	}
	m.mu.Lock()
	m.set = set
	m.mu.Unlock()
}

// MuteUser persists the mute and applies it locally. A remote failure
// surfaces to the caller and leaves the local set untouched.
func (m *Mutes) MuteUser(ctx context.Context, userID string) error {
	if err := m.store.MuteUser(ctx, m.session.UserID(), userID); err != nil {
		return err
	}
	m.mu.Lock()
	m.set[userID] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *Mutes) UnmuteUser(ctx context.Context, userID string) error {
	if err := m.store.UnmuteUser(ctx, m.session.UserID(), userID); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.set, userID)
	m.mu.Unlock()
	return nil
}

func (m *Mutes) IsMuted(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, muted := m.set[userID]
	return muted
}

func (m *Mutes) MutedUserIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.set))
	for id := range m.set {
		ids = append(ids, id)
	}
	return ids
}
