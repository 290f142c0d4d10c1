package chat

import (
	"context"
	"sync"
	"time"

	"github.com/pushp314/chatsync/internal/auth"
	"github.com/pushp314/chatsync/internal/models"
	"github.com/pushp314/chatsync/internal/store"
	"github.com/pushp314/chatsync/pkg/logger"
)

// defaultRefreshDebounce coalesces reconciler-triggered directory refreshes
const defaultRefreshDebounce = 350 * time.Millisecond

// Directory maintains the list of conversations the user belongs to, with
// direct conversations enriched by the counterpart's restricted profile.
type Directory struct {
	store   store.Store
	session *auth.Session

	mu            sync.RWMutex
	conversations []models.Conversation

	debounce time.Duration
	timerMu  sync.Mutex
	timer    *time.Timer
}

func NewDirectory(st store.Store, session *auth.Session) *Directory {
	return &Directory{
		store:    st,
		session:  session,
		debounce: defaultRefreshDebounce,
	}
}

// Refresh re-runs the directory load. Any read failure degrades to the last
// known list; nothing is surfaced to the caller.
func (d *Directory) Refresh(ctx context.Context) {
	self := d.session.UserID()

	conversations, err := d.store.UserConversations(ctx, self)
	if err != nil {
		logger.Warn().Err(err).Msg("Conversation list fetch failed, keeping last known list")
		return
	}

	// Resolve counterpart identities for direct conversations, then fetch
	// their restricted profiles in one batched call keyed by user id set.
	var directIDs []string
	for _, c := range conversations {
		if !c.IsGroup {
			directIDs = append(directIDs, c.ID)
		}
	}

	if len(directIDs) > 0 {
		counterparts, err := d.store.DirectCounterparts(ctx, directIDs, self)
		if err != nil {
			logger.Warn().Err(err).Msg("Counterpart resolution failed, keeping last known list")
			return
		}

		userIDSet := make(map[string]struct{}, len(counterparts))
		var userIDs []string
		for _, userID := range counterparts {
			if _, seen := userIDSet[userID]; !seen {
				userIDSet[userID] = struct{}{}
				userIDs = append(userIDs, userID)
			}
		}

		profiles, err := d.store.Profiles(ctx, userIDs)
		if err != nil {
			logger.Warn().Err(err).Msg("Counterpart profile fetch failed, keeping last known list")
			return
		}
		byUserID := make(map[string]models.ProfileView, len(profiles))
		for _, p := range profiles {
			byUserID[p.UserID] = p
		}

		for i := range conversations {
			if conversations[i].IsGroup {
				continue
			}
			if userID, ok := counterparts[conversations[i].ID]; ok {
				if view, ok := byUserID[userID]; ok {
					v := view
					conversations[i].Counterpart = &v
				}
			}
		}
	}

	d.mu.Lock()
	d.conversations = conversations
	d.mu.Unlock()
}

// Invalidate schedules a debounced refresh. Bursts of change-feed events
// collapse into a single reload on the trailing edge.
func (d *Directory) Invalidate() {
	d.timerMu.Lock()
	defer d.timerMu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, func() {
		d.Refresh(context.Background())
	})
}

// Close cancels any pending debounced refresh
func (d *Directory) Close() {
	d.timerMu.Lock()
	defer d.timerMu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Conversations returns the current directory snapshot
func (d *Directory) Conversations() []models.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Conversation, len(d.conversations))
	copy(out, d.conversations)
	return out
}
