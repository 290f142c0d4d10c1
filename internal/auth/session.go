// Package auth is the client's view of the externally-issued session: it
// consumes a token, never mints one, and caches the signed-in user's own
// profile for optimistic rendering.
package auth

import (
	"context"
	"sync"

	"github.com/pushp314/chatsync/internal/models"
	"github.com/pushp314/chatsync/internal/store"
	"github.com/pushp314/chatsync/pkg/errors"
	"github.com/pushp314/chatsync/pkg/logger"
	"github.com/pushp314/chatsync/pkg/utils"
)

// Session is the authenticated identity a sync client runs under
type Session struct {
	userID string

	mu      sync.RWMutex
	profile *models.Profile

	store store.Store
}

// NewSession validates the issued token and loads the self-profile cache.
// A profile read failure is not fatal: the session starts without a cached
// profile and optimistic entries render without one until Reload succeeds.
func NewSession(ctx context.Context, token string, st store.Store) (*Session, error) {
	claims, err := utils.ValidateToken(token)
	if err != nil {
		return nil, errors.ErrNotAuthenticated
	}

	s := &Session{userID: claims.UserID, store: st}
	if err := s.Reload(ctx); err != nil {
		logger.Warn().Err(err).Str("user_id", s.userID).Msg("Self profile unavailable, continuing without it")
	}
	return s, nil
}

// Reload refetches the cached self profile
func (s *Session) Reload(ctx context.Context) error {
	profile, err := s.store.SelfProfile(ctx, s.userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()
	return nil
}

func (s *Session) UserID() string {
	return s.userID
}

// Profile returns the cached self profile, or nil when the initial fetch
// has not succeeded yet
func (s *Session) Profile() *models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// ProfileView returns the restricted self projection. UserID is always set
// even when the profile cache is empty.
func (s *Session) ProfileView() models.ProfileView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return models.ProfileView{UserID: s.userID}
	}
	return s.profile.View()
}

// DisplayName returns the cached display name, falling back to the user id
func (s *Session) DisplayName() string {
	view := s.ProfileView()
	if view.DisplayName != "" {
		return view.DisplayName
	}
	return s.userID
}

// Customization returns the versioned preferences record, defaulted when
// the profile has none
func (s *Session) Customization() models.Customization {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil || s.profile.Customization == nil {
		return models.DefaultCustomization()
	}
	return *s.profile.Customization
}

// UpdateCustomization persists new preferences and updates the cache
func (s *Session) UpdateCustomization(ctx context.Context, c models.Customization) error {
	if err := s.store.SaveCustomization(ctx, s.userID, c); err != nil {
		return err
	}
	c.Version = models.CustomizationVersion
	s.mu.Lock()
	if s.profile != nil {
		s.profile.Customization = &c
	}
	s.mu.Unlock()
	return nil
}
