package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pushp314/chatsync/internal/auth"
	"github.com/pushp314/chatsync/internal/config"
	"github.com/pushp314/chatsync/internal/models"
	"github.com/pushp314/chatsync/internal/realtime"
	"github.com/pushp314/chatsync/internal/store"
	"github.com/pushp314/chatsync/pkg/utils"
)

// testEnv mirrors the production wiring on an isolated in-memory SQLite DB
// and an in-process transport
type testEnv struct {
	db        *gorm.DB
	store     *store.GormStore
	transport *realtime.MemoryTransport
}

func setupEnv(t *testing.T) *testEnv {
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	transport := realtime.NewMemoryTransport()
	st := store.NewGormStore(db, transport)
	require.NoError(t, st.Migrate())
	return &testEnv{db: db, store: st, transport: transport}
}

func (e *testEnv) seedProfile(t *testing.T, userID, displayName string) {
	err := e.db.Create(&models.Profile{
		UserID:      userID,
		DisplayName: displayName,
		Username:    userID,
	}).Error
	require.NoError(t, err)
}

func newTestSession(t *testing.T, st store.Store, userID string) *auth.Session {
	token, err := utils.GenerateToken(userID)
	require.NoError(t, err)

	session, err := auth.NewSession(context.Background(), token, st)
	require.NoError(t, err)
	return session
}

func (e *testEnv) newClient(t *testing.T, userID string) *Client {
	session := newTestSession(t, e.store, userID)
	client, err := NewClient(context.Background(), session, e.store, e.transport)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func (e *testEnv) seedDirect(t *testing.T, userA, userB string) *models.Conversation {
	conversation, err := e.store.CreateConversation(context.Background(), "", false, []string{userA, userB})
	require.NoError(t, err)
	return conversation
}
