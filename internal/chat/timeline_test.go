package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushp314/chatsync/internal/models"
	"github.com/pushp314/chatsync/internal/store"
	"github.com/pushp314/chatsync/pkg/errors"
	"github.com/pushp314/chatsync/pkg/utils"
)

// failingStore rejects message inserts to exercise the rollback path
type failingStore struct {
	store.Store
}

func (f *failingStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	return errors.ErrRemoteWrite
}

func TestSend_EmptyContentRejected(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	conversation := env.seedDirect(t, "a", "b")

	client := env.newClient(t, "a")
	require.NoError(t, client.SelectConversation(context.Background(), conversation.ID))

	err := client.Send(context.Background(), "   ", models.MessageTypeText, "")
	assert.Equal(t, errors.ErrEmptyContent, err)
	assert.Empty(t, client.Timeline.Messages())

	// A file message with no text is fine
	err = client.Send(context.Background(), "", models.MessageTypeFile, "https://example.com/f.bin")
	assert.NoError(t, err)
}

func TestSend_NoActiveConversation(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")

	client := env.newClient(t, "a")
	err := client.Send(context.Background(), "hi", models.MessageTypeText, "")
	assert.Equal(t, errors.ErrNoConversation, err)
}

func TestSend_SuccessConvergesToOneDurableEntry(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	env.seedProfile(t, "b", "Bob")
	conversation := env.seedDirect(t, "a", "b")

	client := env.newClient(t, "a")
	require.NoError(t, client.SelectConversation(context.Background(), conversation.ID))

	require.NoError(t, client.Send(context.Background(), "hi", models.MessageTypeText, ""))

	// Both the write completion and the feed event were candidate triggers;
	// exactly one durable entry must remain and no temporary one.
	messages := client.Timeline.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].Content)
	assert.False(t, utils.IsTempID(messages[0].ID))
	assert.False(t, client.Timeline.HasPending())

	// Optimistic entry carried the cached self profile; the confirmed entry
	// keeps a profile too
	require.NotNil(t, messages[0].Sender)
	assert.Equal(t, "Alice", messages[0].Sender.DisplayName)
}

func TestSend_RemoteFailureRollsBack(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	conversation := env.seedDirect(t, "a", "b")

	session := newTestSession(t, env.store, "a")
	timeline := NewTimeline(&failingStore{Store: env.store}, session, NewMutes(env.store, session))
	require.NoError(t, timeline.Select(context.Background(), conversation.ID))

	err := timeline.Send(context.Background(), "hi", models.MessageTypeText, "")
	assert.Equal(t, errors.ErrSendFailed, err)

	// Timeline returns to its pre-send state
	assert.Empty(t, timeline.Messages())
	assert.False(t, timeline.HasPending())
}

func TestReconcile_ForeignInsertDoesNotClearPending(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	env.seedProfile(t, "b", "Bob")
	conversation := env.seedDirect(t, "a", "b")

	session := newTestSession(t, env.store, "a")
	// Store without a transport: the send's own confirmation never arrives,
	// leaving the optimistic entry pending
	silent := store.NewGormStore(env.db, nil)
	timeline := NewTimeline(silent, session, NewMutes(silent, session))
	require.NoError(t, timeline.Select(context.Background(), conversation.ID))
	require.NoError(t, timeline.Send(context.Background(), "mine", models.MessageTypeText, ""))
	require.True(t, timeline.HasPending())

	// Another participant's message lands first
	foreignToken := utils.GenerateID()
	appended, _ := timeline.reconcile(models.Message{
		ID:              utils.GenerateID(),
		ConversationID:  conversation.ID,
		SenderID:        "b",
		Content:         "theirs",
		CreatedAt:       time.Now(),
		ClientMessageID: &foreignToken,
	})
	assert.True(t, appended)

	// The pending optimistic entry survives: it is cleared only by the
	// event that actually confirms it
	assert.True(t, timeline.HasPending())
	messages := timeline.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "mine", messages[0].Content)
	assert.Equal(t, "theirs", messages[1].Content)

	// Now the own confirmation arrives
	var persisted models.Message
	require.NoError(t, env.db.First(&persisted, "content = ?", "mine").Error)
	appended, _ = timeline.reconcile(persisted)
	assert.True(t, appended)
	assert.False(t, timeline.HasPending())

	messages = timeline.Messages()
	require.Len(t, messages, 2)
	for _, m := range messages {
		assert.False(t, utils.IsTempID(m.ID))
	}
}

func TestReconcile_DuplicateEventIgnored(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	conversation := env.seedDirect(t, "a", "b")

	session := newTestSession(t, env.store, "a")
	timeline := NewTimeline(env.store, session, NewMutes(env.store, session))
	require.NoError(t, timeline.Select(context.Background(), conversation.ID))

	msg := models.Message{
		ID:             utils.GenerateID(),
		ConversationID: conversation.ID,
		SenderID:       "b",
		Content:        "once",
		CreatedAt:      time.Now(),
	}
	appended, _ := timeline.reconcile(msg)
	assert.True(t, appended)
	appended, _ = timeline.reconcile(msg)
	assert.False(t, appended)

	assert.Len(t, timeline.Messages(), 1)
}

func TestReconcile_OtherConversationIgnored(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	active := env.seedDirect(t, "a", "b")
	other := env.seedDirect(t, "a", "c")

	session := newTestSession(t, env.store, "a")
	timeline := NewTimeline(env.store, session, NewMutes(env.store, session))
	require.NoError(t, timeline.Select(context.Background(), active.ID))

	appended, _ := timeline.reconcile(models.Message{
		ID:             utils.GenerateID(),
		ConversationID: other.ID,
		SenderID:       "c",
		Content:        "elsewhere",
		CreatedAt:      time.Now(),
	})
	assert.False(t, appended)
	assert.Empty(t, timeline.Messages())
}

func TestReconcile_ReusesKnownSenderProfile(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	env.seedProfile(t, "b", "Bob")
	conversation := env.seedDirect(t, "a", "b")

	// History already contains a profiled message from b
	env.db.Create(&models.Message{ID: "m-old", ConversationID: conversation.ID, SenderID: "b", Content: "old", CreatedAt: time.Now().Add(-time.Minute)})

	session := newTestSession(t, env.store, "a")
	timeline := NewTimeline(env.store, session, NewMutes(env.store, session))
	require.NoError(t, timeline.Select(context.Background(), conversation.ID))

	appended, needsProfile := timeline.reconcile(models.Message{
		ID:             utils.GenerateID(),
		ConversationID: conversation.ID,
		SenderID:       "b",
		Content:        "new",
		CreatedAt:      time.Now(),
	})
	assert.True(t, appended)
	assert.False(t, needsProfile)

	messages := timeline.Messages()
	require.Len(t, messages, 2)
	require.NotNil(t, messages[1].Sender)
	assert.Equal(t, "Bob", messages[1].Sender.DisplayName)
}

func TestSelect_HistoryOrderAndProfiles(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	env.seedProfile(t, "b", "Bob")
	conversation := env.seedDirect(t, "a", "b")

	base := time.Now().Add(-time.Hour)
	env.db.Create(&models.Message{ID: "m1", ConversationID: conversation.ID, SenderID: "a", Content: "one", CreatedAt: base})
	env.db.Create(&models.Message{ID: "m2", ConversationID: conversation.ID, SenderID: "b", Content: "two", CreatedAt: base.Add(time.Second)})

	client := env.newClient(t, "a")
	require.NoError(t, client.SelectConversation(context.Background(), conversation.ID))

	messages := client.Timeline.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Content)
	assert.Equal(t, "two", messages[1].Content)
	require.NotNil(t, messages[0].Sender)
	assert.Equal(t, "Alice", messages[0].Sender.DisplayName)
	require.NotNil(t, messages[1].Sender)
	assert.Equal(t, "Bob", messages[1].Sender.DisplayName)
}

func TestReconcile_EventPayloadRoundTrip(t *testing.T) {
	// The reconciler consumes events as they come off the wire
	token := "corr-1"
	msg := models.Message{
		ID:              "m1",
		ConversationID:  "c1",
		SenderID:        "a",
		Content:         "hi",
		ClientMessageID: &token,
	}
	raw, err := json.Marshal(&msg)
	require.NoError(t, err)

	var decoded models.Message
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotNil(t, decoded.ClientMessageID)
	assert.Equal(t, token, *decoded.ClientMessageID)
}

func TestSelect_FailedReselectDropsOptimisticEntry(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	env.seedProfile(t, "b", "Bob")
	conversation := env.seedDirect(t, "a", "b")

	session := newTestSession(t, env.store, "a")
	// Store without a transport: the send's own confirmation never arrives,
	// leaving the optimistic entry pending
	silent := store.NewGormStore(env.db, nil)
	timeline := NewTimeline(silent, session, NewMutes(silent, session))
	require.NoError(t, timeline.Select(context.Background(), conversation.ID))
	require.NoError(t, timeline.Send(context.Background(), "mine", models.MessageTypeText, ""))
	require.True(t, timeline.HasPending())

	// Re-select while the send is unconfirmed, with the history fetch
	// failing so the cached entries survive
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, timeline.Select(cancelled, conversation.ID))

	// The optimistic entry goes with its token, it cannot be stranded
	assert.False(t, timeline.HasPending())
	assert.Empty(t, timeline.Messages())

	// The confirmation arrives late; the message appears exactly once
	var persisted models.Message
	require.NoError(t, env.db.First(&persisted, "content = ?", "mine").Error)
	appended, _ := timeline.reconcile(persisted)
	assert.True(t, appended)

	messages := timeline.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, persisted.ID, messages[0].ID)
	for _, m := range messages {
		assert.False(t, utils.IsTempID(m.ID))
	}
}

// gatedStore blocks history fetches for one conversation until released
type gatedStore struct {
	store.Store
	slowID  string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) ConversationMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if conversationID == g.slowID {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.Store.ConversationMessages(ctx, conversationID)
}

func TestSelect_StaleFetchDiscarded(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	env.seedProfile(t, "b", "Bob")
	env.seedProfile(t, "c", "Carol")
	slow := env.seedDirect(t, "a", "b")
	fast := env.seedDirect(t, "a", "c")
	seedMessage(t, env, slow.ID, "b", "stale")
	seedMessage(t, env, fast.ID, "c", "current")

	session := newTestSession(t, env.store, "a")
	gated := &gatedStore{
		Store:   env.store,
		slowID:  slow.ID,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	timeline := NewTimeline(gated, session, nil)

	done := make(chan error, 1)
	go func() {
		done <- timeline.Select(context.Background(), slow.ID)
	}()
	<-gated.entered

	// The user switches away while the first fetch is in flight
	require.NoError(t, timeline.Select(context.Background(), fast.ID))
	messages := timeline.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "current", messages[0].Content)

	// The first fetch resolves late; its result must not clobber the
	// newer conversation's entries
	close(gated.release)
	require.NoError(t, <-done)

	assert.Equal(t, fast.ID, timeline.Active())
	messages = timeline.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "current", messages[0].Content)
}
