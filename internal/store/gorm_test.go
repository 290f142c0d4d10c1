package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pushp314/chatsync/internal/models"
	"github.com/pushp314/chatsync/internal/realtime"
)

// setupTestStore initializes an isolated in-memory SQLite DB per test
func setupTestStore(t *testing.T) (*GormStore, *realtime.MemoryTransport) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	transport := realtime.NewMemoryTransport()
	st := NewGormStore(db, transport)
	require.NoError(t, st.Migrate())
	return st, transport
}

func seedConversation(t *testing.T, st *GormStore, isGroup bool, participantIDs ...string) *models.Conversation {
	conversation, err := st.CreateConversation(context.Background(), "", isGroup, participantIDs)
	require.NoError(t, err)
	return conversation
}

func seedMessage(t *testing.T, st *GormStore, conversationID, senderID, content string) *models.Message {
	msg := models.Message{ConversationID: conversationID, SenderID: senderID, Content: content}
	require.NoError(t, st.InsertMessage(context.Background(), &msg))
	return &msg
}

func TestInsertReadReceipt_Idempotent(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	conversation := seedConversation(t, st, false, "a", "u1")
	msg := seedMessage(t, st, conversation.ID, "a", "hi")

	require.NoError(t, st.InsertReadReceipt(ctx, msg.ID, "u1"))
	require.NoError(t, st.InsertReadReceipt(ctx, msg.ID, "u1"))

	var receipts []models.MessageReadReceipt
	st.db.Where("message_id = ? AND user_id = ?", msg.ID, "u1").Find(&receipts)
	require.Len(t, receipts, 1)
	// The row carries its conversation for feed-side filtering
	assert.Equal(t, conversation.ID, receipts[0].ConversationID)
}

func TestInsertReadReceipt_UnknownMessageRejected(t *testing.T) {
	st, _ := setupTestStore(t)

	err := st.InsertReadReceipt(context.Background(), "no-such-message", "u1")
	assert.Error(t, err)
}

func TestInsertReadReceipt_PublishesOncePerRow(t *testing.T) {
	st, transport := setupTestStore(t)
	ctx := context.Background()

	conversation := seedConversation(t, st, false, "a", "u1")
	msg := seedMessage(t, st, conversation.ID, "a", "hi")

	var events []realtime.Event
	_, err := transport.Feed(realtime.TableReadReceipts, func(ev realtime.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.NoError(t, st.InsertReadReceipt(ctx, msg.ID, "u1"))
	require.NoError(t, st.InsertReadReceipt(ctx, msg.ID, "u1"))

	// The duplicate insert is a no-op and must not echo a second event
	assert.Len(t, events, 1)
}

func TestInsertReaction_Idempotent(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	conversation := seedConversation(t, st, false, "a", "u1")
	msg := seedMessage(t, st, conversation.ID, "a", "hi")

	require.NoError(t, st.InsertReaction(ctx, msg.ID, "u1", "👍"))
	require.NoError(t, st.InsertReaction(ctx, msg.ID, "u1", "👍"))

	var reactions []models.MessageReaction
	st.db.Where("message_id = ? AND user_id = ? AND emoji = ?", msg.ID, "u1", "👍").Find(&reactions)
	require.Len(t, reactions, 1)
	assert.Equal(t, conversation.ID, reactions[0].ConversationID)
}

func TestDeleteReaction_MissingRowIsNoOp(t *testing.T) {
	st, _ := setupTestStore(t)

	err := st.DeleteReaction(context.Background(), "m1", "u1", "👍")
	assert.NoError(t, err)
}

func TestDeleteReaction_PublishesDelete(t *testing.T) {
	st, transport := setupTestStore(t)
	ctx := context.Background()

	var events []realtime.Event
	_, err := transport.Feed(realtime.TableReactions, func(ev realtime.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	conversation := seedConversation(t, st, false, "a", "u1")
	msg := seedMessage(t, st, conversation.ID, "a", "hi")

	require.NoError(t, st.InsertReaction(ctx, msg.ID, "u1", "🔥"))
	require.NoError(t, st.DeleteReaction(ctx, msg.ID, "u1", "🔥"))

	require.Len(t, events, 2)
	assert.Equal(t, realtime.EventInsert, events[0].Kind)
	assert.Equal(t, realtime.EventDelete, events[1].Kind)
}

func TestConversationMessages_Ordering(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	conversation := seedConversation(t, st, false, "a", "b")

	base := time.Now().Add(-time.Hour)
	// Two messages share a timestamp; ids break the tie
	st.db.Create(&models.Message{ID: "m-b", ConversationID: conversation.ID, SenderID: "a", Content: "second", CreatedAt: base.Add(time.Minute)})
	st.db.Create(&models.Message{ID: "m-a", ConversationID: conversation.ID, SenderID: "b", Content: "also second", CreatedAt: base.Add(time.Minute)})
	st.db.Create(&models.Message{ID: "m-c", ConversationID: conversation.ID, SenderID: "a", Content: "first", CreatedAt: base})

	messages, err := st.ConversationMessages(ctx, conversation.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "m-c", messages[0].ID)
	assert.Equal(t, "m-a", messages[1].ID)
	assert.Equal(t, "m-b", messages[2].ID)
}

func TestInsertMessage_AssignsDurableIDAndPublishes(t *testing.T) {
	st, transport := setupTestStore(t)
	ctx := context.Background()

	conversation := seedConversation(t, st, false, "a", "b")

	var events []realtime.Event
	_, err := transport.Feed(realtime.TableMessages, func(ev realtime.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	token := "corr-123"
	msg := models.Message{
		ID:              "temp-should-be-ignored",
		ConversationID:  conversation.ID,
		SenderID:        "a",
		Content:         "hi",
		ClientMessageID: &token,
	}
	require.NoError(t, st.InsertMessage(ctx, &msg))

	assert.NotEqual(t, "temp-should-be-ignored", msg.ID)
	assert.NotEmpty(t, msg.ID)
	require.NotNil(t, msg.ClientMessageID)
	assert.Equal(t, token, *msg.ClientMessageID)
	assert.Len(t, events, 1)
}

func TestUserConversations_DeduplicatedByID(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	c1 := seedConversation(t, st, false, "me", "u1")
	c2 := seedConversation(t, st, true, "me", "u1", "u2")
	seedConversation(t, st, false, "u1", "u2") // not a member

	conversations, err := st.UserConversations(ctx, "me")
	require.NoError(t, err)
	require.Len(t, conversations, 2)

	ids := map[string]bool{}
	for _, c := range conversations {
		assert.False(t, ids[c.ID], "conversation %s appeared twice", c.ID)
		ids[c.ID] = true
	}
	assert.True(t, ids[c1.ID])
	assert.True(t, ids[c2.ID])
}

func TestFindDirectConversation(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	direct := seedConversation(t, st, false, "a", "b")
	seedConversation(t, st, true, "a", "b", "c") // group, never matched

	found, err := st.FindDirectConversation(ctx, "a", "b")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, direct.ID, found.ID)

	// Symmetric lookup
	found, err = st.FindDirectConversation(ctx, "b", "a")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, direct.ID, found.ID)

	// No DM with c
	found, err = st.FindDirectConversation(ctx, "a", "c")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestProfiles_RestrictedProjection(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	st.db.Create(&models.Profile{UserID: "u1", DisplayName: "User One", Username: "one", Phone: "+15550001111"})
	st.db.Create(&models.Profile{UserID: "u2", DisplayName: "User Two", Username: "two"})

	views, err := st.Profiles(ctx, []string{"u1", "u2", "missing"})
	require.NoError(t, err)
	assert.Len(t, views, 2)

	for _, v := range views {
		if v.UserID == "u1" {
			assert.Equal(t, "User One", v.DisplayName)
			assert.Equal(t, "one", v.Username)
		}
	}
}

func TestMuteUnmute(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.MuteUser(ctx, "me", "loud"))
	require.NoError(t, st.MuteUser(ctx, "me", "loud")) // duplicate pair is a no-op

	muted, err := st.MutedUserIDs(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, []string{"loud"}, muted)

	require.NoError(t, st.UnmuteUser(ctx, "me", "loud"))
	muted, err = st.MutedUserIDs(ctx, "me")
	require.NoError(t, err)
	assert.Empty(t, muted)
}

func TestDirectCounterparts(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	c1 := seedConversation(t, st, false, "me", "u1")
	c2 := seedConversation(t, st, false, "me", "u2")

	counterparts, err := st.DirectCounterparts(ctx, []string{c1.ID, c2.ID}, "me")
	require.NoError(t, err)
	assert.Equal(t, "u1", counterparts[c1.ID])
	assert.Equal(t, "u2", counterparts[c2.ID])
}

func TestInsertMessage_TouchFailureIsNonFatal(t *testing.T) {
	st, transport := setupTestStore(t)
	ctx := context.Background()

	var events []realtime.Event
	_, err := transport.Feed(realtime.TableMessages, func(ev realtime.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	// No conversation row to touch; the insert and its event still land
	msg := models.Message{ConversationID: "gone", SenderID: "a", Content: "hi"}
	require.NoError(t, st.InsertMessage(ctx, &msg))
	assert.NotEmpty(t, msg.ID)
	assert.Len(t, events, 1)
}
