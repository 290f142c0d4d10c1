// Package chat is the sync core: session-scoped services that keep a local
// projection of conversations, messages, presence, typing, read receipts,
// reactions and mutes consistent with the remote store and its change feed,
// while giving the sending user optimistic feedback.
package chat

import (
	"context"

	"github.com/pushp314/chatsync/internal/auth"
	"github.com/pushp314/chatsync/internal/models"
	"github.com/pushp314/chatsync/internal/realtime"
	"github.com/pushp314/chatsync/internal/store"
	"github.com/pushp314/chatsync/pkg/logger"
)

// Client owns every sync service for one authenticated session. Constructed
// once per sign-in, held by reference, torn down explicitly on logout.
// Nothing here is module-global.
type Client struct {
	session   *auth.Session
	store     store.Store
	transport realtime.Transport

	Directory *Directory
	Timeline  *Timeline
	Presence  *Presence
	Typing    *Typing
	Receipts  *Receipts
	Reactions *Reactions
	Mutes     *Mutes

	reconciler *Reconciler
}

// NewClient builds and starts the session's services: initial directory and
// mute loads, the persistent message-feed subscription, and registration on
// the shared presence channel.
func NewClient(ctx context.Context, session *auth.Session, st store.Store, transport realtime.Transport) (*Client, error) {
	c := &Client{
		session:   session,
		store:     st,
		transport: transport,
	}

	c.Mutes = NewMutes(st, session)
	c.Directory = NewDirectory(st, session)
	c.Timeline = NewTimeline(st, session, c.Mutes)
	c.Receipts = NewReceipts(st, session)
	c.Reactions = NewReactions(st, session)
	c.Typing = NewTyping(transport, session)

	presence, err := NewPresence(transport, session)
	if err != nil {
		return nil, err
	}
	c.Presence = presence

	reconciler, err := NewReconciler(transport, st, session, c.Timeline, c.Directory, c.Receipts)
	if err != nil {
		presence.Close()
		return nil, err
	}
	c.reconciler = reconciler

	if err := c.Receipts.Start(transport); err != nil {
		c.teardown()
		return nil, err
	}
	if err := c.Reactions.Start(transport); err != nil {
		c.teardown()
		return nil, err
	}

	c.Mutes.Load(ctx)
	c.Directory.Refresh(ctx)
	return c, nil
}

func (c *Client) Session() *auth.Session {
	return c.session
}

// SelectConversation makes a conversation active: loads its timeline and
// the receipt/reaction caches, switches the typing channel, and applies the
// auto-read policy to the now-visible messages.
func (c *Client) SelectConversation(ctx context.Context, conversationID string) error {
	if err := c.Timeline.Select(ctx, conversationID); err != nil {
		return err
	}
	if err := c.Typing.Activate(conversationID); err != nil {
		logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("Typing channel unavailable")
	}
	c.Receipts.LoadConversation(ctx, conversationID)
	c.Reactions.LoadConversation(ctx, conversationID)

	go c.Receipts.MarkVisible(context.Background(), c.Timeline.Messages())
	return nil
}

// Send runs the optimistic send pipeline and withdraws any typing state
func (c *Client) Send(ctx context.Context, content, messageType, fileURL string) error {
	c.Typing.Stop()
	return c.Timeline.Send(ctx, content, messageType, fileURL)
}

// CreateConversation creates a conversation with the given participants
// (self is always included), activates it and refreshes the directory
func (c *Client) CreateConversation(ctx context.Context, title string, isGroup bool, participantIDs []string) (*models.Conversation, error) {
	withSelf := participantIDs
	self := c.session.UserID()
	found := false
	for _, id := range withSelf {
		if id == self {
			found = true
			break
		}
	}
	if !found {
		withSelf = append(append([]string{}, participantIDs...), self)
	}

	conversation, err := c.store.CreateConversation(ctx, title, isGroup, withSelf)
	if err != nil {
		return nil, err
	}

	c.Directory.Refresh(ctx)
	if err := c.SelectConversation(ctx, conversation.ID); err != nil {
		return nil, err
	}
	return conversation, nil
}

// StartDirectConversation reuses the existing two-party direct conversation
// with the user when one exists, otherwise creates one
func (c *Client) StartDirectConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	existing, err := c.store.FindDirectConversation(ctx, c.session.UserID(), userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := c.SelectConversation(ctx, existing.ID); err != nil {
			return nil, err
		}
		return existing, nil
	}
	return c.CreateConversation(ctx, "", false, []string{userID})
}

func (c *Client) teardown() {
	if c.reconciler != nil {
		c.reconciler.Close()
	}
	if c.Receipts != nil {
		c.Receipts.Close()
	}
	if c.Reactions != nil {
		c.Reactions.Close()
	}
	if c.Presence != nil {
		c.Presence.Close()
	}
}

// Close tears the session's services down: typing and presence channels are
// untracked so peers observe the departure promptly, and all feed
// subscriptions end
func (c *Client) Close() error {
	c.Typing.Deactivate()
	c.Directory.Close()
	c.teardown()
	return nil
}
