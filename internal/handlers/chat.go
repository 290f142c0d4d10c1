package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pushp314/chatsync/internal/chat"
	"github.com/pushp314/chatsync/internal/models"
	"github.com/pushp314/chatsync/pkg/errors"
)

// Gateway exposes the sync core to the UI layer over the local HTTP API.
// It holds the session's client by reference; nothing here is global.
type Gateway struct {
	client *chat.Client
}

func NewGateway(client *chat.Client) *Gateway {
	return &Gateway{client: client}
}

func respondError(c *gin.Context, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// ListConversations returns the current directory snapshot
func (g *Gateway) ListConversations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"conversations": g.client.Directory.Conversations()})
}

// SelectConversation activates a conversation and returns its timeline
func (g *Gateway) SelectConversation(c *gin.Context) {
	conversationID := c.Param("id")
	if err := g.client.SelectConversation(c.Request.Context(), conversationID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": g.client.Timeline.Messages()})
}

// GetMessages returns the rendered active timeline
func (g *Gateway) GetMessages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"conversationId": g.client.Timeline.Active(),
		"messages":       g.client.Timeline.Messages(),
	})
}

// SendMessage runs the optimistic send pipeline
func (g *Gateway) SendMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
		Type    string `json:"type"`
		FileURL string `json:"fileUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := g.client.Send(c.Request.Context(), req.Content, req.Type, req.FileURL); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": g.client.Timeline.Messages()})
}

// CreateConversation creates a conversation and activates it
func (g *Gateway) CreateConversation(c *gin.Context) {
	var req struct {
		Title          string   `json:"title"`
		IsGroup        bool     `json:"isGroup"`
		ParticipantIDs []string `json:"participantIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	conversation, err := g.client.CreateConversation(c.Request.Context(), req.Title, req.IsGroup, req.ParticipantIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}

// StartDirectConversation reuses or creates the DM with a user
func (g *Gateway) StartDirectConversation(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	conversation, err := g.client.StartDirectConversation(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}

// SetTyping broadcasts typing state for the active conversation. Typing
// arms the inactivity timer; not-typing withdraws immediately.
func (g *Gateway) SetTyping(c *gin.Context) {
	var req struct {
		IsTyping    bool   `json:"isTyping"`
		DisplayName string `json:"displayName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if req.IsTyping {
		g.client.Typing.NotifyInput(req.DisplayName)
	} else {
		g.client.Typing.Stop()
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetTypingUsers returns the peers typing in the active conversation
func (g *Gateway) GetTypingUsers(c *gin.Context) {
	users := g.client.Typing.TypingUsers()
	if users == nil {
		users = []chat.TypingUser{}
	}
	c.JSON(http.StatusOK, gin.H{"typing": users})
}

// GetOnlineUsers returns the global online set
func (g *Gateway) GetOnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": g.client.Presence.OnlineUsers()})
}

// MarkRead records a read receipt for a message
func (g *Gateway) MarkRead(c *gin.Context) {
	messageID := c.Param("id")
	if err := g.client.Receipts.MarkAsRead(c.Request.Context(), messageID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetMessageReactions returns grouped reactions for a message
func (g *Gateway) GetMessageReactions(c *gin.Context) {
	groups := g.client.Reactions.GetMessageReactions(c.Param("id"))
	if groups == nil {
		groups = []models.ReactionGroup{}
	}
	c.JSON(http.StatusOK, gin.H{"reactions": groups})
}

// AddReaction records an emoji reaction on a message
func (g *Gateway) AddReaction(c *gin.Context) {
	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := g.client.Reactions.AddReaction(c.Request.Context(), c.Param("id"), req.Emoji); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RemoveReaction removes the caller's reaction from a message
func (g *Gateway) RemoveReaction(c *gin.Context) {
	emoji := c.Query("emoji")
	if emoji == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "emoji required"})
		return
	}

	if err := g.client.Reactions.RemoveReaction(c.Request.Context(), c.Param("id"), emoji); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetMutedUsers returns the caller's mute list
func (g *Gateway) GetMutedUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"muted": g.client.Mutes.MutedUserIDs()})
}

// MuteUser adds a user to the caller's mute list
func (g *Gateway) MuteUser(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := g.client.Mutes.MuteUser(c.Request.Context(), req.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// UnmuteUser removes a user from the caller's mute list
func (g *Gateway) UnmuteUser(c *gin.Context) {
	if err := g.client.Mutes.UnmuteUser(c.Request.Context(), c.Param("userId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetProfile returns the cached self profile
func (g *Gateway) GetProfile(c *gin.Context) {
	profile := g.client.Session().Profile()
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// UpdateCustomization saves the versioned preferences record
func (g *Gateway) UpdateCustomization(c *gin.Context) {
	var req models.Customization
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := g.client.Session().UpdateCustomization(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customization": g.client.Session().Customization()})
}
