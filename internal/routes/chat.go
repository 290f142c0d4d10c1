package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/pushp314/chatsync/internal/handlers"
	"github.com/pushp314/chatsync/internal/middleware"
)

func RegisterChatRoutes(r gin.IRouter, g *handlers.Gateway) {
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware())
	{
		api.GET("/conversations", g.ListConversations)
		api.POST("/conversations", g.CreateConversation)
		api.POST("/conversations/direct", g.StartDirectConversation)
		api.POST("/conversations/:id/select", g.SelectConversation)

		api.GET("/messages", g.GetMessages)
		api.POST("/messages", g.SendMessage)
		api.POST("/messages/:id/read", g.MarkRead)
		api.GET("/messages/:id/reactions", g.GetMessageReactions)
		api.POST("/messages/:id/reactions", g.AddReaction)
		api.DELETE("/messages/:id/reactions", g.RemoveReaction) // ?emoji=...

		api.GET("/typing", g.GetTypingUsers)
		api.POST("/typing", g.SetTyping)
		api.GET("/presence", g.GetOnlineUsers)

		api.GET("/mutes", g.GetMutedUsers)
		api.POST("/mutes", g.MuteUser)
		api.DELETE("/mutes/:userId", g.UnmuteUser)

		api.GET("/profile", g.GetProfile)
		api.PUT("/profile/customization", g.UpdateCustomization)
	}
}
