package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pushp314/chatsync/internal/auth"
	"github.com/pushp314/chatsync/internal/chat"
	"github.com/pushp314/chatsync/internal/config"
	"github.com/pushp314/chatsync/internal/database"
	"github.com/pushp314/chatsync/internal/handlers"
	"github.com/pushp314/chatsync/internal/middleware"
	"github.com/pushp314/chatsync/internal/realtime"
	"github.com/pushp314/chatsync/internal/routes"
	"github.com/pushp314/chatsync/internal/store"
	"github.com/pushp314/chatsync/pkg/logger"
)

func main() {
	config.LoadConfig()

	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}
	logger.Init(env)

	logger.Info().Str("environment", env).Msg("Starting chatsync client...")

	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	database.Connect()
	database.InitRedis()

	transport := realtime.NewRedisTransport(database.Redis)
	chatStore := store.NewGormStore(database.DB, transport)

	if err := chatStore.Migrate(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate chat tables")
	}

	ctx := context.Background()

	session, err := auth.NewSession(ctx, config.AppConfig.SessionToken, chatStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("Session token rejected")
	}
	logger.Info().Str("user_id", session.UserID()).Msg("Session established")

	client, err := chat.NewClient(ctx, session, chatStore, transport)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start sync client")
	}

	// Local gateway for the UI layer
	r := gin.New()
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	routes.RegisterChatRoutes(r, handlers.NewGateway(client))

	port := config.AppConfig.Port
	if port == "" {
		port = "8090"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		logger.Info().Str("port", port).Msg("Gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Gateway failed")
		}
	}()

	// Graceful teardown: untrack presence/typing before the process exits
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Gateway shutdown failed")
	}
	if err := client.Close(); err != nil {
		logger.Error().Err(err).Msg("Client teardown failed")
	}

	logger.Info().Msg("Goodbye")
}
