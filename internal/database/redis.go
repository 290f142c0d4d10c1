package database

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/pushp314/chatsync/internal/config"
)

var Redis *redis.Client
var Ctx = context.Background()

func InitRedis() {
	Redis = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       0,
	})

	_, err := Redis.Ping(Ctx).Result()
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Realtime updates will be unavailable.", err)
	} else {
		log.Println("Connected to Redis successfully")
	}
}
