package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilsawlani/SnapLink/internal/pkg/env"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the Redis cache server
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: "",
		DB:       0,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to Redis cache: %v", err)
	} else {
		log.Printf("Successfully connected to Redis cache: %s", pong)
	}
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// Delete removes a key from the cache
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}

const userPlanKeyPrefix = "user_plan:"

// UserPlanKey is the cache key for a user's effective plan name.
func UserPlanKey(userID uint) string {
	return fmt.Sprintf("%s%d", userPlanKeyPrefix, userID)
}

// SetUserPlan caches the resolved plan name consulted by the feature gates.
func SetUserPlan(userID uint, planName string) error {
	return Set(UserPlanKey(userID), planName, 12*time.Hour)
}

// InvalidateUserPlan drops the cached plan after any entitlement change.
func InvalidateUserPlan(userID uint) error {
	return Delete(UserPlanKey(userID))
}
