package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisService mirrors cheap, shared state into Redis: per-client rate
// limit counters and the set of currently connected users.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

// CheckRateLimit increments the counter for key and reports whether the
// caller is still under limit within the window.
func (s *RedisService) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return incr.Val() <= limit, nil
}

const onlineUsersKey = "portal:online_users"

// SetUserOnline records a user's live websocket connection.
func (s *RedisService) SetUserOnline(ctx context.Context, userID uint) error {
	return s.client.SAdd(ctx, onlineUsersKey, userID).Err()
}

// SetUserOffline removes a user from the online set.
func (s *RedisService) SetUserOffline(ctx context.Context, userID uint) error {
	return s.client.SRem(ctx, onlineUsersKey, userID).Err()
}

// GetOnlineUsers returns the ids of users with a live connection.
func (s *RedisService) GetOnlineUsers(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, onlineUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read online users: %w", err)
	}
	return ids, nil
}

// ClearOnlineUsers drops the online set, used at startup so stale
// entries from a previous run do not linger.
func (s *RedisService) ClearOnlineUsers(ctx context.Context) error {
	return s.client.Del(ctx, onlineUsersKey).Err()
}
