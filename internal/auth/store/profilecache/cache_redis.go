package profilecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"socialid/internal/auth/models"
	"socialid/pkg/platform/sentinel"
)

const (
	profileKeyPrefix = "users:"
	// uidIndexKey is a sorted set of profile ids scored by public uid.
	uidIndexKey = "user"
)

// RedisCache is the write-ahead profile cache. A profile written here is
// readable immediately, before its durable write has been processed.
type RedisCache struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func profileKey(id uuid.UUID) string {
	return profileKeyPrefix + id.String()
}

// Put stores profile and indexes it by uid in a single transaction.
func (c *RedisCache) Put(ctx context.Context, profile *models.UserProfile) error {
	if profile == nil {
		return fmt.Errorf("profile is required")
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, uidIndexKey, redis.Z{
			Score:  float64(profile.UID),
			Member: profile.ID.String(),
		})
		pipe.Set(ctx, profileKey(profile.ID), data, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache profile: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	data, err := c.client.Get(ctx, profileKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cached profile: %w", err)
	}
	var profile models.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	return &profile, nil
}

// FindByUID resolves a profile through the uid index.
func (c *RedisCache) FindByUID(ctx context.Context, uid int64) (*models.UserProfile, error) {
	score := fmt.Sprint(uid)
	ids, err := c.client.ZRangeByScore(ctx, uidIndexKey, &redis.ZRangeBy{
		Min:   score,
		Max:   score,
		Count: 1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read uid index: %w", err)
	}
	if len(ids) == 0 {
		return nil, sentinel.ErrNotFound
	}
	id, err := uuid.Parse(ids[0])
	if err != nil {
		return nil, fmt.Errorf("parse indexed profile id: %w", err)
	}
	return c.Get(ctx, id)
}
