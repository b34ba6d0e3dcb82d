package profilecache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"socialid/internal/auth/models"
	"socialid/pkg/platform/sentinel"
)

// InMemoryCache stores encoded profiles so callers never share mutable
// state with the cache, matching RedisCache.
type InMemoryCache struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID][]byte
	byUID    map[int64]uuid.UUID
}

func NewInMemory() *InMemoryCache {
	return &InMemoryCache{
		profiles: make(map[uuid.UUID][]byte),
		byUID:    make(map[int64]uuid.UUID),
	}
}

func (c *InMemoryCache) Put(_ context.Context, profile *models.UserProfile) error {
	if profile == nil {
		return fmt.Errorf("profile is required")
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[profile.ID] = data
	c.byUID[profile.UID] = profile.ID
	return nil
}

func (c *InMemoryCache) Get(_ context.Context, id uuid.UUID) (*models.UserProfile, error) {
	c.mu.RLock()
	data, ok := c.profiles[id]
	c.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	var profile models.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	return &profile, nil
}

func (c *InMemoryCache) FindByUID(ctx context.Context, uid int64) (*models.UserProfile, error) {
	c.mu.RLock()
	id, ok := c.byUID[uid]
	c.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Get(ctx, id)
}
