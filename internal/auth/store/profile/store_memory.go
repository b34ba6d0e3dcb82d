package profile

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"socialid/internal/auth/models"
	"socialid/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]*models.UserProfile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[uuid.UUID]*models.UserProfile)}
}

func (s *InMemoryStore) Create(_ context.Context, profile *models.UserProfile) error {
	if profile == nil {
		return fmt.Errorf("profile is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.ID]; !ok {
		s.profiles[profile.ID] = clone(profile)
	}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[id]; ok {
		return clone(p), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByAuthID(_ context.Context, authID uuid.UUID) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.AuthID == authID {
			return clone(p), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func clone(p *models.UserProfile) *models.UserProfile {
	c := *p
	c.Blocked = slices.Clone(nonNil(p.Blocked))
	c.BlockedBy = slices.Clone(nonNil(p.BlockedBy))
	return &c
}
