package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"socialid/internal/auth/models"
	"socialid/pkg/platform/sentinel"
)

// InMemoryStore mirrors PostgresStore for tests and single-process runs.
type InMemoryStore struct {
	mu         sync.RWMutex
	identities map[uuid.UUID]*models.AuthIdentity
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{identities: make(map[uuid.UUID]*models.AuthIdentity)}
}

func (s *InMemoryStore) Create(_ context.Context, identity *models.AuthIdentity) error {
	if identity == nil {
		return fmt.Errorf("identity is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[identity.ID]; ok {
		return nil
	}
	for _, existing := range s.identities {
		if existing.Username == identity.Username || existing.Email == identity.Email || existing.UID == identity.UID {
			return fmt.Errorf("create identity: %w", sentinel.ErrConflict)
		}
	}
	s.identities[identity.ID] = clone(identity)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.AuthIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if identity, ok := s.identities[id]; ok {
		return clone(identity), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByUsername(ctx context.Context, username string) (*models.AuthIdentity, error) {
	return s.find(func(a *models.AuthIdentity) bool { return a.Username == username })
}

func (s *InMemoryStore) FindByEmail(ctx context.Context, email string) (*models.AuthIdentity, error) {
	return s.find(func(a *models.AuthIdentity) bool { return a.Email == email })
}

func (s *InMemoryStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.AuthIdentity, error) {
	return s.find(func(a *models.AuthIdentity) bool { return a.Username == username || a.Email == email })
}

func (s *InMemoryStore) FindByResetToken(ctx context.Context, digest string, now time.Time) (*models.AuthIdentity, error) {
	return s.find(func(a *models.AuthIdentity) bool {
		return a.PasswordResetToken == digest && a.HasValidResetToken(now)
	})
}

func (s *InMemoryStore) UpdateResetToken(_ context.Context, id uuid.UUID, digest string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	identity.PasswordResetToken = digest
	identity.PasswordResetExpires = &expires
	return nil
}

func (s *InMemoryStore) ResetPassword(_ context.Context, id uuid.UUID, digest string, now time.Time, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[id]
	if !ok || identity.PasswordResetToken != digest || !identity.HasValidResetToken(now) {
		return sentinel.ErrNotFound
	}
	identity.PasswordHash = passwordHash
	identity.ClearResetToken()
	return nil
}

func (s *InMemoryStore) find(match func(*models.AuthIdentity) bool) (*models.AuthIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, identity := range s.identities {
		if match(identity) {
			return clone(identity), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func clone(identity *models.AuthIdentity) *models.AuthIdentity {
	c := *identity
	if identity.PasswordResetExpires != nil {
		t := *identity.PasswordResetExpires
		c.PasswordResetExpires = &t
	}
	return &c
}
