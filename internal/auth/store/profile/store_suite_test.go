package profile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"socialid/internal/auth/models"
	"socialid/pkg/platform/sentinel"
)

type profileStore interface {
	Create(ctx context.Context, profile *models.UserProfile) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)
	FindByAuthID(ctx context.Context, authID uuid.UUID) (*models.UserProfile, error)
}

type StoreSuite struct {
	suite.Suite
	newStore func() profileStore
	store    profileStore
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore()
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func() profileStore { return NewInMemoryStore() }})
}

func newTestProfile() *models.UserProfile {
	identity := &models.AuthIdentity{
		ID:          uuid.New(),
		UID:         123456789012,
		Username:    "Kim",
		Email:       "Kim@test.com",
		AvatarColor: "red",
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	p := models.NewUserProfile(uuid.New(), identity)
	p.ProfilePicture = "https://media.test/v1/" + p.ID.String()
	return p
}

func (s *StoreSuite) TestRoundTrip() {
	ctx := context.Background()
	p := newTestProfile()
	p.Blocked = []uuid.UUID{uuid.New()}
	p.Social.Twitter = "@kim"
	s.Require().NoError(s.store.Create(ctx, p))

	byID, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.True(p.CreatedAt.Equal(byID.CreatedAt))
	byID.CreatedAt = p.CreatedAt
	s.Equal(p, byID)

	byAuth, err := s.store.FindByAuthID(ctx, p.AuthID)
	s.Require().NoError(err)
	s.Equal(p.ID, byAuth.ID)
}

func (s *StoreSuite) TestCreateIsIdempotent() {
	ctx := context.Background()
	p := newTestProfile()
	s.Require().NoError(s.store.Create(ctx, p))

	changed := *p
	changed.Work = "elsewhere"
	s.Require().NoError(s.store.Create(ctx, &changed))

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Empty(found.Work, "first write wins")
}

func (s *StoreSuite) TestNotFound() {
	ctx := context.Background()
	_, err := s.store.FindByID(ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByAuthID(ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
