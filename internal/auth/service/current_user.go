package service

import (
	"context"

	"github.com/google/uuid"

	"socialid/internal/auth/models"
	dErrors "socialid/pkg/domain-errors"
)

// CurrentUser returns the profile behind an authenticated session. The cache
// is read first since a freshly signed-up profile may not be durable yet.
// A session whose profile exists nowhere yields IsUser false.
func (s *Service) CurrentUser(ctx context.Context, profileID uuid.UUID, token string) (result *models.CurrentUserResult, err error) {
	ctx, span := s.startSpan(ctx, "CurrentUser")
	defer func() { endSpan(span, err) }()

	if profileID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Token is invalid. Please login again.")
	}

	profile, err := s.cache.Get(ctx, profileID)
	switch {
	case err == nil:
		return &models.CurrentUserResult{IsUser: true, User: profile, Token: token}, nil
	case !isNotFound(err):
		// The durable store still answers when the cache is down.
		s.logger.WarnContext(ctx, "profile cache read failed", "profile_id", profileID.String(), "error", err)
	}

	profile, err = s.profiles.FindByID(ctx, profileID)
	if err != nil {
		if isNotFound(err) {
			return &models.CurrentUserResult{IsUser: false}, nil
		}
		return nil, internal(err, "failed to load user")
	}
	return &models.CurrentUserResult{IsUser: true, User: profile, Token: token}, nil
}
