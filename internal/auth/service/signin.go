package service

import (
	"context"

	"socialid/internal/auth/models"
	"socialid/pkg/requestcontext"
)

// Signin verifies credentials and issues a session token. The returned
// profile carries the identity's current username, email, avatar color, uid
// and creation time.
func (s *Service) Signin(ctx context.Context, req *models.SigninRequest) (result *models.AuthResult, err error) {
	ctx, span := s.startSpan(ctx, "Signin")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	identity, err := s.identities.FindByUsername(ctx, models.FirstLetterUppercase(req.Username))
	if err != nil {
		if isNotFound(err) {
			s.metrics.IncrementSignins("unknown_user")
			return nil, invalidCredentials()
		}
		return nil, internal(err, "failed to look up user")
	}

	ok, err := s.hasher.Verify(req.Password, identity.PasswordHash)
	if err != nil {
		return nil, internal(err, "failed to verify password")
	}
	if !ok {
		s.metrics.IncrementSignins("wrong_password")
		return nil, invalidCredentials()
	}

	profile, err := s.profiles.FindByAuthID(ctx, identity.ID)
	if err != nil {
		if isNotFound(err) {
			s.metrics.IncrementSignins("missing_profile")
			s.logger.WarnContext(ctx, "identity has no profile",
				"request_id", requestcontext.RequestID(ctx),
				"auth_id", identity.ID.String(),
			)
			return nil, invalidCredentials()
		}
		return nil, internal(err, "failed to look up profile")
	}
	profile.MergeIdentity(identity)

	token, err := s.tokens.IssueSessionToken(profile.ID, identity)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementSignins("success")
	return &models.AuthResult{
		Message: models.MessageSigninSuccess,
		User:    profile,
		Token:   token,
	}, nil
}
