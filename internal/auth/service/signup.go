package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"socialid/internal/auth/models"
	"socialid/internal/jobs"
	"socialid/internal/media"
	dErrors "socialid/pkg/domain-errors"
	"socialid/pkg/requestcontext"
)

const uidAttempts = 5

// Signup registers a user. The profile is cached before returning, so it is
// readable at once; the durable identity and profile writes are enqueued
// together as two jobs and may land later, in either order.
func (s *Service) Signup(ctx context.Context, req *models.SignupRequest) (result *models.AuthResult, err error) {
	ctx, span := s.startSpan(ctx, "Signup")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	username := models.FirstLetterUppercase(req.Username)
	email := models.FirstLetterUppercase(req.Email)

	_, err = s.identities.FindByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		return nil, invalidCredentials()
	case !isNotFound(err):
		return nil, internal(err, "failed to check existing user")
	}

	uid, err := s.allocateUID(ctx)
	if err != nil {
		return nil, internal(err, "failed to allocate user id")
	}
	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, internal(err, "failed to hash password")
	}
	identity := &models.AuthIdentity{
		ID:           uuid.New(),
		UID:          uid,
		Username:     username,
		Email:        email,
		AvatarColor:  req.AvatarColor,
		CreatedAt:    requestcontext.Now(ctx),
		PasswordHash: passwordHash,
	}
	profileID := uuid.New()

	avatar, err := s.uploadAvatar(ctx, req.AvatarImage, profileID)
	if err != nil {
		return nil, err
	}

	profile := models.NewUserProfile(profileID, identity)
	profile.ProfilePicture = avatar.URL
	if err := s.cache.Put(ctx, profile); err != nil {
		return nil, internal(err, "failed to cache user")
	}

	_, err = s.queue.EnqueueAll(ctx,
		jobs.Request{Queue: QueueAuth, Name: JobAddAuthUser, Payload: identity},
		jobs.Request{Queue: QueueUser, Name: JobAddUser, Payload: profile},
	)
	if err != nil {
		return nil, internal(err, "failed to schedule user persistence")
	}

	token, err := s.tokens.IssueSessionToken(profileID, identity)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementUsersCreated()
	s.logger.InfoContext(ctx, "user created",
		"request_id", requestcontext.RequestID(ctx),
		"profile_id", profileID.String(),
		"uid", uid,
	)
	return &models.AuthResult{
		Message: models.MessageSignupSuccess,
		User:    profile,
		Token:   token,
	}, nil
}

// allocateUID draws uids until one is not held by a cached profile.
func (s *Service) allocateUID(ctx context.Context) (int64, error) {
	for range uidAttempts {
		uid, err := models.NewUID()
		if err != nil {
			return 0, err
		}
		_, err = s.cache.FindByUID(ctx, uid)
		if isNotFound(err) {
			return uid, nil
		}
		if err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("no free uid after %d attempts", uidAttempts)
}

// uploadAvatar stores the signup avatar under the profile id. Any failure,
// including an undecodable data URI or a result without a version, is
// reported as UploadFailed.
func (s *Service) uploadAvatar(ctx context.Context, dataURI string, profileID uuid.UUID) (*media.UploadResult, error) {
	data, _, err := media.DecodeDataURI(dataURI)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUploadFailed, msgUploadFailed)
	}
	result, err := s.media.Upload(ctx, data, profileID.String(), true, true)
	if err != nil {
		s.logger.WarnContext(ctx, "avatar upload failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUploadFailed, msgUploadFailed)
	}
	if result == nil || result.Reference == "" || result.Version == "" {
		return nil, dErrors.New(dErrors.CodeUploadFailed, msgUploadFailed)
	}
	return result, nil
}
