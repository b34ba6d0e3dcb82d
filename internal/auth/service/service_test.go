package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"socialid/internal/auth/models"
	"socialid/internal/auth/resettoken"
	"socialid/internal/auth/service/mocks"
	"socialid/internal/jobs"
	"socialid/internal/mail"
	"socialid/internal/media"
	dErrors "socialid/pkg/domain-errors"
	"socialid/pkg/platform/sentinel"
	"socialid/pkg/requestcontext"
)

const testAvatar = "data:image/png;base64,iVBORw0KGgo="

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	identities *mocks.MockIdentityStore
	profiles   *mocks.MockProfileStore
	cache      *mocks.MockProfileCache
	media      *mocks.MockMediaStore
	tokens     *mocks.MockTokenIssuer
	hasher     *mocks.MockPasswordHasher
	queue      *mocks.MockJobQueue
	mailer     *mocks.MockMailer
	service    *Service
	now        time.Time
	ctx        context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.identities = mocks.NewMockIdentityStore(s.ctrl)
	s.profiles = mocks.NewMockProfileStore(s.ctrl)
	s.cache = mocks.NewMockProfileCache(s.ctrl)
	s.media = mocks.NewMockMediaStore(s.ctrl)
	s.tokens = mocks.NewMockTokenIssuer(s.ctrl)
	s.hasher = mocks.NewMockPasswordHasher(s.ctrl)
	s.queue = mocks.NewMockJobQueue(s.ctrl)
	s.mailer = mocks.NewMockMailer(s.ctrl)

	var err error
	s.service, err = New(s.identities, s.profiles, s.cache, s.media, s.tokens, s.hasher, s.queue,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMailer(s.mailer),
		WithClientURL("https://social.example/"),
	)
	s.Require().NoError(err)

	s.now = time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithClientMetadata(s.ctx, "203.0.113.7", "test-agent")
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) storedIdentity() *models.AuthIdentity {
	return &models.AuthIdentity{
		ID:           uuid.New(),
		UID:          123456789012,
		Username:     "Kim",
		Email:        "Kim@test.com",
		AvatarColor:  "red",
		CreatedAt:    s.now.Add(-24 * time.Hour),
		PasswordHash: "$argon2id$stored",
	}
}

func (s *ServiceSuite) expectFreeUID() {
	s.cache.EXPECT().FindByUID(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
}

func (s *ServiceSuite) TestNew() {
	s.Run("missing collaborators are rejected", func() {
		_, err := New(nil, s.profiles, s.cache, s.media, s.tokens, s.hasher, s.queue)
		s.ErrorContains(err, "identity store")

		_, err = New(s.identities, s.profiles, s.cache, s.media, s.tokens, s.hasher, nil)
		s.ErrorContains(err, "job queue")
	})
}

func (s *ServiceSuite) TestSignup() {
	s.Run("caches the profile, enqueues both persist jobs and issues a token", func() {
		req := &models.SignupRequest{
			Username: " kim ", Email: "kim@test.com", Password: "qwerty",
			AvatarColor: "red", AvatarImage: testAvatar,
		}

		var cached *models.UserProfile
		var enqueuedIdentity *models.AuthIdentity
		var enqueued []jobs.Request
		var drawnUID int64
		gomock.InOrder(
			s.identities.EXPECT().FindByUsernameOrEmail(gomock.Any(), "Kim", "Kim@test.com").Return(nil, sentinel.ErrNotFound),
			s.cache.EXPECT().FindByUID(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, uid int64) (*models.UserProfile, error) {
				drawnUID = uid
				return nil, sentinel.ErrNotFound
			}),
			s.hasher.EXPECT().Hash("qwerty").Return("$argon2id$hash", nil),
			s.media.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), true, true).
				DoAndReturn(func(_ context.Context, _ []byte, publicID string, _, _ bool) (*media.UploadResult, error) {
					return &media.UploadResult{Reference: publicID, Version: "1", URL: "https://cdn.example/v1/" + publicID}, nil
				}),
			s.cache.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p *models.UserProfile) error {
				cached = p
				return nil
			}),
			s.queue.EXPECT().EnqueueAll(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, reqs ...jobs.Request) ([]jobs.Ref, error) {
					enqueued = reqs
					enqueuedIdentity = reqs[0].Payload.(*models.AuthIdentity)
					return make([]jobs.Ref, len(reqs)), nil
				}),
			s.tokens.EXPECT().IssueSessionToken(gomock.Any(), gomock.Any()).Return("session-token", nil),
		)

		result, err := s.service.Signup(s.ctx, req)
		s.Require().NoError(err)

		s.Equal(models.MessageSignupSuccess, result.Message)
		s.Equal("session-token", result.Token)
		s.Equal("Kim", result.User.Username)
		s.Equal("Kim@test.com", result.User.Email)
		s.Equal("https://cdn.example/v1/"+result.User.ID.String(), result.User.ProfilePicture)
		s.Same(result.User, cached)
		s.Equal(enqueuedIdentity.ID, cached.AuthID)
		s.Equal("$argon2id$hash", enqueuedIdentity.PasswordHash)
		s.Equal(s.now, enqueuedIdentity.CreatedAt)
		s.Equal(drawnUID, enqueuedIdentity.UID)
		s.Equal(drawnUID, cached.UID)

		s.Require().Len(enqueued, 2)
		s.Equal(QueueAuth, enqueued[0].Queue)
		s.Equal(JobAddAuthUser, enqueued[0].Name)
		s.Equal(QueueUser, enqueued[1].Queue)
		s.Equal(JobAddUser, enqueued[1].Name)
		s.Same(cached, enqueued[1].Payload)
	})

	s.Run("uid held by a cached profile is redrawn", func() {
		req := &models.SignupRequest{
			Username: "kim", Email: "kim@test.com", Password: "qwerty",
			AvatarColor: "red", AvatarImage: testAvatar,
		}
		var taken, free int64
		s.identities.EXPECT().FindByUsernameOrEmail(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		gomock.InOrder(
			s.cache.EXPECT().FindByUID(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, uid int64) (*models.UserProfile, error) {
				taken = uid
				return &models.UserProfile{UID: uid}, nil
			}),
			s.cache.EXPECT().FindByUID(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, uid int64) (*models.UserProfile, error) {
				free = uid
				return nil, sentinel.ErrNotFound
			}),
		)
		s.hasher.EXPECT().Hash(gomock.Any()).Return("$argon2id$hash", nil)
		s.media.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), true, true).
			Return(&media.UploadResult{Reference: "x", Version: "1", URL: "https://cdn.example/x"}, nil)
		s.cache.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)
		s.queue.EXPECT().EnqueueAll(gomock.Any(), gomock.Any(), gomock.Any()).Return(make([]jobs.Ref, 2), nil)
		s.tokens.EXPECT().IssueSessionToken(gomock.Any(), gomock.Any()).Return("session-token", nil)

		result, err := s.service.Signup(s.ctx, req)
		s.Require().NoError(err)
		s.Equal(free, result.User.UID)
		s.NotZero(taken)
	})

	s.Run("uid lookup failure is internal", func() {
		req := &models.SignupRequest{
			Username: "kim", Email: "kim@test.com", Password: "qwerty",
			AvatarColor: "red", AvatarImage: testAvatar,
		}
		s.identities.EXPECT().FindByUsernameOrEmail(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.cache.EXPECT().FindByUID(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis unavailable"))

		_, err := s.service.Signup(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("every drawn uid taken is internal", func() {
		req := &models.SignupRequest{
			Username: "kim", Email: "kim@test.com", Password: "qwerty",
			AvatarColor: "red", AvatarImage: testAvatar,
		}
		s.identities.EXPECT().FindByUsernameOrEmail(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.cache.EXPECT().FindByUID(gomock.Any(), gomock.Any()).Return(&models.UserProfile{}, nil).Times(uidAttempts)

		_, err := s.service.Signup(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("enqueue failure schedules nothing and issues no token", func() {
		req := &models.SignupRequest{
			Username: "kim", Email: "kim@test.com", Password: "qwerty",
			AvatarColor: "red", AvatarImage: testAvatar,
		}
		s.identities.EXPECT().FindByUsernameOrEmail(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.expectFreeUID()
		s.hasher.EXPECT().Hash(gomock.Any()).Return("$argon2id$hash", nil)
		s.media.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), true, true).
			Return(&media.UploadResult{Reference: "x", Version: "1", URL: "https://cdn.example/x"}, nil)
		s.cache.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)
		s.queue.EXPECT().EnqueueAll(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("broker unavailable"))

		_, err := s.service.Signup(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("existing username or email is rejected without side effects", func() {
		req := &models.SignupRequest{
			Username: "kim", Email: "kim@test.com", Password: "qwerty",
			AvatarColor: "red", AvatarImage: testAvatar,
		}
		s.identities.EXPECT().FindByUsernameOrEmail(gomock.Any(), "Kim", "Kim@test.com").Return(s.storedIdentity(), nil)

		_, err := s.service.Signup(s.ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
		s.Equal("Invalid credentials", dErrors.MessageOf(err))
	})

	s.Run("invalid input never reaches a store", func() {
		_, err := s.service.Signup(s.ctx, &models.SignupRequest{Username: "kim"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("upload failure aborts before any write", func() {
		req := &models.SignupRequest{
			Username: "kim", Email: "kim@test.com", Password: "qwerty",
			AvatarColor: "red", AvatarImage: testAvatar,
		}
		s.identities.EXPECT().FindByUsernameOrEmail(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.expectFreeUID()
		s.hasher.EXPECT().Hash(gomock.Any()).Return("$argon2id$hash", nil)
		s.media.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), true, true).Return(nil, errors.New("s3 unavailable"))

		_, err := s.service.Signup(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeUploadFailed))
		s.Equal("File upload: Error occurred. Try again.", dErrors.MessageOf(err))
	})

	s.Run("upload without a version counts as a failure", func() {
		req := &models.SignupRequest{
			Username: "kim", Email: "kim@test.com", Password: "qwerty",
			AvatarColor: "red", AvatarImage: testAvatar,
		}
		s.identities.EXPECT().FindByUsernameOrEmail(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.expectFreeUID()
		s.hasher.EXPECT().Hash(gomock.Any()).Return("$argon2id$hash", nil)
		s.media.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), true, true).Return(&media.UploadResult{Reference: "x"}, nil)

		_, err := s.service.Signup(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeUploadFailed))
	})

	s.Run("undecodable avatar is an upload failure", func() {
		req := &models.SignupRequest{
			Username: "kim", Email: "kim@test.com", Password: "qwerty",
			AvatarColor: "red", AvatarImage: "not-a-data-uri",
		}
		s.identities.EXPECT().FindByUsernameOrEmail(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.expectFreeUID()
		s.hasher.EXPECT().Hash(gomock.Any()).Return("$argon2id$hash", nil)

		_, err := s.service.Signup(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeUploadFailed))
	})

	s.Run("store failure during the uniqueness check is internal", func() {
		req := &models.SignupRequest{
			Username: "kim", Email: "kim@test.com", Password: "qwerty",
			AvatarColor: "red", AvatarImage: testAvatar,
		}
		s.identities.EXPECT().FindByUsernameOrEmail(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

		_, err := s.service.Signup(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestSignin() {
	req := func() *models.SigninRequest {
		return &models.SigninRequest{Username: "kim", Password: "qwerty"}
	}

	s.Run("returns the profile merged with identity fields", func() {
		identity := s.storedIdentity()
		profile := &models.UserProfile{ID: uuid.New(), AuthID: identity.ID, Username: "stale", ProfilePicture: "pic"}

		s.identities.EXPECT().FindByUsername(gomock.Any(), "Kim").Return(identity, nil)
		s.hasher.EXPECT().Verify("qwerty", identity.PasswordHash).Return(true, nil)
		s.profiles.EXPECT().FindByAuthID(gomock.Any(), identity.ID).Return(profile, nil)
		s.tokens.EXPECT().IssueSessionToken(profile.ID, identity).Return("session-token", nil)

		result, err := s.service.Signin(s.ctx, req())
		s.Require().NoError(err)
		s.Equal(models.MessageSigninSuccess, result.Message)
		s.Equal("Kim", result.User.Username)
		s.Equal(identity.UID, result.User.UID)
		s.Equal("pic", result.User.ProfilePicture)
		s.Equal("session-token", result.Token)
	})

	s.Run("unknown user", func() {
		s.identities.EXPECT().FindByUsername(gomock.Any(), "Kim").Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Signin(s.ctx, req())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	})

	s.Run("wrong password reads the same as an unknown user", func() {
		identity := s.storedIdentity()
		s.identities.EXPECT().FindByUsername(gomock.Any(), "Kim").Return(identity, nil)
		s.hasher.EXPECT().Verify("qwerty", identity.PasswordHash).Return(false, nil)

		_, err := s.service.Signin(s.ctx, req())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
		s.Equal("Invalid credentials", dErrors.MessageOf(err))
	})

	s.Run("identity without a profile", func() {
		identity := s.storedIdentity()
		s.identities.EXPECT().FindByUsername(gomock.Any(), "Kim").Return(identity, nil)
		s.hasher.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(true, nil)
		s.profiles.EXPECT().FindByAuthID(gomock.Any(), identity.ID).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Signin(s.ctx, req())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	})
}

func (s *ServiceSuite) TestRequestPasswordReset() {
	s.Run("stores a digest with a one hour expiry and emails the plaintext link", func() {
		identity := s.storedIdentity()
		var storedDigest string
		var email mail.Message

		s.identities.EXPECT().FindByEmail(gomock.Any(), "Kim@test.com").Return(identity, nil)
		s.identities.EXPECT().UpdateResetToken(gomock.Any(), identity.ID, gomock.Any(), s.now.Add(time.Hour)).
			DoAndReturn(func(_ context.Context, _ uuid.UUID, digest string, _ time.Time) error {
				storedDigest = digest
				return nil
			})
		s.queue.EXPECT().Enqueue(gomock.Any(), QueueEmail, JobForgotPasswordEmail, gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _ string, payload any) (jobs.Ref, error) {
				email = payload.(mail.Message)
				return jobs.Ref{}, nil
			})

		result, err := s.service.RequestPasswordReset(s.ctx, &models.ForgotPasswordRequest{Email: "kim@test.com"})
		s.Require().NoError(err)
		s.Equal(models.MessageResetEmailSent, result.Message)

		s.Equal("Kim@test.com", email.To)
		s.Equal(mail.SubjectPasswordReset, email.Subject)
		_, after, found := strings.Cut(email.HTML, "https://social.example/reset-password?token=")
		s.Require().True(found, "email links to the reset page")
		token := after[:resettoken.TokenBytes*2]
		s.True(resettoken.Matches(token, storedDigest))
		s.NotContains(email.HTML, storedDigest)
	})

	s.Run("unknown email", func() {
		s.identities.EXPECT().FindByEmail(gomock.Any(), "Nobody@test.com").Return(nil, sentinel.ErrNotFound)

		_, err := s.service.RequestPasswordReset(s.ctx, &models.ForgotPasswordRequest{Email: "nobody@test.com"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	})
}

func (s *ServiceSuite) TestResetPassword() {
	s.Run("mismatched passwords touch nothing", func() {
		_, err := s.service.ResetPassword(s.ctx, &models.ResetPasswordRequest{
			Token: "abc", Password: "secret1", ConfirmPassword: "secret2",
		})
		s.True(dErrors.HasCode(err, dErrors.CodePasswordMismatch))
		s.Equal("Passwords do not match", dErrors.MessageOf(err))
	})

	s.Run("unknown or expired token", func() {
		s.identities.EXPECT().FindByResetToken(gomock.Any(), resettoken.Digest("abc"), s.now).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.ResetPassword(s.ctx, &models.ResetPasswordRequest{
			Token: "abc", Password: "secret1", ConfirmPassword: "secret1",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeTokenExpired))
		s.Equal("Reset token has expired", dErrors.MessageOf(err))
	})

	s.Run("token consumed after the lookup sends nothing", func() {
		identity := s.storedIdentity()
		s.identities.EXPECT().FindByResetToken(gomock.Any(), resettoken.Digest("abc"), s.now).Return(identity, nil)
		s.hasher.EXPECT().Hash("secret1").Return("$argon2id$new", nil)
		s.identities.EXPECT().ResetPassword(gomock.Any(), identity.ID, resettoken.Digest("abc"), s.now, "$argon2id$new").
			Return(sentinel.ErrNotFound)

		_, err := s.service.ResetPassword(s.ctx, &models.ResetPasswordRequest{
			Token: "abc", Password: "secret1", ConfirmPassword: "secret1",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeTokenExpired))
	})

	s.Run("updates the hash and sends a confirmation", func() {
		identity := s.storedIdentity()
		var email mail.Message

		s.identities.EXPECT().FindByResetToken(gomock.Any(), resettoken.Digest("abc"), s.now).Return(identity, nil)
		s.hasher.EXPECT().Hash("secret1").Return("$argon2id$new", nil)
		s.identities.EXPECT().ResetPassword(gomock.Any(), identity.ID, resettoken.Digest("abc"), s.now, "$argon2id$new").Return(nil)
		s.queue.EXPECT().Enqueue(gomock.Any(), QueueEmail, JobForgotPasswordEmail, gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _ string, payload any) (jobs.Ref, error) {
				email = payload.(mail.Message)
				return jobs.Ref{}, nil
			})

		result, err := s.service.ResetPassword(s.ctx, &models.ResetPasswordRequest{
			Token: "abc", Password: "secret1", ConfirmPassword: "secret1",
		})
		s.Require().NoError(err)
		s.Equal(models.MessagePasswordReset, result.Message)
		s.Equal(mail.SubjectPasswordResetConfirmation, email.Subject)
		s.Contains(email.HTML, "203.0.113.7")
		s.Contains(email.HTML, "14/03/2026 09:26")
	})
}

func (s *ServiceSuite) TestCurrentUser() {
	profileID := uuid.New()

	s.Run("cache hit", func() {
		s.cache.EXPECT().Get(gomock.Any(), profileID).Return(&models.UserProfile{ID: profileID}, nil)

		result, err := s.service.CurrentUser(s.ctx, profileID, "tok")
		s.Require().NoError(err)
		s.True(result.IsUser)
		s.Equal("tok", result.Token)
	})

	s.Run("cache miss falls back to the durable store", func() {
		s.cache.EXPECT().Get(gomock.Any(), profileID).Return(nil, sentinel.ErrNotFound)
		s.profiles.EXPECT().FindByID(gomock.Any(), profileID).Return(&models.UserProfile{ID: profileID}, nil)

		result, err := s.service.CurrentUser(s.ctx, profileID, "tok")
		s.Require().NoError(err)
		s.True(result.IsUser)
	})

	s.Run("profile nowhere", func() {
		s.cache.EXPECT().Get(gomock.Any(), profileID).Return(nil, sentinel.ErrNotFound)
		s.profiles.EXPECT().FindByID(gomock.Any(), profileID).Return(nil, sentinel.ErrNotFound)

		result, err := s.service.CurrentUser(s.ctx, profileID, "tok")
		s.Require().NoError(err)
		s.False(result.IsUser)
		s.Nil(result.User)
	})
}

func (s *ServiceSuite) TestJobHandlers() {
	runner := jobs.NewRunner(jobs.NewMemoryBackend())
	s.Require().NoError(s.service.RegisterJobHandlers(runner))

	s.Run("persist identity treats conflicts as permanent", func() {
		identity := s.storedIdentity()
		job := encodeJob(s.T(), QueueAuth, JobAddAuthUser, identity)
		s.identities.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)

		err := s.service.persistIdentity(s.ctx, job)
		s.True(jobs.IsPermanent(err))
	})

	s.Run("persist profile surfaces transient errors for retry", func() {
		job := encodeJob(s.T(), QueueUser, JobAddUser, &models.UserProfile{ID: uuid.New()})
		s.profiles.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("timeout"))

		err := s.service.persistProfile(s.ctx, job)
		s.Require().Error(err)
		s.False(jobs.IsPermanent(err))
	})

	s.Run("email job is handed to the mailer", func() {
		msg := mail.Message{To: "Kim@test.com", Subject: "s", HTML: "<p>x</p>"}
		s.mailer.EXPECT().Send(gomock.Any(), msg).Return(nil)

		s.NoError(s.service.sendEmail(s.ctx, encodeJob(s.T(), QueueEmail, JobForgotPasswordEmail, msg)))
	})

	s.Run("registration requires a mailer", func() {
		svc, err := New(s.identities, s.profiles, s.cache, s.media, s.tokens, s.hasher, s.queue)
		s.Require().NoError(err)
		s.Error(svc.RegisterJobHandlers(jobs.NewRunner(jobs.NewMemoryBackend())))
	})
}
