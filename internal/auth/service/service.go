package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"socialid/internal/auth/models"
	"socialid/internal/jobs"
	"socialid/internal/mail"
	"socialid/internal/media"
	"socialid/internal/platform/metrics"
	dErrors "socialid/pkg/domain-errors"
	"socialid/pkg/platform/sentinel"
)

// IdentityStore is the durable credential store. Lookups return
// sentinel.ErrNotFound when nothing matches.
type IdentityStore interface {
	FindByUsername(ctx context.Context, username string) (*models.AuthIdentity, error)
	FindByEmail(ctx context.Context, email string) (*models.AuthIdentity, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.AuthIdentity, error)
	// FindByResetToken ignores tokens that expired at or before now.
	FindByResetToken(ctx context.Context, digest string, now time.Time) (*models.AuthIdentity, error)
	UpdateResetToken(ctx context.Context, id uuid.UUID, digest string, expires time.Time) error
	// ResetPassword stores passwordHash and clears both reset fields, but only
	// while the identity still holds digest unexpired at now. Otherwise it
	// returns sentinel.ErrNotFound and changes nothing.
	ResetPassword(ctx context.Context, id uuid.UUID, digest string, now time.Time, passwordHash string) error
	Create(ctx context.Context, identity *models.AuthIdentity) error
}

// ProfileStore is the durable profile store.
type ProfileStore interface {
	Create(ctx context.Context, profile *models.UserProfile) error
	FindByAuthID(ctx context.Context, authID uuid.UUID) (*models.UserProfile, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)
}

// ProfileCache is the fast-read store written ahead of the durable one.
type ProfileCache interface {
	Put(ctx context.Context, profile *models.UserProfile) error
	Get(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)
	FindByUID(ctx context.Context, uid int64) (*models.UserProfile, error)
}

type MediaStore interface {
	Upload(ctx context.Context, data []byte, publicID string, overwrite, invalidate bool) (*media.UploadResult, error)
}

type TokenIssuer interface {
	IssueSessionToken(profileID uuid.UUID, identity *models.AuthIdentity) (string, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type JobQueue interface {
	Enqueue(ctx context.Context, queue, name string, payload any) (jobs.Ref, error)
	// EnqueueAll queues every request or none of them.
	EnqueueAll(ctx context.Context, reqs ...jobs.Request) ([]jobs.Ref, error)
}

type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Queues and job names.
const (
	QueueAuth  = "auth"
	QueueUser  = "user"
	QueueEmail = "emails"

	JobAddAuthUser         = "addAuthUserToDB"
	JobAddUser             = "addUserToDB"
	JobForgotPasswordEmail = "forgotPasswordEmail"
)

// Error messages. Unknown users, wrong passwords and missing profiles all
// read the same.
const (
	msgInvalidCredentials = "Invalid credentials"
	msgUploadFailed       = "File upload: Error occurred. Try again."
	msgPasswordMismatch   = "Passwords do not match"
	msgTokenExpired       = "Reset token has expired"
)

// Service runs the signup, signin and password-reset flows. It writes new
// profiles to the cache and hands durable writes and email to the job queue.
type Service struct {
	identities IdentityStore
	profiles   ProfileStore
	cache      ProfileCache
	media      MediaStore
	tokens     TokenIssuer
	hasher     PasswordHasher
	queue      JobQueue
	mailer     Mailer

	logger           *slog.Logger
	metrics          *metrics.Metrics
	tracer           trace.Tracer
	clientURL        string
	jobConcurrency   int
	emailConcurrency int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithMailer sets the sender used by the email job handler.
func WithMailer(mailer Mailer) Option {
	return func(s *Service) {
		s.mailer = mailer
	}
}

// WithClientURL sets the frontend origin used in reset links.
func WithClientURL(url string) Option {
	return func(s *Service) {
		s.clientURL = url
	}
}

// WithJobConcurrency sets handler concurrency for the persist queues and the
// email queue.
func WithJobConcurrency(persist, email int) Option {
	return func(s *Service) {
		if persist > 0 {
			s.jobConcurrency = persist
		}
		if email > 0 {
			s.emailConcurrency = email
		}
	}
}

func New(
	identities IdentityStore,
	profiles ProfileStore,
	cache ProfileCache,
	mediaStore MediaStore,
	tokens TokenIssuer,
	hasher PasswordHasher,
	queue JobQueue,
	opts ...Option,
) (*Service, error) {
	if identities == nil || profiles == nil || cache == nil {
		return nil, errors.New("identity store, profile store and cache are required")
	}
	if mediaStore == nil || tokens == nil || hasher == nil || queue == nil {
		return nil, errors.New("media store, token issuer, hasher and job queue are required")
	}
	s := &Service{
		identities:       identities,
		profiles:         profiles,
		cache:            cache,
		media:            mediaStore,
		tokens:           tokens,
		hasher:           hasher,
		queue:            queue,
		logger:           slog.Default(),
		tracer:           otel.Tracer("socialid/internal/auth/service"),
		clientURL:        "http://localhost:3000",
		jobConcurrency:   5,
		emailConcurrency: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "auth."+name)
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
	}
	span.End()
}

func invalidCredentials() error {
	return dErrors.New(dErrors.CodeInvalidCredentials, msgInvalidCredentials)
}

// internal wraps an infrastructure failure so only a generic message
// reaches the client.
func internal(err error, msg string) error {
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
