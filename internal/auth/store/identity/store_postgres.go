package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"socialid/internal/auth/models"
	"socialid/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

const identityColumns = `
	id, uid, username, email, avatar_color, password_hash,
	password_reset_token, password_reset_expires, created_at`

// PostgresStore persists credential records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts identity. Re-inserting the same id is a no-op so a
// redelivered persist job succeeds; a username, email or uid owned by a
// different id is sentinel.ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, identity *models.AuthIdentity) error {
	if identity == nil {
		return fmt.Errorf("identity is required")
	}
	query := `
		INSERT INTO auth_identities (
			id, uid, username, email, avatar_color, password_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		identity.ID,
		identity.UID,
		identity.Username,
		identity.Email,
		identity.AvatarColor,
		identity.PasswordHash,
		identity.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("create identity: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.AuthIdentity, error) {
	return s.findOne(ctx, "find identity by id",
		`SELECT`+identityColumns+` FROM auth_identities WHERE id = $1`, id)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*models.AuthIdentity, error) {
	return s.findOne(ctx, "find identity by username",
		`SELECT`+identityColumns+` FROM auth_identities WHERE username = $1`, username)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.AuthIdentity, error) {
	return s.findOne(ctx, "find identity by email",
		`SELECT`+identityColumns+` FROM auth_identities WHERE email = $1`, email)
}

func (s *PostgresStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.AuthIdentity, error) {
	return s.findOne(ctx, "find identity by username or email",
		`SELECT`+identityColumns+` FROM auth_identities WHERE username = $1 OR email = $2 LIMIT 1`,
		username, email)
}

// FindByResetToken matches the stored digest and ignores tokens that
// expired at or before now.
func (s *PostgresStore) FindByResetToken(ctx context.Context, digest string, now time.Time) (*models.AuthIdentity, error) {
	return s.findOne(ctx, "find identity by reset token",
		`SELECT`+identityColumns+` FROM auth_identities
		WHERE password_reset_token = $1 AND password_reset_expires > $2`,
		digest, now)
}

func (s *PostgresStore) UpdateResetToken(ctx context.Context, id uuid.UUID, digest string, expires time.Time) error {
	query := `
		UPDATE auth_identities
		SET password_reset_token = $2, password_reset_expires = $3
		WHERE id = $1
	`
	return s.execOne(ctx, "update reset token", query, id, digest, expires)
}

// ResetPassword stores the new hash and clears both reset fields in one
// statement guarded by the token, so a token cannot be used twice.
func (s *PostgresStore) ResetPassword(ctx context.Context, id uuid.UUID, digest string, now time.Time, passwordHash string) error {
	query := `
		UPDATE auth_identities
		SET password_hash = $2, password_reset_token = NULL, password_reset_expires = NULL
		WHERE id = $1 AND password_reset_token = $3 AND password_reset_expires > $4
	`
	return s.execOne(ctx, "reset password", query, id, passwordHash, digest, now)
}

func (s *PostgresStore) findOne(ctx context.Context, op, query string, args ...any) (*models.AuthIdentity, error) {
	var (
		identity     models.AuthIdentity
		resetToken   sql.NullString
		resetExpires sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&identity.ID,
		&identity.UID,
		&identity.Username,
		&identity.Email,
		&identity.AvatarColor,
		&identity.PasswordHash,
		&resetToken,
		&resetExpires,
		&identity.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	identity.PasswordResetToken = resetToken.String
	if resetExpires.Valid {
		t := resetExpires.Time
		identity.PasswordResetExpires = &t
	}
	return &identity, nil
}

func (s *PostgresStore) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
