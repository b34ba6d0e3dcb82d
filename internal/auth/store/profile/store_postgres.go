package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"socialid/internal/auth/models"
	"socialid/pkg/platform/sentinel"
)

const profileColumns = `
	id, auth_id, uid, username, email, avatar_color, profile_picture,
	posts_count, followers_count, following_count, blocked, blocked_by,
	work, school, location, quote, bg_image_version, bg_image_id,
	notifications, social, created_at`

// PostgresStore persists user profiles in PostgreSQL. List and settings
// columns are stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts profile; inserting an existing id is a no-op.
func (s *PostgresStore) Create(ctx context.Context, profile *models.UserProfile) error {
	if profile == nil {
		return fmt.Errorf("profile is required")
	}
	blocked, err := json.Marshal(nonNil(profile.Blocked))
	if err != nil {
		return fmt.Errorf("encode blocked: %w", err)
	}
	blockedBy, err := json.Marshal(nonNil(profile.BlockedBy))
	if err != nil {
		return fmt.Errorf("encode blocked by: %w", err)
	}
	notifications, err := json.Marshal(profile.Notifications)
	if err != nil {
		return fmt.Errorf("encode notifications: %w", err)
	}
	social, err := json.Marshal(profile.Social)
	if err != nil {
		return fmt.Errorf("encode social: %w", err)
	}

	query := `
		INSERT INTO user_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		profile.ID,
		profile.AuthID,
		profile.UID,
		profile.Username,
		profile.Email,
		profile.AvatarColor,
		profile.ProfilePicture,
		profile.PostsCount,
		profile.FollowersCount,
		profile.FollowingCount,
		blocked,
		blockedBy,
		profile.Work,
		profile.School,
		profile.Location,
		profile.Quote,
		profile.BgImageVersion,
		profile.BgImageID,
		notifications,
		social,
		profile.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	return s.findOne(ctx, "find profile by id",
		`SELECT`+profileColumns+` FROM user_profiles WHERE id = $1`, id)
}

func (s *PostgresStore) FindByAuthID(ctx context.Context, authID uuid.UUID) (*models.UserProfile, error) {
	return s.findOne(ctx, "find profile by auth id",
		`SELECT`+profileColumns+` FROM user_profiles WHERE auth_id = $1`, authID)
}

func (s *PostgresStore) findOne(ctx context.Context, op, query string, args ...any) (*models.UserProfile, error) {
	var (
		p                                         models.UserProfile
		blocked, blockedBy, notifications, social []byte
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID,
		&p.AuthID,
		&p.UID,
		&p.Username,
		&p.Email,
		&p.AvatarColor,
		&p.ProfilePicture,
		&p.PostsCount,
		&p.FollowersCount,
		&p.FollowingCount,
		&blocked,
		&blockedBy,
		&p.Work,
		&p.School,
		&p.Location,
		&p.Quote,
		&p.BgImageVersion,
		&p.BgImageID,
		&notifications,
		&social,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, col := range []struct {
		raw []byte
		dst any
	}{
		{blocked, &p.Blocked},
		{blockedBy, &p.BlockedBy},
		{notifications, &p.Notifications},
		{social, &p.Social},
	} {
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("%s: decode column: %w", op, err)
		}
	}
	return &p, nil
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
