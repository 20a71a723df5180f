package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/friendcards/backend/internal/db"
	"github.com/friendcards/backend/internal/models"
)

// ProfileRepository defines the data access contract for profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile models.Profile) error
	FindByEmail(ctx context.Context, email string) (models.Profile, error)
	FindByUsername(ctx context.Context, username string) (models.Profile, error)
	FindByID(ctx context.Context, publicID string) (models.Profile, error)
	FindByIDs(ctx context.Context, publicIDs []string) (map[string]models.Profile, error)
	UpdateSettings(ctx context.Context, publicID string, settings models.ProfileSettings, at time.Time) (models.Profile, error)
}

// PostgresProfileRepository provides PostgreSQL-backed persistence for profiles.
type PostgresProfileRepository struct {
	pool db.Pool
}

// NewPostgresProfileRepository constructs a profile repository backed by PostgreSQL.
func NewPostgresProfileRepository(pool db.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

const profileColumns = `public_id, username, email, password_hash, display_name, avatar_url, interest_tags, is_public, created_at, updated_at`

func scanProfile(row pgx.Row) (models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.PublicID, &p.Username, &p.Email, &p.Password, &p.DisplayName, &p.AvatarURL, &p.InterestTags, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.Profile{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// Create persists a new profile.
func (r *PostgresProfileRepository) Create(ctx context.Context, profile models.Profile) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	tags := profile.InterestTags
	if tags == nil {
		tags = []string{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO profiles (public_id, username, email, password_hash, display_name, avatar_url, interest_tags, is_public, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, profile.PublicID, profile.Username, profile.Email, profile.Password, profile.DisplayName, profile.AvatarURL, tags, profile.IsPublic, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return classifyWriteError("insert profile", err)
	}

	return nil
}

// FindByEmail fetches a profile by its login email.
func (r *PostgresProfileRepository) FindByEmail(ctx context.Context, email string) (models.Profile, error) {
	return r.findOne(ctx, "email", email)
}

// FindByUsername fetches a profile by its case-insensitive username.
func (r *PostgresProfileRepository) FindByUsername(ctx context.Context, username string) (models.Profile, error) {
	return r.findOne(ctx, "username", strings.ToLower(strings.TrimSpace(username)))
}

// FindByID fetches a profile by its public identifier.
func (r *PostgresProfileRepository) FindByID(ctx context.Context, publicID string) (models.Profile, error) {
	return r.findOne(ctx, "public_id", publicID)
}

func (r *PostgresProfileRepository) findOne(ctx context.Context, column, value string) (models.Profile, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return models.Profile{}, err
	}
	defer conn.Release()

	// column is always one of the fixed names above.
	row := conn.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE `+column+` = $1`, value)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("select profile by %s: %w", column, err)
	}
	return profile, nil
}

// FindByIDs fetches every profile whose public id is listed. Unknown ids are omitted.
func (r *PostgresProfileRepository) FindByIDs(ctx context.Context, publicIDs []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(publicIDs))
	if len(publicIDs) == 0 {
		return out, nil
	}

	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE public_id = ANY($1)`, publicIDs)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out[profile.PublicID] = profile
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return out, nil
}

// UpdateSettings applies the non-nil settings and returns the updated profile.
func (r *PostgresProfileRepository) UpdateSettings(ctx context.Context, publicID string, settings models.ProfileSettings, at time.Time) (models.Profile, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return models.Profile{}, err
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE profiles
        SET display_name = COALESCE($2, display_name),
            interest_tags = COALESCE($3, interest_tags),
            is_public = COALESCE($4, is_public),
            updated_at = $5
        WHERE public_id = $1
        RETURNING `+profileColumns,
		publicID, settings.DisplayName, settings.InterestTags, settings.IsPublic, at)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("update profile settings: %w", err)
	}
	return profile, nil
}

var _ ProfileRepository = (*PostgresProfileRepository)(nil)
