package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/loopfeed/loopfeed/internal/model"
)

var (
	ErrProfileNotFound   = errors.New("profile not found")
	ErrDuplicateUsername = errors.New("username already taken")
)

type ProfileRepository interface {
	ByUserID(ctx context.Context, userID string) (*model.Profile, error)
	ByUsername(ctx context.Context, username string) (*model.Profile, error)
	Create(ctx context.Context, profile *model.Profile) error
	Update(ctx context.Context, profile *model.Profile) error
	SearchByUsername(ctx context.Context, prefix string, exclude []string, limit int) ([]*model.Profile, error)
}

type profileRepository struct {
	db sqlx.ExtContext
}

func NewProfileRepository(db sqlx.ExtContext) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) ByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	err := sqlx.GetContext(ctx, r.db, &profile, `SELECT * FROM profiles WHERE user_id = $1`, userID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *profileRepository) ByUsername(ctx context.Context, username string) (*model.Profile, error) {
	var profile model.Profile
	err := sqlx.GetContext(ctx, r.db, &profile, `SELECT * FROM profiles WHERE username = $1`, username)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *model.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, user_id, username, display_name, bio, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, profile.ID, profile.UserID, profile.Username, profile.DisplayName, profile.Bio, profile.AvatarURL, profile.CreatedAt, profile.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateUsername
	}

	return err
}

func (r *profileRepository) Update(ctx context.Context, profile *model.Profile) error {
	profile.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE profiles
		SET display_name = $1, bio = $2, avatar_url = $3, updated_at = $4
		WHERE user_id = $5
	`, profile.DisplayName, profile.Bio, profile.AvatarURL, profile.UpdatedAt, profile.UserID)
	if err != nil {
		return err
	}

	return rowsAffected(result, ErrProfileNotFound)
}

// SearchByUsername lists profiles whose username starts with prefix, skipping
// the user ids in exclude.
func (r *profileRepository) SearchByUsername(ctx context.Context, prefix string, exclude []string, limit int) ([]*model.Profile, error) {
	profiles := []*model.Profile{}
	query := `SELECT * FROM profiles WHERE username LIKE $1 ESCAPE '\' ORDER BY username LIMIT $2`

	// Over-fetch so excluded rows do not shrink the page
	err := sqlx.SelectContext(ctx, r.db, &profiles, query, escapeLike(prefix)+"%", limit+len(exclude))
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	out := make([]*model.Profile, 0, limit)
	for _, p := range profiles {
		if skip[p.UserID] {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
