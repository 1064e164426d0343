package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/loopfeed/loopfeed/internal/model"
)

var ErrLoopNotFound = errors.New("loop not found")

type LoopRepository interface {
	Create(ctx context.Context, loop *model.Loop) error
	Update(ctx context.Context, loop *model.Loop) error
	ByID(ctx context.Context, id string) (*model.Loop, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
	Explore(ctx context.Context, tag string, limit, offset int) ([]*model.Loop, error)
	ByUserStatus(ctx context.Context, userID, status string) ([]*model.Loop, error)
	ByUser(ctx context.Context, userID string, publicOnly bool) ([]*model.Loop, error)
}

type loopRepository struct {
	db sqlx.ExtContext
}

func NewLoopRepository(db sqlx.ExtContext) LoopRepository {
	return &loopRepository{db: db}
}

func (r *loopRepository) Create(ctx context.Context, loop *model.Loop) error {
	now := time.Now()
	if loop.CreatedAt.IsZero() {
		loop.CreatedAt = now
	}
	loop.UpdatedAt = now

	query := `INSERT INTO loops (id, user_id, title, tagline, tags, autoplay, visibility, theme, font, bg_color, music, cover_url, is_remix, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.ExecContext(ctx, query,
		loop.ID,
		loop.UserID,
		loop.Title,
		loop.Tagline,
		loop.Tags,
		loop.Autoplay,
		loop.Visibility,
		loop.Theme,
		loop.Font,
		loop.BgColor,
		loop.Music,
		loop.CoverURL,
		loop.IsRemix,
		loop.Status,
		loop.CreatedAt,
		loop.UpdatedAt,
	)
	return err
}

func (r *loopRepository) Update(ctx context.Context, loop *model.Loop) error {
	loop.UpdatedAt = time.Now()

	query := `UPDATE loops
	          SET title = $1, tagline = $2, tags = $3, autoplay = $4, visibility = $5, theme = $6, font = $7,
	              bg_color = $8, music = $9, cover_url = $10, is_remix = $11, status = $12, updated_at = $13
	          WHERE id = $14`

	result, err := r.db.ExecContext(ctx, query,
		loop.Title,
		loop.Tagline,
		loop.Tags,
		loop.Autoplay,
		loop.Visibility,
		loop.Theme,
		loop.Font,
		loop.BgColor,
		loop.Music,
		loop.CoverURL,
		loop.IsRemix,
		loop.Status,
		loop.UpdatedAt,
		loop.ID,
	)
	if err != nil {
		return err
	}

	return rowsAffected(result, ErrLoopNotFound)
}

func (r *loopRepository) ByID(ctx context.Context, id string) (*model.Loop, error) {
	loop := &model.Loop{}
	query := `SELECT * FROM loops WHERE id = $1 AND status <> $2`

	err := sqlx.GetContext(ctx, r.db, loop, query, id, model.LoopStatusDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLoopNotFound
	}
	if err != nil {
		return nil, err
	}

	return loop, nil
}

func (r *loopRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE loops SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now(), id)
	if err != nil {
		return err
	}

	return rowsAffected(result, ErrLoopNotFound)
}

func (r *loopRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM loops WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return rowsAffected(result, ErrLoopNotFound)
}

// Explore lists public loops in normal status, newest first. An empty tag
// matches every loop.
func (r *loopRepository) Explore(ctx context.Context, tag string, limit, offset int) ([]*model.Loop, error) {
	loops := []*model.Loop{}
	query := `SELECT * FROM loops
	          WHERE status = $1 AND visibility = $2 AND tags LIKE $3 ESCAPE '\'
	          ORDER BY created_at DESC
	          LIMIT $4 OFFSET $5`

	pattern := "%"
	if tag != "" {
		pattern = `%"` + escapeLike(tag) + `"%`
	}

	err := sqlx.SelectContext(ctx, r.db, &loops, query, model.LoopStatusNormal, model.VisibilityPublic, pattern, limit, offset)
	return loops, err
}

func (r *loopRepository) ByUserStatus(ctx context.Context, userID, status string) ([]*model.Loop, error) {
	loops := []*model.Loop{}
	query := `SELECT * FROM loops WHERE user_id = $1 AND status = $2 ORDER BY updated_at DESC`

	err := sqlx.SelectContext(ctx, r.db, &loops, query, userID, status)
	return loops, err
}

// ByUser lists a user's loops in normal status. publicOnly hides private and
// unlisted loops.
func (r *loopRepository) ByUser(ctx context.Context, userID string, publicOnly bool) ([]*model.Loop, error) {
	loops := []*model.Loop{}
	query := `SELECT * FROM loops WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC`
	args := []any{userID, model.LoopStatusNormal}
	if publicOnly {
		query = `SELECT * FROM loops WHERE user_id = $1 AND status = $2 AND visibility = $3 ORDER BY created_at DESC`
		args = append(args, model.VisibilityPublic)
	}

	err := sqlx.SelectContext(ctx, r.db, &loops, query, args...)
	return loops, err
}
