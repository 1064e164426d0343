package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/loopfeed/loopfeed/internal/model"
)

var ErrRemixNotFound = errors.New("remix not found")

type RemixRepository interface {
	Create(ctx context.Context, remix *model.Remix) error
	OriginOf(ctx context.Context, remixLoopID string) (*model.Remix, error)
}

type remixRepository struct {
	db sqlx.ExtContext
}

func NewRemixRepository(db sqlx.ExtContext) RemixRepository {
	return &remixRepository{db: db}
}

func (r *remixRepository) Create(ctx context.Context, remix *model.Remix) error {
	if remix.CreatedAt.IsZero() {
		remix.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO remixes (original_loop_id, remix_loop_id, remixed_by, created_at)
		VALUES ($1, $2, $3, $4)
	`, remix.OriginalLoopID, remix.RemixLoopID, remix.RemixedBy, remix.CreatedAt)
	return err
}

func (r *remixRepository) OriginOf(ctx context.Context, remixLoopID string) (*model.Remix, error) {
	remix := &model.Remix{}
	err := sqlx.GetContext(ctx, r.db, remix, `SELECT * FROM remixes WHERE remix_loop_id = $1`, remixLoopID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRemixNotFound
	}
	if err != nil {
		return nil, err
	}
	return remix, nil
}
