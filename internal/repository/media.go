package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/loopfeed/loopfeed/internal/model"
)

type MediaRepository interface {
	Create(ctx context.Context, media *model.MediaUpload) error
	ByLoop(ctx context.Context, loopID string) ([]*model.MediaUpload, error)
	DeleteByLoop(ctx context.Context, loopID string) error
}

type mediaRepository struct {
	db sqlx.ExtContext
}

func NewMediaRepository(db sqlx.ExtContext) MediaRepository {
	return &mediaRepository{db: db}
}

func (r *mediaRepository) Create(ctx context.Context, media *model.MediaUpload) error {
	if media.ID == "" {
		media.ID = uuid.New().String()
	}
	if media.CreatedAt.IsZero() {
		media.CreatedAt = time.Now()
	}

	query := `INSERT INTO media_uploads (id, user_id, loop_card_id, file_name, file_url, file_type, size_bytes, thumbnail_url, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		media.ID,
		media.UserID,
		media.LoopCardID,
		media.FileName,
		media.FileURL,
		media.FileType,
		media.SizeBytes,
		media.ThumbnailURL,
		media.CreatedAt,
	)
	return err
}

// ByLoop returns the media records attached to the cards of a loop.
func (r *mediaRepository) ByLoop(ctx context.Context, loopID string) ([]*model.MediaUpload, error) {
	media := []*model.MediaUpload{}
	query := `SELECT m.* FROM media_uploads m
	          JOIN loop_cards c ON c.id = m.loop_card_id
	          WHERE c.loop_id = $1
	          ORDER BY c.position`

	err := sqlx.SelectContext(ctx, r.db, &media, query, loopID)
	return media, err
}

// DeleteByLoop removes the media records of a loop's cards. Call it before
// the cards are deleted, which would otherwise detach the records.
func (r *mediaRepository) DeleteByLoop(ctx context.Context, loopID string) error {
	query := `DELETE FROM media_uploads WHERE loop_card_id IN (SELECT id FROM loop_cards WHERE loop_id = $1)`

	_, err := r.db.ExecContext(ctx, query, loopID)
	return err
}
