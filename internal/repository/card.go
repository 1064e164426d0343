package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/loopfeed/loopfeed/internal/model"
)

type CardRepository interface {
	Create(ctx context.Context, card *model.LoopCard) error
	ByLoop(ctx context.Context, loopID string) ([]*model.LoopCard, error)
	SetMediaUpload(ctx context.Context, cardID, mediaUploadID string) error
	DeleteByLoop(ctx context.Context, loopID string) error
}

type cardRepository struct {
	db sqlx.ExtContext
}

func NewCardRepository(db sqlx.ExtContext) CardRepository {
	return &cardRepository{db: db}
}

func (r *cardRepository) Create(ctx context.Context, card *model.LoopCard) error {
	if card.ID == "" {
		card.ID = uuid.New().String()
	}

	query := `INSERT INTO loop_cards (id, loop_id, position, type, content, provider, is_upload, is_cover, metadata, media_upload_id, thumbnail_url, thumbnail_time)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		card.ID,
		card.LoopID,
		card.Position,
		card.Type,
		card.Content,
		card.Provider,
		card.IsUpload,
		card.IsCover,
		card.Metadata,
		card.MediaUploadID,
		card.ThumbnailURL,
		card.ThumbnailTime,
	)
	return err
}

// ByLoop returns the cards of a loop in position order with their upload details.
func (r *cardRepository) ByLoop(ctx context.Context, loopID string) ([]*model.LoopCard, error) {
	cards := []*model.LoopCard{}
	query := `SELECT c.id, c.loop_id, c.position, c.type, c.content, c.provider, c.is_upload, c.is_cover,
	                 c.metadata, c.media_upload_id, c.thumbnail_url, c.thumbnail_time,
	                 m.file_name, m.file_type, m.size_bytes
	          FROM loop_cards c
	          LEFT JOIN media_uploads m ON m.id = c.media_upload_id
	          WHERE c.loop_id = $1
	          ORDER BY c.position`

	err := sqlx.SelectContext(ctx, r.db, &cards, query, loopID)
	return cards, err
}

func (r *cardRepository) SetMediaUpload(ctx context.Context, cardID, mediaUploadID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE loop_cards SET media_upload_id = $1 WHERE id = $2`, mediaUploadID, cardID)
	return err
}

func (r *cardRepository) DeleteByLoop(ctx context.Context, loopID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM loop_cards WHERE loop_id = $1`, loopID)
	return err
}
