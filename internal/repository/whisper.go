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

var ErrWhisperNotFound = errors.New("whisper not found")

type WhisperRepository interface {
	Create(ctx context.Context, whisper *model.Whisper) error
	ByID(ctx context.Context, id string) (*model.Whisper, error)
	ByRecipient(ctx context.Context, recipientID string) ([]*model.Whisper, error)
	MarkRead(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type whisperRepository struct {
	db sqlx.ExtContext
}

func NewWhisperRepository(db sqlx.ExtContext) WhisperRepository {
	return &whisperRepository{db: db}
}

func (r *whisperRepository) Create(ctx context.Context, whisper *model.Whisper) error {
	if whisper.ID == "" {
		whisper.ID = uuid.New().String()
	}
	if whisper.CreatedAt.IsZero() {
		whisper.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO whispers (id, loop_id, sender_id, recipient_id, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, whisper.ID, whisper.LoopID, whisper.SenderID, whisper.RecipientID, whisper.Message, whisper.Read, whisper.CreatedAt)
	return err
}

const whisperColumns = `w.id, w.loop_id, w.sender_id, w.recipient_id, w.message, w.is_read, w.created_at, l.title AS loop_title`

func (r *whisperRepository) ByID(ctx context.Context, id string) (*model.Whisper, error) {
	whisper := &model.Whisper{}
	query := `SELECT ` + whisperColumns + ` FROM whispers w JOIN loops l ON l.id = w.loop_id WHERE w.id = $1`

	err := sqlx.GetContext(ctx, r.db, whisper, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWhisperNotFound
	}
	if err != nil {
		return nil, err
	}
	return whisper, nil
}

// ByRecipient lists a user's whispers, newest first.
func (r *whisperRepository) ByRecipient(ctx context.Context, recipientID string) ([]*model.Whisper, error) {
	whispers := []*model.Whisper{}
	query := `SELECT ` + whisperColumns + ` FROM whispers w JOIN loops l ON l.id = w.loop_id
	          WHERE w.recipient_id = $1
	          ORDER BY w.created_at DESC`

	err := sqlx.SelectContext(ctx, r.db, &whispers, query, recipientID)
	return whispers, err
}

func (r *whisperRepository) MarkRead(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE whispers SET is_read = $1 WHERE id = $2`, true, id)
	if err != nil {
		return err
	}
	return rowsAffected(result, ErrWhisperNotFound)
}

func (r *whisperRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM whispers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(result, ErrWhisperNotFound)
}
