package model

import (
	"time"
)

// MediaUpload records one object this service put into storage on behalf of a user.
type MediaUpload struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`      // Who owns the object
	LoopCardID   *string   `db:"loop_card_id"` // Card the object backs, nil once the card is gone
	FileName     string    `db:"file_name"`
	FileURL      string    `db:"file_url"` // Storage path, never a public URL
	FileType     string    `db:"file_type"`
	SizeBytes    int64     `db:"size_bytes"`
	ThumbnailURL string    `db:"thumbnail_url"`
	CreatedAt    time.Time `db:"created_at"`
}
