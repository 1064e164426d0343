package model

import "time"

// Whisper is a private message about a loop, delivered to the loop's owner.
type Whisper struct {
	ID          string    `db:"id" json:"id"`
	LoopID      string    `db:"loop_id" json:"loop_id"`
	SenderID    *string   `db:"sender_id" json:"sender_id,omitempty"` // nil for anonymous whispers
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	Message     string    `db:"message" json:"message"`
	Read        bool      `db:"is_read" json:"read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	// Joined from loops
	LoopTitle string `db:"loop_title" json:"loop_title"`
}
