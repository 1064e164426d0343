package model

import "time"

// Remix links a loop to the loop it was copied from.
type Remix struct {
	OriginalLoopID string    `db:"original_loop_id"`
	RemixLoopID    string    `db:"remix_loop_id"`
	RemixedBy      string    `db:"remixed_by"`
	CreatedAt      time.Time `db:"created_at"`
}
