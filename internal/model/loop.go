package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTransition = errors.New("invalid loop status transition")

const (
	LoopStatusNormal   = "normal"
	LoopStatusDraft    = "draft"
	LoopStatusArchived = "archived"
	LoopStatusTrashed  = "trashed"
	LoopStatusDeleted  = "deleted"
)

const (
	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityUnlisted = "unlisted"
)

type Loop struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Title      string     `db:"title" json:"title"`
	Tagline    string     `db:"tagline" json:"tagline"`
	Tags       StringList `db:"tags" json:"tags"`
	Autoplay   bool       `db:"autoplay" json:"autoplay"`
	Visibility string     `db:"visibility" json:"visibility"`
	Theme      string     `db:"theme" json:"theme"`
	Font       string     `db:"font" json:"font"`
	BgColor    string     `db:"bg_color" json:"bg_color"`
	Music      string     `db:"music" json:"music"`
	CoverURL   *string    `db:"cover_url" json:"cover_url,omitempty"`
	IsRemix    bool       `db:"is_remix" json:"is_remix"`
	Status     string     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

func (l *Loop) IsPublic() bool {
	return l.Visibility == VisibilityPublic
}

// ValidVisibility reports whether v is one of the loop visibilities.
func ValidVisibility(v string) bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityUnlisted:
		return true
	}
	return false
}

// Lifecycle actions a user can apply to a persisted loop.
const (
	LoopActionArchive = "archive"
	LoopActionRestore = "restore"
	LoopActionTrash   = "trash"
	LoopActionDiscard = "discard"
)

// loopTransitions lists, per action, the statuses it may start from and the status it leads to.
var loopTransitions = map[string]struct {
	from []string
	to   string
}{
	LoopActionArchive: {from: []string{LoopStatusNormal}, to: LoopStatusArchived},
	LoopActionRestore: {from: []string{LoopStatusArchived, LoopStatusTrashed, LoopStatusDraft}, to: LoopStatusNormal},
	LoopActionTrash:   {from: []string{LoopStatusNormal, LoopStatusArchived, LoopStatusDraft}, to: LoopStatusTrashed},
	LoopActionDiscard: {from: []string{LoopStatusDraft}, to: LoopStatusDeleted},
}

// NextStatus returns the status a loop in status current moves to under action.
func NextStatus(current, action string) (string, error) {
	t, ok := loopTransitions[action]
	if !ok {
		return "", fmt.Errorf("unknown loop action %q", action)
	}
	for _, from := range t.from {
		if from == current {
			return t.to, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s a loop in status %q", ErrInvalidTransition, action, current)
}

// StringList is a list of strings stored as a JSON array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	err := json.Unmarshal(raw, &out)
	if err != nil {
		return fmt.Errorf("invalid string list: %w", err)
	}
	*l = out
	return nil
}
