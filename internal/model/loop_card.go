package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// LoopCard is the persisted form of a card at a position within a loop.
type LoopCard struct {
	ID            string         `db:"id"`
	LoopID        string         `db:"loop_id"`
	Position      int            `db:"position"`
	Type          string         `db:"type"`
	Content       string         `db:"content"` // Text, URL, or storage path when IsUpload
	Provider      string         `db:"provider"`
	IsUpload      bool           `db:"is_upload"`
	IsCover       bool           `db:"is_cover"`
	Metadata      *EmbedMetadata `db:"metadata"`
	MediaUploadID *string        `db:"media_upload_id"`
	ThumbnailURL  string         `db:"thumbnail_url"`
	ThumbnailTime float64        `db:"thumbnail_time"`

	// Joined from media_uploads
	FileName *string `db:"file_name"`
	FileType *string `db:"file_type"`
	FileSize *int64  `db:"size_bytes"`
}

// EmbedMetadata is the Open Graph summary of a linked page.
type EmbedMetadata struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Site        string `json:"site"`
	OGType      string `json:"og_type,omitempty"`
}

// Complete reports whether both title and description were found.
func (m *EmbedMetadata) Complete() bool {
	return m != nil && m.Title != "" && m.Description != ""
}

// Equal compares two metadata values; nil equals nil only.
func (m *EmbedMetadata) Equal(o *EmbedMetadata) bool {
	if m == nil || o == nil {
		return m == nil && o == nil
	}
	return *m == *o
}

func (m EmbedMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *EmbedMetadata) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into EmbedMetadata", src)
	}
}
