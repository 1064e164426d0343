package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameContent(t *testing.T) {
	pending := PendingFile{StagedPath: "/tmp/a", FileName: "a.png", MimeType: "image/png", Size: 3, Checksum: "abc"}
	restaged := pending
	restaged.StagedPath = "/tmp/b"
	other := pending
	other.Checksum = "def"

	tests := []struct {
		name string
		a, b Card
		want bool
	}{
		{"same text", TextCard{LocalID: "1", Text: "hi"}, TextCard{LocalID: "2", Text: "hi"}, true},
		{"different text", TextCard{Text: "hi"}, TextCard{Text: "ho"}, false},
		{"different kind", TextCard{Text: "https://x.com"}, EmbedCard{URL: "https://x.com"}, false},
		{"same file restaged", ImageCard{Source: pending}, ImageCard{Source: restaged}, true},
		{"different file bytes", ImageCard{Source: pending}, ImageCard{Source: other}, false},
		{"upload vs link", ImageCard{Source: StoredObject{Path: "p"}}, ImageCard{Source: LinkSource{URL: "p"}}, false},
		{
			"metadata differs",
			EmbedCard{URL: "https://e.com", Metadata: &EmbedMetadata{Title: "a"}},
			EmbedCard{URL: "https://e.com", Metadata: &EmbedMetadata{Title: "b"}},
			false,
		},
		{
			"metadata equal",
			EmbedCard{URL: "https://e.com", Metadata: &EmbedMetadata{Title: "a"}},
			EmbedCard{URL: "https://e.com", Metadata: &EmbedMetadata{Title: "a"}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameContent(tt.a, tt.b))
		})
	}
}

func TestNewCardRow(t *testing.T) {
	row, err := NewCardRow(VideoCard{
		LocalID:   "c1",
		Provider:  "YouTube",
		Source:    LinkSource{URL: "https://www.youtube.com/embed/dQw4w9WgXcQ"},
		Thumbnail: &Thumbnail{URL: "https://img/1.jpg", TimeSeconds: 2.5},
	}, "loop-1", 0)
	require.NoError(t, err)
	assert.Equal(t, "video", row.Type)
	assert.True(t, row.IsCover)
	assert.False(t, row.IsUpload)
	assert.Equal(t, "YouTube", row.Provider)
	assert.Equal(t, 2.5, row.ThumbnailTime)

	row, err = NewCardRow(SongCard{Source: StoredObject{Path: "loop_media/u/a.mp3"}}, "loop-1", 3)
	require.NoError(t, err)
	assert.True(t, row.IsUpload)
	assert.False(t, row.IsCover)
	assert.Equal(t, ProviderUpload, row.Provider)
	assert.Equal(t, "loop_media/u/a.mp3", row.Content)

	_, err = NewCardRow(ImageCard{Source: PendingFile{StagedPath: "/tmp/x"}}, "loop-1", 0)
	assert.Error(t, err)
	_, err = NewCardRow(TextCard{}, "loop-1", 0)
	assert.Error(t, err)
}

func TestCardFromRowRoundTrip(t *testing.T) {
	name := "clip.mp4"
	mediaID := "m1"
	cards := []Card{
		TextCard{Text: "hello"},
		VideoCard{Provider: ProviderUpload, Source: StoredObject{Path: "loop_media/u/1-clip.mp4", FileName: name, MediaUploadID: mediaID}},
		EmbedCard{URL: "https://e.com", Metadata: &EmbedMetadata{Title: "E"}},
		SocialCard{URL: "https://x.com/a/status/1", Platform: "x.com"},
	}

	for i, c := range cards {
		row, err := NewCardRow(c, "loop-1", i)
		require.NoError(t, err)
		if IsUpload(c) {
			row.FileName = &name
			row.MediaUploadID = &mediaID
		}

		back, err := CardFromRow(row, c.CardID())
		require.NoError(t, err)
		assert.True(t, SameContent(c, back), "card %d", i)
		assert.Equal(t, c.Kind(), back.Kind())
	}
}

func TestIsForeignObject(t *testing.T) {
	assert.False(t, IsForeignObject("loop_media/u1/a.png", "u1"))
	assert.True(t, IsForeignObject("loop_media/u2/a.png", "u1"))
	assert.False(t, IsForeignObject("https://imgur.com/a.png", "u1"))
}
