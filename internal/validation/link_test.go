package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVideoEmbedURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ", true},
		{"https://youtube.com/embed/dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ?t=10", "https://www.youtube.com/embed/dQw4w9WgXcQ", true},
		{"https://vimeo.com/76979871", "https://player.vimeo.com/video/76979871", true},
		{"https://www.youtube.com/watch?v=short", "", false},
		{"https://vimeo.com/channels/staffpicks", "", false},
		{"https://example.com/video.mp4", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := VideoEmbedURL(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSongEmbedURL(t *testing.T) {
	tests := []struct {
		in       string
		want     string
		provider string
		ok       bool
	}{
		{"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", "https://open.spotify.com/embed/track/4uLU6hMCjMI75M1A2tKUQC", ProviderSpotify, true},
		{"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "https://open.spotify.com/embed/playlist/37i9dQZF1DXcBWIGoYBM5M", ProviderSpotify, true},
		{"https://open.spotify.com/embed/album/1DFixLWuPkv3KT3TnV35m3", "https://open.spotify.com/embed/album/1DFixLWuPkv3KT3TnV35m3", ProviderSpotify, true},
		{"https://music.apple.com/us/album/folklore/1524801260", "https://embed.music.apple.com/us/album/folklore/1524801260", ProviderAppleMusic, true},
		{"https://embed.music.apple.com/us/album/folklore/1524801260", "https://embed.music.apple.com/us/album/folklore/1524801260", ProviderAppleMusic, true},
		{
			"https://soundcloud.com/artist/track",
			"https://w.soundcloud.com/player/?url=https%3A%2F%2Fsoundcloud.com%2Fartist%2Ftrack&color=%23000000&auto_play=false&hide_related=false&show_comments=true&show_user=true&show_reposts=false",
			ProviderSoundCloud, true,
		},
		{"https://w.soundcloud.com/player/?url=x", "https://w.soundcloud.com/player/?url=x", ProviderSoundCloud, true},
		{"https://example.com/song.MP3", "https://example.com/song.MP3", ProviderAudioURL, true},
		{"https://open.spotify.com/artist/0OdUWJ0sBjDrqHygGUXeCF", "", "", false},
		{"https://example.com/song.flac", "", "", false},
		{"not a url", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, provider, ok := SongEmbedURL(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.provider, provider)
		})
	}
}

func TestIsTrustedImageURL(t *testing.T) {
	assert.True(t, IsTrustedImageURL("https://images.unsplash.com/photo-1"))
	assert.True(t, IsTrustedImageURL("https://i.imgur.com/abc.png"))
	assert.True(t, IsTrustedImageURL("https://res.cloudinary.com/demo/image/upload/sample.jpg"))
	assert.True(t, IsTrustedImageURL("https://cdn.sanity.io/images/x.png"))
	assert.False(t, IsTrustedImageURL("https://example.com/a.png"))
	assert.False(t, IsTrustedImageURL("ftp://imgur.com/a.png"))
}

func TestSocialPlatform(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://www.tiktok.com/@user/video/1", "tiktok.com", true},
		{"https://instagram.com/p/abc", "instagram.com", true},
		{"https://twitter.com/user/status/1", "twitter.com", true},
		{"https://x.com/user/status/1", "x.com", true},
		{"https://notx.com/user", "", false},
		{"https://example.com", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := SocialPlatform(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
