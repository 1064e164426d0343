package validation

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	youtubeRe     = regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|embed/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	vimeoRe       = regexp.MustCompile(`vimeo\.com/(\d+)`)
	spotifyRe     = regexp.MustCompile(`^/(track|album|playlist)/([a-zA-Z0-9]+)`)
	directAudioRe = regexp.MustCompile(`(?i)\.(mp3|wav|ogg|aac)$`)
)

var trustedImageHosts = []string{
	"unsplash.com",
	"cdn.sanity.io",
	"imgur.com",
	"res.cloudinary.com",
}

var socialDomains = []string{
	"tiktok.com",
	"instagram.com",
	"twitter.com",
	"x.com",
}

func parseHTTPURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}

// IsTrustedImageURL reports whether raw points at a known image host.
func IsTrustedImageURL(raw string) bool {
	u, ok := parseHTTPURL(raw)
	if !ok {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range trustedImageHosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}

// VideoEmbedURL returns the player URL of a YouTube or Vimeo link.
func VideoEmbedURL(raw string) (string, bool) {
	if m := youtubeRe.FindStringSubmatch(raw); m != nil {
		return "https://www.youtube.com/embed/" + m[1], true
	}
	if m := vimeoRe.FindStringSubmatch(raw); m != nil {
		return "https://player.vimeo.com/video/" + m[1], true
	}
	return "", false
}

// SpotifyEmbedURL returns the embed form of a track, album or playlist link.
// Links that already point at the embed player are returned unchanged.
func SpotifyEmbedURL(raw string) (string, bool) {
	u, ok := parseHTTPURL(raw)
	if !ok || !strings.HasSuffix(strings.ToLower(u.Hostname()), "spotify.com") {
		return "", false
	}
	if strings.HasPrefix(u.Path, "/embed") {
		return raw, true
	}
	m := spotifyRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return "https://open.spotify.com/embed/" + m[1] + "/" + m[2], true
}

// AppleMusicEmbedURL returns the embed form of an Apple Music link.
func AppleMusicEmbedURL(raw string) (string, bool) {
	u, ok := parseHTTPURL(raw)
	if !ok || !strings.Contains(raw, "music.apple.com") {
		return "", false
	}
	if strings.Contains(u.Path, "/embed") || strings.HasPrefix(u.Hostname(), "embed.") {
		return raw, true
	}
	if u.Path == "" || u.Path == "/" {
		return "", false
	}
	return "https://embed.music.apple.com" + u.Path, true
}

// SoundCloudEmbedURL returns the widget player URL of a SoundCloud link.
func SoundCloudEmbedURL(raw string) (string, bool) {
	if _, ok := parseHTTPURL(raw); !ok {
		return "", false
	}
	if strings.Contains(raw, "w.soundcloud.com/player") {
		return raw, true
	}
	if !strings.Contains(raw, "soundcloud.com") {
		return "", false
	}
	return "https://w.soundcloud.com/player/?url=" + url.QueryEscape(raw) +
		"&color=%23000000&auto_play=false&hide_related=false&show_comments=true&show_user=true&show_reposts=false", true
}

// IsDirectAudioURL reports whether raw names an audio file.
func IsDirectAudioURL(raw string) bool {
	u, ok := parseHTTPURL(raw)
	if !ok {
		return false
	}
	return directAudioRe.MatchString(u.Path)
}

// Song link providers.
const (
	ProviderSpotify    = "Spotify"
	ProviderAppleMusic = "Apple Music"
	ProviderSoundCloud = "SoundCloud"
	ProviderAudioURL   = "Audio URL"
)

// SongEmbedURL resolves any supported song link. provider names the service
// that matched.
func SongEmbedURL(raw string) (embed, provider string, ok bool) {
	if embed, ok := SpotifyEmbedURL(raw); ok {
		return embed, ProviderSpotify, true
	}
	if embed, ok := AppleMusicEmbedURL(raw); ok {
		return embed, ProviderAppleMusic, true
	}
	if embed, ok := SoundCloudEmbedURL(raw); ok {
		return embed, ProviderSoundCloud, true
	}
	if IsDirectAudioURL(raw) {
		return strings.TrimSpace(raw), ProviderAudioURL, true
	}
	return "", "", false
}

// SocialPlatform returns the social network a link belongs to.
func SocialPlatform(raw string) (string, bool) {
	u, ok := parseHTTPURL(raw)
	if !ok {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, d := range socialDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return d, true
		}
	}
	return "", false
}

// IsHTTPURL reports whether raw is an absolute http(s) URL.
func IsHTTPURL(raw string) bool {
	_, ok := parseHTTPURL(raw)
	return ok
}
