package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/loopfeed/loopfeed/internal/model"
	"golang.org/x/net/html"
)

const (
	metadataUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 13_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.2 Safari/605.1.15"
	maxMetadataBody   = 2 << 20
	linkPreviewURL    = "https://api.linkpreview.net/"
)

var (
	ErrInvalidURL        = errors.New("invalid URL")
	ErrNotHTML           = errors.New("URL is not an HTML page")
	ErrRefererNotAllowed = errors.New("blocked by referer check")
	ErrFetchFailed       = errors.New("failed to fetch the page")
)

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	emoticonRe   = regexp.MustCompile(`[\x{1F600}-\x{1F6FF}]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// MetadataCache is where fetched metadata is remembered between requests.
type MetadataCache interface {
	Get(ctx context.Context, url string) (*model.EmbedMetadata, bool, error)
	Set(ctx context.Context, url string, meta *model.EmbedMetadata) error
}

// MetadataFetcher resolves the preview of a link.
type MetadataFetcher interface {
	Fetch(ctx context.Context, rawURL string, fallback bool) (*model.EmbedMetadata, error)
}

type MetadataService struct {
	client         *http.Client
	cache          MetadataCache
	allowedReferer string
	linkPreviewKey string
	linkPreviewURL string
}

// NewMetadataService creates the link metadata fetcher. cache may be nil.
func NewMetadataService(timeout time.Duration, cache MetadataCache, allowedReferer, linkPreviewKey string) *MetadataService {
	return &MetadataService{
		client:         &http.Client{Timeout: timeout},
		cache:          cache,
		allowedReferer: allowedReferer,
		linkPreviewKey: linkPreviewKey,
		linkPreviewURL: linkPreviewURL,
	}
}

// CheckReferer rejects requests whose referer does not mention the allowed
// domain. Without a configured domain every referer passes.
func (s *MetadataService) CheckReferer(referer string) error {
	if s.allowedReferer == "" || strings.Contains(referer, s.allowedReferer) {
		return nil
	}
	return ErrRefererNotAllowed
}

// Fetch downloads rawURL and extracts its Open Graph summary. With fallback
// set, a missing title or description is completed from the link preview
// API when a key is configured.
func (s *MetadataService) Fetch(ctx context.Context, rawURL string, fallback bool) (*model.EmbedMetadata, error) {
	if !strings.HasPrefix(rawURL, "http") {
		return nil, ErrInvalidURL
	}
	cleaned := cleanURL(rawURL)

	if s.cache != nil {
		meta, ok, err := s.cache.Get(ctx, cleaned)
		if err != nil {
			slog.Warn("metadata cache read failed", "error", err, "url", cleaned)
		} else if ok && (!fallback || meta.Complete()) {
			return meta, nil
		}
	}

	meta, err := s.scrape(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	if fallback && !meta.Complete() && s.linkPreviewKey != "" {
		s.mergeFallback(ctx, meta)
	}

	if s.cache != nil {
		err := s.cache.Set(ctx, cleaned, meta)
		if err != nil {
			slog.Warn("metadata cache write failed", "error", err, "url", cleaned)
		}
	}

	return meta, nil
}

func (s *MetadataService) scrape(ctx context.Context, pageURL string) (*model.EmbedMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", metadataUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return nil, ErrNotHTML
	}

	tags, title := readHead(io.LimitReader(resp.Body, maxMetadataBody))

	site := tags["og:site_name"]
	if site == "" {
		if u, err := url.Parse(pageURL); err == nil {
			site = u.Hostname()
		}
	}

	return &model.EmbedMetadata{
		URL:         pageURL,
		Title:       stripBadContent(firstNonEmpty(tags["og:title"], title)),
		Description: stripBadContent(firstNonEmpty(tags["og:description"], tags["twitter:description"], tags["description"])),
		Image:       firstNonEmpty(tags["og:image"], tags["twitter:image"]),
		Site:        site,
		OGType:      tags["og:type"],
	}, nil
}

// readHead collects <meta> property/name → content pairs and the <title>
// text. The first value seen for a key wins.
func readHead(r io.Reader) (map[string]string, string) {
	tags := make(map[string]string)
	var title string
	inTitle := false

	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tags, title
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "title":
				inTitle = title == ""
			case "meta":
				var key, content string
				for _, a := range tok.Attr {
					switch strings.ToLower(a.Key) {
					case "property", "name":
						if key == "" {
							key = strings.ToLower(a.Val)
						}
					case "content":
						content = a.Val
					}
				}
				if key != "" && content != "" {
					if _, seen := tags[key]; !seen {
						tags[key] = content
					}
				}
			}
		case html.TextToken:
			if inTitle {
				title += string(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				inTitle = false
			}
		}
	}
}

type linkPreviewResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// mergeFallback overwrites meta with whatever the link preview API knows.
// Failures only log.
func (s *MetadataService) mergeFallback(ctx context.Context, meta *model.EmbedMetadata) {
	q := url.Values{}
	q.Set("key", s.linkPreviewKey)
	q.Set("q", meta.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.linkPreviewURL+"?"+q.Encode(), nil)
	if err != nil {
		slog.Warn("link preview fallback failed", "error", err, "url", meta.URL)
		return
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Warn("link preview fallback failed", "error", err, "url", meta.URL)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("link preview fallback failed", "status", resp.StatusCode, "url", meta.URL)
		return
	}

	var data linkPreviewResponse
	err = json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBody)).Decode(&data)
	if err != nil {
		slog.Warn("link preview fallback failed", "error", err, "url", meta.URL)
		return
	}

	if data.Title != "" {
		meta.Title = stripBadContent(data.Title)
	}
	if data.Description != "" {
		meta.Description = stripBadContent(data.Description)
	}
	if data.Image != "" {
		meta.Image = data.Image
	}
	if u, err := url.Parse(meta.URL); err == nil {
		meta.Site = u.Hostname()
	}
}

// cleanURL drops the query string and fragment.
func cleanURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func stripBadContent(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = emoticonRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
