package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/loopfeed/loopfeed/internal/storage"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentSigning = 8

// isStoragePath reports whether content names an object in the media bucket
// rather than an external URL.
func isStoragePath(content string) bool {
	return strings.HasPrefix(content, "loop_media/")
}

// urlSigner turns storage paths into time-limited read URLs.
type urlSigner struct {
	storage storage.Storage
	expiry  time.Duration
}

// signAll signs every distinct storage path in paths concurrently. Entries
// that are not storage paths are ignored.
func (s urlSigner) signAll(ctx context.Context, paths []string) (map[string]string, error) {
	signed := make(map[string]string, len(paths))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSigning)

	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if !isStoragePath(p) || seen[p] {
			continue
		}
		seen[p] = true

		g.Go(func() error {
			url, err := s.storage.PresignedURL(ctx, p, s.expiry)
			if err != nil {
				return fmt.Errorf("failed to sign %s: %w", p, err)
			}
			mu.Lock()
			signed[p] = url
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}
	return signed, nil
}
