package draft

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loopfeed/loopfeed/internal/model"
)

var ErrNotStaged = errors.New("file is not in the staging area")

// Staging keeps validated uploads on local disk until the draft is published.
type Staging struct {
	dir string
}

func NewStaging(dir string) (*Staging, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staging directory: %w", err)
	}
	return &Staging{dir: abs}, nil
}

func (s *Staging) Dir() string { return s.dir }

// Stage copies r into the staging area.
func (s *Staging) Stage(r io.Reader, fileName, mimeType string) (model.PendingFile, error) {
	f, err := os.CreateTemp(s.dir, "pending-*")
	if err != nil {
		return model.PendingFile{}, fmt.Errorf("failed to create staged file: %w", err)
	}

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, h), r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return model.PendingFile{}, fmt.Errorf("failed to write staged file: %w", err)
	}

	return model.PendingFile{
		StagedPath: f.Name(),
		FileName:   fileName,
		MimeType:   mimeType,
		Size:       size,
		Checksum:   hex.EncodeToString(h.Sum(nil)),
	}, nil
}

func (s *Staging) contains(path string) bool {
	rel, err := filepath.Rel(s.dir, path)
	return err == nil && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}

// Open opens a staged file for reading.
func (s *Staging) Open(p model.PendingFile) (*os.File, error) {
	if !s.contains(p.StagedPath) {
		return nil, ErrNotStaged
	}
	f, err := os.Open(p.StagedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open staged file: %w", err)
	}
	return f, nil
}

// ReleaseFile removes a staged file. A file that is already gone is not an error.
func (s *Staging) ReleaseFile(p model.PendingFile) error {
	if !s.contains(p.StagedPath) {
		return ErrNotStaged
	}
	err := os.Remove(p.StagedPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove staged file: %w", err)
	}
	return nil
}

// Release frees the staged file of every pending card in cards.
func (s *Staging) Release(cards ...model.Card) {
	for _, c := range cards {
		if c == nil {
			continue
		}
		src, ok := model.MediaSource(c)
		if !ok {
			continue
		}
		p, ok := src.(model.PendingFile)
		if !ok {
			continue
		}
		err := s.ReleaseFile(p)
		if err != nil {
			slog.Warn("failed to release staged file", "error", err, "path", p.StagedPath)
		}
	}
}

// PurgeOlderThan removes staged files last modified more than age ago.
func (s *Staging) PurgeOlderThan(age time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read staging directory: %w", err)
	}

	cutoff := time.Now().Add(-age)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "pending-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		err = os.Remove(filepath.Join(s.dir, e.Name()))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to purge staged file", "error", err, "file", e.Name())
			continue
		}
		removed++
	}
	return removed, nil
}
