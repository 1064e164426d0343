package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/loopfeed/loopfeed/internal/db"
	"github.com/loopfeed/loopfeed/internal/draft"
	"github.com/loopfeed/loopfeed/internal/markdown"
	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/repository"
	"github.com/loopfeed/loopfeed/internal/storage"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	jpegBytes = append([]byte{0xff, 0xd8, 0xff, 0xe0}, make([]byte, 64)...)
)

// flakyStorage fails the nth Save call.
type flakyStorage struct {
	*storage.Memory
	mu     sync.Mutex
	saves  int
	failOn int
}

func (f *flakyStorage) Save(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	f.mu.Lock()
	f.saves++
	fail := f.saves == f.failOn
	f.mu.Unlock()
	if fail {
		return errors.New("storage unavailable")
	}
	return f.Memory.Save(ctx, path, r, size, contentType)
}

type fakeFetcher struct {
	meta *model.EmbedMetadata
	err  error
}

func (f fakeFetcher) Fetch(ctx context.Context, rawURL string, fallback bool) (*model.EmbedMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	m := *f.meta
	m.URL = rawURL
	return &m, nil
}

type testEnv struct {
	store    *repository.Store
	objects  *storage.Memory
	staging  *draft.Staging
	emails   *EmailService
	loops    *LoopService
	editor   *CardEditor
	publish  *PublishService
	folders  *FolderService
	whispers *WhisperService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvFailingSave(t, 0)
}

// newTestEnvFailingSave wires the services against a fresh SQLite database
// and an in-memory bucket. With failOn > 0 the failOn-th upload fails.
func newTestEnvFailingSave(t *testing.T, failOn int) *testEnv {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)"
	database, err := db.Init("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })
	require.NoError(t, db.RunMigrations(context.Background(), database.DB, "sqlite"))

	store := repository.NewStore(database)
	mem := storage.NewMemory("https://cdn.test")
	var objects storage.Storage = mem
	if failOn > 0 {
		objects = &flakyStorage{Memory: mem, failOn: failOn}
	}
	staging, err := draft.NewStaging(t.TempDir())
	require.NoError(t, err)

	emails := NewEmailService("", "noreply@loopfeed.test", "https://loopfeed.test", "Loopfeed", true)
	loops := NewLoopService(store.Repos, store, objects, markdown.NewParser(), 30*time.Minute)

	return &testEnv{
		store:    store,
		objects:  mem,
		staging:  staging,
		emails:   emails,
		loops:    loops,
		editor:   NewCardEditor(staging, fakeFetcher{meta: &model.EmbedMetadata{Title: "Page", Description: "About"}}, 1<<20),
		publish:  NewPublishService(store.Repos, store, objects, staging, emails, 2<<20),
		folders:  NewFolderService(store.Repos, loops),
		whispers: NewWhisperService(store.Repos, emails),
	}
}

func (e *testEnv) createUser(t *testing.T, username string) *model.User {
	t.Helper()
	ctx := context.Background()
	u := &model.User{ID: uuid.New().String(), Email: username + "@example.com", PasswordHash: "x", CreatedAt: time.Now()}
	require.NoError(t, e.store.Users.Create(ctx, u))
	require.NoError(t, e.store.Profiles.Create(ctx, &model.Profile{UserID: u.ID, Username: username}))
	return u
}

func upload(name string, b []byte) *UploadFile {
	return &UploadFile{Reader: bytes.NewReader(b), FileName: name, Size: int64(len(b))}
}

// publishText publishes a loop holding a single text card.
func (e *testEnv) publishText(t *testing.T, userID, visibility string) *model.Loop {
	t.Helper()
	d := draft.New(uuid.New().String(), userID)
	d.SetTitle("Loop")
	d.SetTagline("A loop")
	require.NoError(t, d.SetVisibility(visibility))
	_, err := e.editor.Stage(context.Background(), d, AppendPosition, CardCandidate{Kind: model.CardText, Text: "hello"})
	require.NoError(t, err)

	loop, err := e.publish.Publish(context.Background(), userID, d, false)
	require.NoError(t, err)
	return loop
}
