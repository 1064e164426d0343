package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/loopfeed/loopfeed/internal/db"
	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)"
	database, err := db.Init("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })

	require.NoError(t, db.RunMigrations(context.Background(), database.DB, "sqlite"))
	return NewStore(database)
}

func createUser(t *testing.T, s *Store, username string) *model.User {
	t.Helper()
	ctx := context.Background()
	u := &model.User{ID: uuid.New().String(), Email: username + "@example.com", PasswordHash: "x", CreatedAt: time.Now()}
	require.NoError(t, s.Users.Create(ctx, u))
	require.NoError(t, s.Profiles.Create(ctx, &model.Profile{UserID: u.ID, Username: username}))
	return u
}

func createLoop(t *testing.T, s *Store, userID, visibility, status string, tags ...string) *model.Loop {
	t.Helper()
	l := &model.Loop{
		ID:         uuid.New().String(),
		UserID:     userID,
		Title:      "loop",
		Tags:       tags,
		Visibility: visibility,
		Status:     status,
	}
	require.NoError(t, s.Loops.Create(context.Background(), l))
	return l
}

func TestUsersAndProfiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := createUser(t, s, "alice")
	createUser(t, s, "alina")
	createUser(t, s, "bob")

	got, err := s.Users.ByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = s.Users.ByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = s.Users.Create(ctx, &model.User{ID: uuid.New().String(), Email: "alice@example.com", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	err = s.Profiles.Create(ctx, &model.Profile{UserID: alice.ID, Username: "bob"})
	assert.Error(t, err)

	found, err := s.Profiles.SearchByUsername(ctx, "ali", []string{alice.ID}, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "alina", found[0].Username)

	p, err := s.Profiles.ByUsername(ctx, "alice")
	require.NoError(t, err)
	p.DisplayName = "Alice"
	require.NoError(t, s.Profiles.Update(ctx, p))
	p, err = s.Profiles.ByUserID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.DisplayName)
}

func TestLoopCardsAndMedia(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createUser(t, s, "alice")
	l := createLoop(t, s, u.ID, model.VisibilityPublic, model.LoopStatusNormal, "chill")

	text := &model.LoopCard{LoopID: l.ID, Position: 1, Type: "text", Content: "hello"}
	image := &model.LoopCard{LoopID: l.ID, Position: 0, Type: "image", Content: "loop_media/u/a.png", IsUpload: true, IsCover: true, Provider: model.ProviderUpload}
	embed := &model.LoopCard{LoopID: l.ID, Position: 2, Type: "embed", Content: "https://example.com", Metadata: &model.EmbedMetadata{Title: "Example"}}
	for _, c := range []*model.LoopCard{text, image, embed} {
		require.NoError(t, s.Cards.Create(ctx, c))
	}

	media := &model.MediaUpload{UserID: u.ID, LoopCardID: &image.ID, FileName: "a.png", FileURL: "loop_media/u/a.png", FileType: "image/png", SizeBytes: 42}
	require.NoError(t, s.Media.Create(ctx, media))
	require.NoError(t, s.Cards.SetMediaUpload(ctx, image.ID, media.ID))

	cards, err := s.Cards.ByLoop(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, "image", cards[0].Type)
	require.NotNil(t, cards[0].FileName)
	assert.Equal(t, "a.png", *cards[0].FileName)
	assert.Equal(t, int64(42), *cards[0].FileSize)
	assert.Nil(t, cards[1].FileName)
	assert.Nil(t, cards[1].Metadata)
	require.NotNil(t, cards[2].Metadata)
	assert.Equal(t, "Example", cards[2].Metadata.Title)

	records, err := s.Media.ByLoop(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.NoError(t, s.Media.DeleteByLoop(ctx, l.ID))
	require.NoError(t, s.Cards.DeleteByLoop(ctx, l.ID))
	cards, err = s.Cards.ByLoop(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createUser(t, s, "alice")
	boom := errors.New("boom")

	loopID := uuid.New().String()
	err := s.InTx(ctx, func(tx Repos) error {
		err := tx.Loops.Create(ctx, &model.Loop{ID: loopID, UserID: u.ID, Title: "t", Visibility: model.VisibilityPublic, Status: model.LoopStatusNormal})
		require.NoError(t, err)
		require.NoError(t, tx.Cards.Create(ctx, &model.LoopCard{LoopID: loopID, Type: "text", Content: "x"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Loops.ByID(ctx, loopID)
	assert.ErrorIs(t, err, ErrLoopNotFound)
}

func TestLoopListings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createUser(t, s, "alice")

	public := createLoop(t, s, u.ID, model.VisibilityPublic, model.LoopStatusNormal, "chill", "lofi")
	createLoop(t, s, u.ID, model.VisibilityPrivate, model.LoopStatusNormal, "chill")
	createLoop(t, s, u.ID, model.VisibilityPublic, model.LoopStatusArchived)
	draft := createLoop(t, s, u.ID, model.VisibilityUnlisted, model.LoopStatusDraft)

	explore, err := s.Loops.Explore(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, explore, 1)
	assert.Equal(t, public.ID, explore[0].ID)
	assert.Equal(t, model.StringList{"chill", "lofi"}, explore[0].Tags)

	tagged, err := s.Loops.Explore(ctx, "lofi", 10, 0)
	require.NoError(t, err)
	assert.Len(t, tagged, 1)
	none, err := s.Loops.Explore(ctx, "lo", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	mine, err := s.Loops.ByUser(ctx, u.ID, false)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	theirs, err := s.Loops.ByUser(ctx, u.ID, true)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)

	drafts, err := s.Loops.ByUserStatus(ctx, u.ID, model.LoopStatusDraft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, draft.ID, drafts[0].ID)

	require.NoError(t, s.Loops.UpdateStatus(ctx, draft.ID, model.LoopStatusDeleted))
	_, err = s.Loops.ByID(ctx, draft.ID)
	assert.ErrorIs(t, err, ErrLoopNotFound)

	require.NoError(t, s.Loops.Delete(ctx, public.ID))
	assert.ErrorIs(t, s.Loops.Delete(ctx, public.ID), ErrLoopNotFound)
}

func TestCollaboratorsAndRemixes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := createUser(t, s, "owner")
	bob := createUser(t, s, "bob")
	carol := createUser(t, s, "carol")
	l := createLoop(t, s, owner.ID, model.VisibilityPublic, model.LoopStatusNormal)

	require.NoError(t, s.Collaborators.Replace(ctx, l.ID, owner.ID, []string{bob.ID, carol.ID}))
	require.NoError(t, s.Collaborators.Replace(ctx, l.ID, owner.ID, []string{carol.ID}))

	collaborators, err := s.Collaborators.ByLoop(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, collaborators, 1)
	assert.Equal(t, "carol", collaborators[0].Username)

	ok, err := s.Collaborators.IsCollaborator(ctx, l.ID, carol.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Collaborators.IsCollaborator(ctx, l.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	remix := createLoop(t, s, bob.ID, model.VisibilityPublic, model.LoopStatusNormal)
	require.NoError(t, s.Remixes.Create(ctx, &model.Remix{OriginalLoopID: l.ID, RemixLoopID: remix.ID, RemixedBy: bob.ID}))
	origin, err := s.Remixes.OriginOf(ctx, remix.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, origin.OriginalLoopID)
	_, err = s.Remixes.OriginOf(ctx, l.ID)
	assert.ErrorIs(t, err, ErrRemixNotFound)
}

func TestFolders(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createUser(t, s, "alice")
	l := createLoop(t, s, u.ID, model.VisibilityPublic, model.LoopStatusNormal)

	f := &model.Folder{UserID: u.ID, Name: "Faves", Visibility: model.FolderVisibilityPrivate}
	require.NoError(t, s.Folders.Create(ctx, f))
	require.NoError(t, s.Folders.Create(ctx, &model.Folder{UserID: u.ID, Name: "Shared", Visibility: model.FolderVisibilityPublic}))

	require.NoError(t, s.Folders.AddLoop(ctx, f.ID, l.ID))
	require.NoError(t, s.Folders.AddLoop(ctx, f.ID, l.ID))

	got, err := s.Folders.ByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LoopCount)

	loops, err := s.Folders.Loops(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, loops, 1)

	public, err := s.Folders.ByUser(ctx, u.ID, true)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "Shared", public[0].Name)

	all, err := s.Folders.ByUser(ctx, u.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got.Name = "Favourites"
	require.NoError(t, s.Folders.Update(ctx, got))
	require.NoError(t, s.Folders.RemoveLoop(ctx, f.ID, l.ID))
	got, err = s.Folders.ByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Favourites", got.Name)
	assert.Equal(t, 0, got.LoopCount)

	require.NoError(t, s.Folders.Delete(ctx, f.ID))
	_, err = s.Folders.ByID(ctx, f.ID)
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestWhispers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := createUser(t, s, "owner")
	l := createLoop(t, s, owner.ID, model.VisibilityPublic, model.LoopStatusNormal)

	first := &model.Whisper{LoopID: l.ID, RecipientID: owner.ID, Message: "first", CreatedAt: time.Now().Add(-time.Minute)}
	second := &model.Whisper{LoopID: l.ID, RecipientID: owner.ID, Message: "second"}
	require.NoError(t, s.Whispers.Create(ctx, first))
	require.NoError(t, s.Whispers.Create(ctx, second))

	inbox, err := s.Whispers.ByRecipient(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, "second", inbox[0].Message)
	assert.Equal(t, "loop", inbox[0].LoopTitle)
	assert.Nil(t, inbox[0].SenderID)

	require.NoError(t, s.Whispers.MarkRead(ctx, first.ID))
	got, err := s.Whispers.ByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)

	require.NoError(t, s.Whispers.Delete(ctx, first.ID))
	assert.ErrorIs(t, s.Whispers.Delete(ctx, first.ID), ErrWhisperNotFound)
}
