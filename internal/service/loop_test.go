package service

import (
	"context"
	"strings"
	"testing"

	"github.com/loopfeed/loopfeed/internal/draft"
	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/repository"
	"github.com/loopfeed/loopfeed/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewSignsUploadsAndRendersText(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")

	d := draft.New("s1", alice.ID)
	d.SetTitle("View me")
	d.SetTagline("Signed")
	_, err := env.editor.Stage(ctx, d, AppendPosition, CardCandidate{Kind: model.CardImage, File: upload("a.png", pngBytes)})
	require.NoError(t, err)
	_, err = env.editor.Stage(ctx, d, AppendPosition, CardCandidate{Kind: model.CardText, Text: "**bold**"})
	require.NoError(t, err)
	loop, err := env.publish.Publish(ctx, alice.ID, d, false)
	require.NoError(t, err)

	view, err := env.loops.View(ctx, "", loop.ID)
	require.NoError(t, err)
	require.Len(t, view.Cards, 2)
	assert.Equal(t, "alice", view.Author)
	assert.False(t, view.IsOwner)

	assert.True(t, strings.HasPrefix(view.Cards[0].Content, "https://cdn.test/"))
	assert.Contains(t, view.Cards[0].Content, "expires=1800")
	assert.Equal(t, "a.png", view.Cards[0].FileName)
	assert.True(t, view.Cards[0].IsCover)
	assert.Equal(t, view.Cards[0].Content, view.CoverURL)
	assert.Equal(t, "<p><strong>bold</strong></p>\n", view.Cards[1].HTML)

	own, err := env.loops.View(ctx, alice.ID, loop.ID)
	require.NoError(t, err)
	assert.True(t, own.IsOwner)
}

func TestViewPrivateLoop(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")

	d := draft.New("s1", alice.ID)
	d.SetTitle("Secret")
	d.SetTagline("Shh")
	require.NoError(t, d.SetVisibility(model.VisibilityPrivate))
	d.AddCollaborator(draft.Collaborator{UserID: bob.ID, Username: "bob"})
	d.AppendCard(model.TextCard{Text: "x"})
	loop, err := env.publish.Publish(ctx, alice.ID, d, false)
	require.NoError(t, err)

	_, err = env.loops.View(ctx, "", loop.ID)
	assert.ErrorIs(t, err, ErrLoopNotViewable)
	_, err = env.loops.View(ctx, carol.ID, loop.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	view, err := env.loops.View(ctx, bob.ID, loop.ID)
	require.NoError(t, err)
	require.Len(t, view.Collaborators, 1)
	assert.Equal(t, "bob", view.Collaborators[0].Username)

	_, err = env.loops.View(ctx, "", "missing")
	assert.ErrorIs(t, err, repository.ErrLoopNotFound)
}

func TestLoadForRemixRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	private := env.publishText(t, alice.ID, model.VisibilityPrivate)
	_, err := env.loops.LoadForRemix(ctx, bob.ID, private.ID)
	assert.ErrorIs(t, err, ErrRemixNotAllowed)

	// owners may remix their own private loops
	st, err := env.loops.LoadForRemix(ctx, alice.ID, private.ID)
	require.NoError(t, err)
	assert.True(t, st.IsRemix)
	assert.Empty(t, st.LoopID)
	assert.Equal(t, private.ID, st.OriginalLoopID)
	assert.Equal(t, model.VisibilityPublic, st.Visibility)

	_, err = env.loops.LoadForRemix(ctx, "", private.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLoadForEditRequiresOwner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	loop := env.publishText(t, alice.ID, model.VisibilityPublic)

	_, err := env.loops.LoadForEdit(ctx, bob.ID, loop.ID)
	assert.ErrorIs(t, err, ErrNotLoopOwner)

	st, err := env.loops.LoadForEdit(ctx, alice.ID, loop.ID)
	require.NoError(t, err)
	assert.Equal(t, loop.ID, st.LoopID)
	assert.Equal(t, "Loop", st.Title)
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")

	d := draft.New("s1", alice.ID)
	d.SetTitle("Lifecycle")
	d.SetTagline("Goes away")
	_, err := env.editor.Stage(ctx, d, AppendPosition, CardCandidate{Kind: model.CardImage, File: upload("a.png", pngBytes)})
	require.NoError(t, err)
	loop, err := env.publish.Publish(ctx, alice.ID, d, false)
	require.NoError(t, err)

	err = env.loops.DeletePermanently(ctx, alice.ID, loop.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	l, err := env.loops.Archive(ctx, alice.ID, loop.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoopStatusArchived, l.Status)

	_, err = env.loops.Archive(ctx, alice.ID, loop.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	archived, err := env.loops.ByStatus(ctx, alice.ID, model.LoopStatusArchived)
	require.NoError(t, err)
	require.Len(t, archived, 1)

	l, err = env.loops.Trash(ctx, alice.ID, loop.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoopStatusTrashed, l.Status)

	require.NoError(t, env.loops.DeletePermanently(ctx, alice.ID, loop.ID))
	assert.Empty(t, env.objects.Paths())
	_, err = env.store.Loops.ByID(ctx, loop.ID)
	assert.ErrorIs(t, err, repository.ErrLoopNotFound)
}

func TestDiscardDraft(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	d := draft.New("s1", alice.ID)
	d.SetTitle("Draft")
	d.SetTagline("Unfinished")
	d.AppendCard(model.TextCard{Text: "x"})
	loop, err := env.publish.Publish(ctx, alice.ID, d, true)
	require.NoError(t, err)

	_, err = env.loops.DiscardDraft(ctx, bob.ID, loop.ID)
	assert.ErrorIs(t, err, ErrNotLoopOwner)

	_, err = env.loops.DiscardDraft(ctx, alice.ID, loop.ID)
	require.NoError(t, err)

	drafts, err := env.loops.ByStatus(ctx, alice.ID, model.LoopStatusDraft)
	require.NoError(t, err)
	assert.Empty(t, drafts)
	_, err = env.loops.View(ctx, alice.ID, loop.ID)
	assert.ErrorIs(t, err, repository.ErrLoopNotFound)
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	public := env.publishText(t, alice.ID, model.VisibilityPublic)
	env.publishText(t, alice.ID, model.VisibilityPrivate)

	explore, err := env.loops.Explore(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, explore, 1)
	assert.Equal(t, public.ID, explore[0].ID)

	mine, err := env.loops.ByUser(ctx, "alice", alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := env.loops.ByUser(ctx, "alice", bob.ID)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)

	_, err = env.loops.ByStatus(ctx, alice.ID, "normal")
	var verr *validation.Error
	assert.ErrorAs(t, err, &verr)
}

func TestPreviewURLs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	d := draft.Load("s1", "u1", draft.State{Cards: []model.Card{
		model.ImageCard{Provider: model.ProviderUpload, Source: model.StoredObject{Path: "loop_media/u1/a.png"}},
		model.ImageCard{Provider: "Unsplash", Source: model.LinkSource{URL: "https://images.unsplash.com/x"}},
		model.TextCard{Text: "hi"},
	}})
	cards := d.Snapshot().Cards

	previews, err := env.loops.PreviewURLs(ctx, cards)
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, "https://cdn.test/loop_media%2Fu1%2Fa.png?expires=1800", previews[cards[0].CardID()])
}
