package service

import (
	"context"
	"testing"

	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderCreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	_, err := env.folders.Create(ctx, alice.ID, "  ", "", "")
	requireFieldError(t, err, "name")
	_, err = env.folders.Create(ctx, alice.ID, "Faves", "", "secret")
	requireFieldError(t, err, "visibility")
	_, err = env.folders.Create(ctx, "", "Faves", "", "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	f, err := env.folders.Create(ctx, alice.ID, " Faves ", " best ones ", "")
	require.NoError(t, err)
	assert.Equal(t, "Faves", f.Name)
	assert.Equal(t, "best ones", f.Description)
	assert.Equal(t, model.FolderVisibilityPrivate, f.Visibility)

	name := "Favourites"
	f, err = env.folders.Update(ctx, alice.ID, f.ID, FolderUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Favourites", f.Name)
	assert.Equal(t, "best ones", f.Description)

	_, err = env.folders.Update(ctx, bob.ID, f.ID, FolderUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFolderOwner)

	f, err = env.folders.ToggleVisibility(ctx, alice.ID, f.ID)
	require.NoError(t, err)
	assert.True(t, f.IsPublic())

	require.NoError(t, env.folders.Delete(ctx, alice.ID, f.ID))
	_, err = env.folders.View(ctx, alice.ID, f.ID)
	assert.ErrorIs(t, err, repository.ErrFolderNotFound)
}

func TestFolderVisibility(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	public := env.publishText(t, alice.ID, model.VisibilityPublic)
	private := env.publishText(t, alice.ID, model.VisibilityPrivate)
	bobs := env.publishText(t, bob.ID, model.VisibilityPrivate)

	open, err := env.folders.Create(ctx, alice.ID, "Open", "", model.FolderVisibilityPublic)
	require.NoError(t, err)
	closed, err := env.folders.Create(ctx, alice.ID, "Closed", "", "")
	require.NoError(t, err)

	require.NoError(t, env.folders.AddLoop(ctx, alice.ID, open.ID, public.ID))
	require.NoError(t, env.folders.AddLoop(ctx, alice.ID, open.ID, private.ID))
	require.NoError(t, env.folders.AddLoop(ctx, alice.ID, open.ID, public.ID))
	assert.ErrorIs(t, env.folders.AddLoop(ctx, alice.ID, open.ID, bobs.ID), ErrLoopNotViewable)
	assert.ErrorIs(t, env.folders.AddLoop(ctx, bob.ID, open.ID, public.ID), ErrNotFolderOwner)

	own, err := env.folders.View(ctx, alice.ID, open.ID)
	require.NoError(t, err)
	assert.Len(t, own.Loops, 2)

	guest, err := env.folders.View(ctx, "", open.ID)
	require.NoError(t, err)
	require.Len(t, guest.Loops, 1)
	assert.Equal(t, public.ID, guest.Loops[0].ID)

	_, err = env.folders.View(ctx, bob.ID, closed.ID)
	assert.ErrorIs(t, err, ErrFolderPrivate)

	mine, err := env.folders.List(ctx, alice.ID, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	theirs, err := env.folders.List(ctx, alice.ID, "")
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, open.ID, theirs[0].ID)
	assert.Equal(t, 2, theirs[0].LoopCount)

	require.NoError(t, env.folders.RemoveLoop(ctx, alice.ID, open.ID, private.ID))
	own, err = env.folders.View(ctx, alice.ID, open.ID)
	require.NoError(t, err)
	assert.Len(t, own.Loops, 1)
}

func TestSystemFolders(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")

	loop := env.publishText(t, alice.ID, model.VisibilityPublic)
	_, err := env.loops.Archive(ctx, alice.ID, loop.ID)
	require.NoError(t, err)

	folders, err := env.folders.SystemFolders(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, folders, 3)
	counts := map[string]int{}
	for _, f := range folders {
		assert.True(t, f.IsSystem)
		counts[f.ID] = f.LoopCount
	}
	assert.Equal(t, map[string]int{
		model.SystemFolderArchived: 1,
		model.SystemFolderTrash:    0,
		model.SystemFolderDrafts:   0,
	}, counts)

	view, err := env.folders.View(ctx, alice.ID, model.SystemFolderArchived)
	require.NoError(t, err)
	require.Len(t, view.Loops, 1)
	assert.Equal(t, loop.ID, view.Loops[0].ID)

	_, err = env.folders.View(ctx, "", model.SystemFolderTrash)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
