package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("http://media.test")

	require.NoError(t, m.Save(ctx, "loop_media/u1/a.png", strings.NewReader("png"), 3, "image/png"))
	require.NoError(t, m.Copy(ctx, "loop_media/u1/a.png", "loop_media/u2/remix-1-0.png"))
	assert.ErrorIs(t, m.Copy(ctx, "missing", "x"), ErrObjectNotFound)

	b, ct, ok := m.Object("loop_media/u2/remix-1-0.png")
	require.True(t, ok)
	assert.Equal(t, "png", string(b))
	assert.Equal(t, "image/png", ct)

	url, err := m.PresignedURL(ctx, "loop_media/u1/a.png", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "http://media.test/loop_media%2Fu1%2Fa.png?expires=1800", url)

	require.NoError(t, m.Delete(ctx, "loop_media/u1/a.png"))
	assert.Equal(t, []string{"loop_media/u2/remix-1-0.png"}, m.Paths())
}
