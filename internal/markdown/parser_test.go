package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCardText(t *testing.T) {
	p := NewParser()

	html, err := p.RenderCardText("**hello**\nworld")
	require.NoError(t, err)
	assert.Equal(t, "<p><strong>hello</strong><br />\nworld</p>\n", html)
}

func TestRenderCardTextDropsRawHTML(t *testing.T) {
	p := NewParser()

	html, err := p.RenderCardText("<script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestRenderCardTextLinkify(t *testing.T) {
	p := NewParser()

	html, err := p.RenderCardText("see https://example.com")
	require.NoError(t, err)
	assert.Contains(t, html, `<a href="https://example.com">https://example.com</a>`)
}
