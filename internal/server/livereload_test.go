package server

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveReloadTransform(t *testing.T) {
	ctx := context.Background()

	t.Run("before closing body", func(t *testing.T) {
		in := "<html><body><p>x</p></body></html>"
		out, err := LiveReloadTransform(ctx, in, "_site/index.html")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(out, "<html><body><p>x</p><script data-folio-reload>"))
		assert.True(t, strings.HasSuffix(out, "</script></body></html>"))
		assert.Contains(t, out, WebSocketPath)
	})

	t.Run("uses the last body tag", func(t *testing.T) {
		in := "<body><pre>&lt;/body&gt;</pre><script>var s = '</body>';</script></BODY>"
		out, err := LiveReloadTransform(ctx, in, "a.html")
		require.NoError(t, err)

		assert.True(t, strings.HasSuffix(out, "</script></BODY>"))
		assert.Equal(t, 1, strings.Count(out, "data-folio-reload"))
	})

	t.Run("no body tag", func(t *testing.T) {
		out, err := LiveReloadTransform(ctx, "<p>fragment</p>", "a.html")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "<p>fragment</p><script data-folio-reload>"))
	})

	t.Run("non html output", func(t *testing.T) {
		out, err := LiveReloadTransform(ctx, "body{}", "_site/main.css")
		require.NoError(t, err)
		assert.Equal(t, "body{}", out)
	})
}
