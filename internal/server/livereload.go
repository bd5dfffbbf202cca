package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Paths reserved by the dev server
const (
	WebSocketPath = "/_folio/ws"
	MetricsPath   = "/_folio/metrics"
	HealthPath    = "/_folio/health"
	ErrorsPath    = "/_folio/errors"
)

// reloadScript reconnects after restarts, reloads on every "reload"
// message and shows the error page over the document on "build_error".
const reloadScript = `<script data-folio-reload>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  function connect() {
    var ws = new WebSocket(proto + location.host + "` + WebSocketPath + `");
    ws.onmessage = function (e) {
      var msg = JSON.parse(e.data);
      if (msg.type === "reload") { location.reload(); }
      if (msg.type === "build_error") {
        console.error("folio build failed:\n" + msg.content);
        var frame = document.getElementById("folio-errors");
        if (!frame) {
          frame = document.createElement("iframe");
          frame.id = "folio-errors";
          frame.style.cssText = "position:fixed;inset:0;width:100%;height:100%;border:0;z-index:2147483647";
          document.body.appendChild(frame);
        }
        frame.src = "` + ErrorsPath + `?t=" + Date.now();
      }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>`

// LiveReloadTransform injects the live reload client before the closing
// body tag of HTML outputs, or appends it when the document has none.
// Other outputs pass through unchanged. The dev server applies it to
// responses; built files never contain the client.
func LiveReloadTransform(ctx context.Context, content, outputPath string) (string, error) {
	if !strings.HasSuffix(outputPath, ".html") {
		return content, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	offset, err := lastBodyClose(content)
	if err != nil {
		return "", err
	}
	if offset < 0 {
		return content + reloadScript, nil
	}
	return content[:offset] + reloadScript + content[offset:], nil
}

// lastBodyClose returns the byte offset of the last </body> tag, or -1.
func lastBodyClose(content string) (int, error) {
	z := html.NewTokenizer(strings.NewReader(content))
	offset, last := 0, -1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				return last, nil
			}
			return -1, z.Err()
		}
		raw := z.Raw()
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); bytes.Equal(name, []byte("body")) {
				last = offset
			}
		}
		offset += len(raw)
	}
}
