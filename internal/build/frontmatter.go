package build

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

var fence = []byte("---")

// splitFrontMatter separates a leading YAML block fenced by "---" lines
// from the body. Sources without front matter return a nil map.
func splitFrontMatter(source []byte) (map[string]any, []byte, error) {
	source = bytes.TrimPrefix(source, []byte("\ufeff"))
	if !bytes.HasPrefix(source, fence) {
		return nil, source, nil
	}

	rest := source[len(fence):]
	firstLine := bytes.IndexByte(rest, '\n')
	if firstLine < 0 || len(bytes.TrimSpace(rest[:firstLine])) != 0 {
		return nil, source, nil
	}
	rest = rest[firstLine+1:]

	var header, body []byte
	for {
		end := bytes.IndexByte(rest, '\n')
		line := rest
		if end >= 0 {
			line = rest[:end]
		}
		if bytes.Equal(bytes.TrimRight(line, " \t\r"), fence) {
			if end >= 0 {
				body = rest[end+1:]
			}
			break
		}
		if end < 0 {
			return nil, nil, fmt.Errorf("front matter is not closed")
		}
		header = append(header, rest[:end+1]...)
		rest = rest[end+1:]
	}

	matter := make(map[string]any)
	if err := yaml.Unmarshal(header, &matter); err != nil {
		return nil, nil, fmt.Errorf("invalid front matter: %w", err)
	}
	return matter, body, nil
}
