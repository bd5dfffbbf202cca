package build

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// PageInfo describes one page to templates, both as .Page and as an
// element of .Collections.
type PageInfo struct {
	Title      string
	URL        string
	InputPath  string
	OutputPath string
	Date       time.Time
	Tags       []string
}

// PageData is the value every page and layout template executes with.
type PageData struct {
	Data        map[string]any
	Front       map[string]any
	Page        *PageInfo
	Collections map[string][]*PageInfo
	Title       string
	Content     template.HTML
	PathPrefix  string
	Production  bool
}

type page struct {
	info   *PageInfo
	rel    string
	front  map[string]any
	body   []byte
	skip   bool
	layout []string
}

func (p *page) isMarkdown() bool {
	return strings.EqualFold(filepath.Ext(p.rel), ".md")
}

// readPage loads a page source and works out where it will be written.
func readPage(inputDir, rel string) (*page, error) {
	path := filepath.Join(inputDir, rel)
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	front, body, err := splitFrontMatter(source)
	if err != nil {
		return nil, err
	}
	if front == nil {
		front = make(map[string]any)
	}

	p := &page{rel: rel, front: front, body: body}
	permalink := ""
	switch v := front["permalink"].(type) {
	case bool:
		p.skip = !v
	case nil:
	default:
		permalink = cast.ToString(v)
	}

	out := outputPathFor(rel, permalink)
	p.info = &PageInfo{
		Title:      cast.ToString(front["title"]),
		URL:        urlFor(out),
		InputPath:  path,
		OutputPath: out,
		Tags:       tagsOf(front["tags"]),
	}

	if d, ok := front["date"]; ok {
		if t, err := cast.ToTimeE(d); err == nil {
			p.info.Date = t
		}
	}
	if p.info.Date.IsZero() {
		if stat, err := os.Stat(path); err == nil {
			p.info.Date = stat.ModTime()
		}
	}
	return p, nil
}

func tagsOf(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	default:
		return cast.ToStringSlice(t)
	}
}

// buildCollections groups pages by tag, plus "all", each ordered by date
// and then input path.
func buildCollections(pages []*page) map[string][]*PageInfo {
	collections := map[string][]*PageInfo{"all": {}}
	for _, p := range pages {
		if p.skip {
			continue
		}
		collections["all"] = append(collections["all"], p.info)
		for _, tag := range p.info.Tags {
			collections[tag] = append(collections[tag], p.info)
		}
	}
	for _, list := range collections {
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].Date.Equal(list[j].Date) {
				return list[i].Date.Before(list[j].Date)
			}
			return list[i].InputPath < list[j].InputPath
		})
	}
	return collections
}

// render executes the page body and then each of its layouts.
func (b *Builder) render(ctx context.Context, p *page, inc *includes, data PageData) (string, error) {
	tpl, err := inc.clone()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if p.isMarkdown() {
		text, err := newTextTemplate(p.rel, string(p.body), inc.funcs)
		if err != nil {
			return "", err
		}
		if err := text.Execute(&buf, data); err != nil {
			return "", err
		}
		html, err := b.markdown.toHTML(ctx, buf.Bytes())
		if err != nil {
			return "", err
		}
		buf.Reset()
		buf.WriteString(html)
	} else {
		if _, err := tpl.New(p.rel).Parse(string(p.body)); err != nil {
			return "", err
		}
		if err := tpl.ExecuteTemplate(&buf, p.rel, data); err != nil {
			return "", err
		}
	}

	for _, layout := range p.layout {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		data.Content = template.HTML(buf.String())
		buf.Reset()
		if err := tpl.ExecuteTemplate(&buf, layout, data); err != nil {
			return "", fmt.Errorf("layout %s: %w", layout, err)
		}
	}
	return buf.String(), nil
}

// mergedFront layers a page's front matter over that of its layouts,
// outermost layout lowest.
func mergedFront(p *page, inc *includes) map[string]any {
	merged := make(map[string]any)
	for i := len(p.layout) - 1; i >= 0; i-- {
		for k, v := range inc.fronts[p.layout[i]] {
			merged[k] = v
		}
	}
	for k, v := range p.front {
		merged[k] = v
	}
	delete(merged, "layout")
	return merged
}
