package build

import (
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	texttemplate "text/template"

	"github.com/conneroisu/folio/internal/plugins"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// funcMap merges the registry's filters with the built-in url and safeHTML
// filters. Filters that html/template would reject are reported here
// instead of panicking during parse.
func funcMap(reg *plugins.Registry, pathPrefix string) (template.FuncMap, error) {
	funcs := template.FuncMap{
		"url": func(u string) string {
			return prefixURL(pathPrefix, u)
		},
		"safeHTML": func(s string) template.HTML {
			return template.HTML(s)
		},
	}

	for name, fn := range reg.Filters() {
		if _, builtin := funcs[name]; builtin {
			return nil, fmt.Errorf("filter %s shadows a built-in filter", name)
		}
		if err := checkFilter(fn); err != nil {
			return nil, fmt.Errorf("filter %s: %w", name, err)
		}
		funcs[name] = fn
	}
	return funcs, nil
}

func checkFilter(fn any) error {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return fmt.Errorf("not a function")
	}
	switch {
	case t.NumOut() == 1:
		return nil
	case t.NumOut() == 2 && t.Out(1) == errorType:
		return nil
	default:
		return fmt.Errorf("must return one value, or a value and an error")
	}
}

// includes holds the parsed _includes directory. Every .html file is a
// named template (its slash-separated path relative to the directory), so
// pages can use {{template "nav.html" .}} and name layouts.
type includes struct {
	base   *template.Template
	funcs  template.FuncMap
	fronts map[string]map[string]any
}

func loadIncludes(dir string, funcs template.FuncMap) (*includes, error) {
	inc := &includes{
		base:   template.New("").Funcs(funcs),
		funcs:  funcs,
		fronts: make(map[string]map[string]any),
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".html") {
			return nil
		}

		source, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		front, body, err := splitFrontMatter(source)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if _, err := inc.base.New(name).Parse(string(body)); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		inc.fronts[name] = front
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return inc, nil
}

// resolve finds the template name for a layout reference, which may omit
// the .html extension.
func (inc *includes) resolve(layout string) (string, bool) {
	layout = strings.TrimLeft(filepath.ToSlash(layout), "/")
	for _, name := range []string{layout, layout + ".html"} {
		if _, ok := inc.fronts[name]; ok {
			return name, true
		}
	}
	return "", false
}

const maxLayoutDepth = 10

// layoutChain returns the layouts wrapping a page, innermost first.
func (inc *includes) layoutChain(front map[string]any) ([]string, error) {
	var chain []string
	layout, _ := front["layout"].(string)
	for layout != "" {
		name, ok := inc.resolve(layout)
		if !ok {
			return nil, fmt.Errorf("layout %q not found in includes", layout)
		}
		if len(chain) == maxLayoutDepth {
			return nil, fmt.Errorf("layout %q nests deeper than %d levels", layout, maxLayoutDepth)
		}
		chain = append(chain, name)
		layout, _ = inc.fronts[name]["layout"].(string)
	}
	return chain, nil
}

// clone returns a copy of the include set a single page can extend and
// execute. The base set itself is never executed.
func (inc *includes) clone() (*template.Template, error) {
	return inc.base.Clone()
}

// newTextTemplate parses a Markdown body, which is expanded before
// conversion and so needs no HTML escaping.
func newTextTemplate(name, body string, funcs template.FuncMap) (*texttemplate.Template, error) {
	return texttemplate.New(name).Funcs(texttemplate.FuncMap(funcs)).Parse(body)
}
