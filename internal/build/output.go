package build

import (
	"path"
	"path/filepath"
	"strings"
)

// outputPathFor maps a page path relative to the input directory to its
// path relative to the output directory.
//
//	index.md      -> index.html
//	404.html      -> 404.html
//	notes/a.md    -> notes/a/index.html
//	notes/index.md -> notes/index.html
func outputPathFor(rel, permalink string) string {
	if permalink != "" {
		p := strings.TrimLeft(filepath.ToSlash(permalink), "/")
		if p == "" || strings.HasSuffix(p, "/") {
			p += "index.html"
		}
		return filepath.Clean(filepath.FromSlash(p))
	}

	rel = filepath.ToSlash(rel)
	dir, file := path.Split(rel)
	stem := strings.TrimSuffix(file, path.Ext(file))

	switch {
	case stem == "index":
		return filepath.FromSlash(dir + "index.html")
	case stem == "404" && dir == "":
		return "404.html"
	default:
		return filepath.FromSlash(dir + stem + "/index.html")
	}
}

// urlFor returns the site-relative URL of an output path.
func urlFor(out string) string {
	u := "/" + filepath.ToSlash(out)
	if strings.HasSuffix(u, "/index.html") {
		return strings.TrimSuffix(u, "index.html")
	}
	return u
}

// prefixURL joins the site path prefix onto a site-relative URL.
func prefixURL(prefix, u string) string {
	if strings.Contains(u, "://") || strings.HasPrefix(u, "//") {
		return u
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		if !strings.HasPrefix(u, "/") {
			return "/" + u
		}
		return u
	}
	return "/" + prefix + "/" + strings.TrimLeft(u, "/")
}
