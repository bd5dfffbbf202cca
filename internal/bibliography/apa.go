package bibliography

import (
	"html"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxAPAAuthors = 20

// formatAPA renders one entry as the inner HTML of a csl-entry element.
func formatAPA(e Entry) string {
	var b strings.Builder

	authors := formatAuthors(e.Author)
	if authors != "" {
		b.WriteString(authors)
		b.WriteString(" ")
		b.WriteString(formatYear(e))
		b.WriteString(" ")
		writeTitle(&b, e)
	} else {
		// APA moves the title into the author position.
		writeTitle(&b, e)
		b.WriteString(" ")
		b.WriteString(formatYear(e))
	}

	if source := formatSource(e); source != "" {
		b.WriteString(" ")
		b.WriteString(source)
	}

	if link := formatLink(e); link != "" {
		b.WriteString(" ")
		b.WriteString(html.EscapeString(link))
	}

	return b.String()
}

func formatYear(e Entry) string {
	if y, ok := e.Year(); ok {
		return "(" + strconv.Itoa(y) + ")."
	}
	return "(n.d.)."
}

// writeTitle writes the title, italicised for stand-alone works.
func writeTitle(b *strings.Builder, e Entry) {
	if e.Title == "" {
		return
	}
	title := html.EscapeString(e.Title)

	switch e.Type {
	case TypeBook, TypeReport, TypeThesis, TypeWebpage, TypeMisc:
		b.WriteString("<i>")
		b.WriteString(title)
		b.WriteString("</i>")
		switch {
		case e.Type == TypeThesis && e.Genre != "":
			bracket := e.Genre
			if e.Publisher != "" {
				bracket += ", " + e.Publisher
			}
			b.WriteString(" [" + html.EscapeString(bracket) + "]")
		case e.Type == TypeReport && e.Number != "":
			b.WriteString(" (" + html.EscapeString(e.Number) + ")")
		}
		b.WriteString(".")
	default:
		b.WriteString(sentence(title))
	}
}

func formatSource(e Entry) string {
	var b strings.Builder

	switch e.Type {
	case TypeArticle:
		if e.ContainerTitle == "" {
			break
		}
		b.WriteString("<i>" + html.EscapeString(e.ContainerTitle) + "</i>")
		if e.Volume != "" {
			b.WriteString(", <i>" + html.EscapeString(e.Volume) + "</i>")
		}
		if e.Issue != "" {
			b.WriteString("(" + html.EscapeString(e.Issue) + ")")
		}
		if e.Page != "" {
			b.WriteString(", " + html.EscapeString(e.Page))
		}
		b.WriteString(".")

	case TypeChapter, TypeConference:
		if e.ContainerTitle == "" {
			break
		}
		b.WriteString("In ")
		if eds := formatEditors(e.Editor); eds != "" {
			b.WriteString(eds + ", ")
		}
		b.WriteString("<i>" + html.EscapeString(e.ContainerTitle) + "</i>")
		if e.Page != "" {
			b.WriteString(" (pp. " + html.EscapeString(e.Page) + ")")
		}
		b.WriteString(".")
		if e.Publisher != "" {
			b.WriteString(" " + sentence(html.EscapeString(e.Publisher)))
		}

	case TypeThesis:
		// publisher already shown in the bracketed description

	default:
		if e.Publisher != "" {
			b.WriteString(sentence(html.EscapeString(e.Publisher)))
		}
	}

	return b.String()
}

func formatLink(e Entry) string {
	if doi := strings.TrimSpace(e.DOI); doi != "" {
		for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "http://dx.doi.org/", "doi:"} {
			doi = strings.TrimPrefix(doi, prefix)
		}
		return "https://doi.org/" + doi
	}
	return strings.TrimSpace(e.URL)
}

// formatAuthors renders an APA 7 author list.
func formatAuthors(names []Name) string {
	if len(names) == 0 {
		return ""
	}

	formatted := make([]string, len(names))
	for i, n := range names {
		formatted[i] = html.EscapeString(formatName(n))
	}

	var list string
	switch n := len(formatted); {
	case n == 1:
		list = formatted[0]
	case n <= maxAPAAuthors:
		list = strings.Join(formatted[:n-1], ", ") + ", &amp; " + formatted[n-1]
	default:
		list = strings.Join(formatted[:maxAPAAuthors-1], ", ") + ", . . . " + formatted[n-1]
	}
	return sentence(list)
}

func formatEditors(names []Name) string {
	if len(names) == 0 {
		return ""
	}

	formatted := make([]string, len(names))
	for i, n := range names {
		formatted[i] = html.EscapeString(formatNameGivenFirst(n))
	}

	var list string
	switch n := len(formatted); n {
	case 1:
		list = formatted[0] + " (Ed.)"
	case 2:
		list = formatted[0] + " &amp; " + formatted[1] + " (Eds.)"
	default:
		list = strings.Join(formatted[:n-1], ", ") + ", &amp; " + formatted[n-1] + " (Eds.)"
	}
	return list
}

// formatName renders "Family, G. M.".
func formatName(n Name) string {
	if n.Literal != "" {
		return n.Literal
	}
	if n.Given == "" {
		return n.Family
	}
	return n.Family + ", " + initials(n.Given)
}

// formatNameGivenFirst renders "G. M. Family", used for editors.
func formatNameGivenFirst(n Name) string {
	if n.Literal != "" {
		return n.Literal
	}
	if n.Given == "" {
		return n.Family
	}
	return initials(n.Given) + " " + n.Family
}

// initials turns "Jean-Paul Marie" into "J.-P. M.".
func initials(given string) string {
	words := strings.Fields(given)
	out := make([]string, 0, len(words))
	for _, w := range words {
		parts := strings.Split(w, "-")
		inits := make([]string, 0, len(parts))
		for _, p := range parts {
			r, _ := utf8.DecodeRuneInString(p)
			if r == utf8.RuneError || !unicode.IsLetter(r) {
				continue
			}
			inits = append(inits, string(unicode.ToUpper(r))+".")
		}
		if len(inits) > 0 {
			out = append(out, strings.Join(inits, "-"))
		}
	}
	return strings.Join(out, " ")
}

// sentence terminates s with a period unless it already ends a sentence.
func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '?', '!':
		return s
	}
	return s + "."
}
