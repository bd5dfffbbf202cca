package bibliography

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nickng/bibtex"
)

// ErrParse wraps every failure to read BibTeX input.
var ErrParse = errors.New("invalid bibtex")

var (
	yearPattern = regexp.MustCompile(`\d{4}`)
	datePattern = regexp.MustCompile(`^(\d{4})(?:-(\d{1,2}))?(?:-(\d{1,2}))?`)
	nameSep     = regexp.MustCompile(`(?i)\s+and\s+`)
)

var months = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// bibtex entry type -> CSL type
var entryTypes = map[string]string{
	"article":       TypeArticle,
	"book":          TypeBook,
	"booklet":       TypeBook,
	"inbook":        TypeChapter,
	"incollection":  TypeChapter,
	"inproceedings": TypeConference,
	"conference":    TypeConference,
	"phdthesis":     TypeThesis,
	"mastersthesis": TypeThesis,
	"techreport":    TypeReport,
	"online":        TypeWebpage,
	"misc":          TypeMisc,
	"unpublished":   TypeMisc,
	"manual":        TypeReport,
}

// Parse reads BibTeX source into entries, preserving input order.
func Parse(raw string) ([]Entry, error) {
	bib, err := bibtex.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	entries := make([]Entry, 0, len(bib.Entries))
	for _, be := range bib.Entries {
		if be == nil {
			continue
		}
		entries = append(entries, convert(be))
	}
	return entries, nil
}

func convert(be *bibtex.BibEntry) Entry {
	fields := make(map[string]string, len(be.Fields))
	for k, v := range be.Fields {
		if v == nil {
			continue
		}
		fields[strings.ToLower(k)] = cleanTeX(v.String())
	}

	bibType := strings.ToLower(be.Type)
	e := Entry{
		ID:     be.CiteName,
		Type:   cslType(bibType),
		Title:  stripBraces(fields["title"]),
		Author: parseNames(fields["author"]),
		Editor: parseNames(fields["editor"]),
		Issued: parseIssued(fields),
		Volume: stripBraces(fields["volume"]),
		Issue:  firstOf(fields, "number", "issue"),
		Page:   strings.ReplaceAll(stripBraces(fields["pages"]), "--", "–"),
		DOI:    stripBraces(fields["doi"]),
		URL:    firstOf(fields, "url", "howpublished"),
	}

	switch bibType {
	case "article":
		e.ContainerTitle = firstOf(fields, "journal", "journaltitle")
	case "inbook", "incollection", "inproceedings", "conference":
		e.ContainerTitle = fields["booktitle"]
		e.Issue = ""
	case "phdthesis":
		e.Genre = "Doctoral dissertation"
		e.Issue = ""
	case "mastersthesis":
		e.Genre = "Master's thesis"
		e.Issue = ""
	case "techreport":
		e.Number = stripBraces(fields["number"])
		e.Issue = ""
	default:
		e.Issue = ""
	}

	e.Publisher = firstOf(fields, "publisher", "school", "institution", "organization")

	// howpublished is only a URL when it looks like one
	if e.URL != "" && !strings.Contains(e.URL, "://") {
		e.URL = ""
	}
	return e
}

func cslType(bibType string) string {
	if t, ok := entryTypes[bibType]; ok {
		return t
	}
	return TypeMisc
}

func parseIssued(fields map[string]string) Date {
	if y := yearPattern.FindString(fields["year"]); y != "" {
		year, _ := strconv.Atoi(y)
		parts := []int{year}
		if m := parseMonth(fields["month"]); m > 0 {
			parts = append(parts, m)
		}
		return Date{DateParts: [][]int{parts}}
	}

	if m := datePattern.FindStringSubmatch(fields["date"]); m != nil {
		parts := make([]int, 0, 3)
		for _, s := range m[1:] {
			if s == "" {
				break
			}
			n, _ := strconv.Atoi(s)
			parts = append(parts, n)
		}
		return Date{DateParts: [][]int{parts}}
	}

	return Date{}
}

func parseMonth(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 12 {
		return n
	}
	if len(s) >= 3 {
		return months[s[:3]]
	}
	return 0
}

// parseNames splits a BibTeX name list ("Last, First and First Last").
func parseNames(s string) []Name {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var names []Name
	for _, part := range splitTopLevel(s) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		names = append(names, parseName(part))
	}
	return names
}

// splitTopLevel splits on " and " outside braces so that corporate names
// like {Smith and Sons} survive intact.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ' ', '\t', '\n':
			if depth != 0 {
				continue
			}
			if loc := nameSep.FindStringIndex(s[i:]); loc != nil && loc[0] == 0 {
				parts = append(parts, s[start:i])
				start = i + loc[1]
				i = start - 1
			}
		}
	}
	return append(parts, s[start:])
}

func parseName(s string) Name {
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && unwrapBraces(s) != s {
		return Name{Literal: stripBraces(s)}
	}

	if family, given, ok := strings.Cut(s, ","); ok {
		return Name{
			Family: strings.TrimSpace(stripBraces(family)),
			Given:  strings.TrimSpace(stripBraces(given)),
		}
	}

	words := fieldsTopLevel(s)
	for i, w := range words {
		words[i] = stripBraces(w)
	}
	if len(words) == 1 {
		return Name{Family: words[0]}
	}
	return Name{
		Family: words[len(words)-1],
		Given:  strings.Join(words[:len(words)-1], " "),
	}
}

// fieldsTopLevel splits on whitespace outside braces.
func fieldsTopLevel(s string) []string {
	var (
		words []string
		depth int
		start = -1
	)
	for i, r := range s {
		switch {
		case r == '{':
			depth++
		case r == '}':
			if depth > 0 {
				depth--
			}
		case depth == 0 && (r == ' ' || r == '\t' || r == '\n'):
			if start >= 0 {
				words = append(words, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, s[start:])
	}
	return words
}

var texReplacer = strings.NewReplacer(
	`\&`, "&",
	`\%`, "%",
	`\_`, "_",
	`\$`, "$",
	`\#`, "#",
	"---", "—",
	"~", " ",
)

// cleanTeX normalises a field value: surrounding quotes or braces dropped,
// common escapes resolved, whitespace collapsed. Braces are kept so that name
// parsing can still see protected groups; stripBraces removes them later.
func cleanTeX(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	s = unwrapBraces(s)
	s = texReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// unwrapBraces removes one pair of braces enclosing the whole value.
func unwrapBraces(s string) string {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return s
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 && i != len(s)-1 {
				return s
			}
		}
	}
	return s[1 : len(s)-1]
}

func stripBraces(s string) string {
	return strings.NewReplacer("{", "", "}", "").Replace(s)
}

func firstOf(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := fields[k]; v != "" {
			return stripBraces(v)
		}
	}
	return ""
}
