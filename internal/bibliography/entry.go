package bibliography

import (
	"strings"
)

// Entry types, named after their CSL equivalents.
const (
	TypeArticle    = "article-journal"
	TypeBook       = "book"
	TypeChapter    = "chapter"
	TypeConference = "paper-conference"
	TypeThesis     = "thesis"
	TypeReport     = "report"
	TypeWebpage    = "webpage"
	TypeMisc       = "document"
)

// Name is a personal or institutional name.
// Literal is set for names that must not be split, such as organisations
// written in braces.
type Name struct {
	Family  string `json:"family,omitempty"`
	Given   string `json:"given,omitempty"`
	Literal string `json:"literal,omitempty"`
}

// Date holds CSL date-parts: each inner slice is year[, month[, day]].
type Date struct {
	DateParts [][]int `json:"date-parts,omitempty"`
}

// Entry is one bibliographic record.
type Entry struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Title          string `json:"title,omitempty"`
	Author         []Name `json:"author,omitempty"`
	Editor         []Name `json:"editor,omitempty"`
	Issued         Date   `json:"issued"`
	ContainerTitle string `json:"container-title,omitempty"`
	Volume         string `json:"volume,omitempty"`
	Issue          string `json:"issue,omitempty"`
	Page           string `json:"page,omitempty"`
	Publisher      string `json:"publisher,omitempty"`
	Genre          string `json:"genre,omitempty"`
	Number         string `json:"number,omitempty"`
	DOI            string `json:"DOI,omitempty"`
	URL            string `json:"URL,omitempty"`
}

// Year returns the publication year, the first element of the first
// date-parts entry.
func (e Entry) Year() (int, bool) {
	if len(e.Issued.DateParts) == 0 || len(e.Issued.DateParts[0]) == 0 {
		return 0, false
	}
	return e.Issued.DateParts[0][0], true
}

// sortKey is the author-based key used when the formatter orders entries
// itself.
func (e Entry) sortKey() string {
	if len(e.Author) == 0 {
		return strings.ToLower(e.Title)
	}
	first := e.Author[0]
	if first.Literal != "" {
		return strings.ToLower(first.Literal)
	}
	return strings.ToLower(first.Family + " " + first.Given)
}
