package bibliography

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBib = `
@article{doe2021,
  author = {Doe, Jane and Smith, John},
  title = {A Study of Things},
  journal = {Journal of Stuff},
  year = {2021},
  volume = {12},
  number = {3},
  pages = {1--10},
  doi = {10.1000/xyz123}
}

@book{roe2019,
  author = {Richard Roe},
  title = {Collected Essays},
  publisher = {Academic Press},
  year = {2019}
}

@inproceedings{lee2023,
  author = {Lee, Ann},
  title = {Fast Things},
  booktitle = {Proceedings of the Conference on Things},
  pages = {100--110},
  year = {2023},
  url = {http://example.org/paper}
}
`

func TestParse(t *testing.T) {
	entries, err := Parse(sampleBib)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byID := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	article := byID["doe2021"]
	assert.Equal(t, TypeArticle, article.Type)
	assert.Equal(t, "A Study of Things", article.Title)
	assert.Equal(t, []Name{{Family: "Doe", Given: "Jane"}, {Family: "Smith", Given: "John"}}, article.Author)
	assert.Equal(t, "Journal of Stuff", article.ContainerTitle)
	assert.Equal(t, "12", article.Volume)
	assert.Equal(t, "3", article.Issue)
	assert.Equal(t, "1–10", article.Page)
	assert.Equal(t, "10.1000/xyz123", article.DOI)
	year, ok := article.Year()
	assert.True(t, ok)
	assert.Equal(t, 2021, year)

	book := byID["roe2019"]
	assert.Equal(t, TypeBook, book.Type)
	assert.Equal(t, []Name{{Family: "Roe", Given: "Richard"}}, book.Author)
	assert.Equal(t, "Academic Press", book.Publisher)
	year, ok = book.Year()
	assert.True(t, ok)
	assert.Equal(t, 2019, year)

	paper := byID["lee2023"]
	assert.Equal(t, TypeConference, paper.Type)
	assert.Equal(t, "Proceedings of the Conference on Things", paper.ContainerTitle)
	assert.Equal(t, "http://example.org/paper", paper.URL)
	assert.Empty(t, paper.Issue)
}

func TestParseEmpty(t *testing.T) {
	entries, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse(`@article{broken, title = {unterminated`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseNames(t *testing.T) {
	tests := []struct {
		input    string
		expected []Name
	}{
		{"", nil},
		{"Jane Doe", []Name{{Family: "Doe", Given: "Jane"}}},
		{"Doe, Jane", []Name{{Family: "Doe", Given: "Jane"}}},
		{"Plato", []Name{{Family: "Plato"}}},
		{"Doe, Jane AND John Smith", []Name{{Family: "Doe", Given: "Jane"}, {Family: "Smith", Given: "John"}}},
		{"{Smith and Sons} and Roe, R.", []Name{{Literal: "Smith and Sons"}, {Family: "Roe", Given: "R."}}},
		{"Mary Ann {van der Berg}", []Name{{Family: "van der Berg", Given: "Mary Ann"}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseNames(tt.input))
		})
	}
}

func TestParseIssued(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		expected Date
	}{
		{"year", map[string]string{"year": "2019"}, Date{DateParts: [][]int{{2019}}}},
		{"year with suffix", map[string]string{"year": "2019a"}, Date{DateParts: [][]int{{2019}}}},
		{"year and month name", map[string]string{"year": "2020", "month": "March"}, Date{DateParts: [][]int{{2020, 3}}}},
		{"year and month number", map[string]string{"year": "2020", "month": "11"}, Date{DateParts: [][]int{{2020, 11}}}},
		{"biblatex date", map[string]string{"date": "2022-05-17"}, Date{DateParts: [][]int{{2022, 5, 17}}}},
		{"biblatex year only", map[string]string{"date": "2022"}, Date{DateParts: [][]int{{2022}}}},
		{"nothing", map[string]string{"title": "x"}, Date{}},
		{"unparseable", map[string]string{"year": "forthcoming"}, Date{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseIssued(tt.fields))
		})
	}
}

func TestCleanTeX(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`{A Title}`, "A Title"},
		{`"Quoted"`, "Quoted"},
		{`{DNA} and {RNA}`, "{DNA} and {RNA}"},
		{`Smith \& Sons`, "Smith & Sons"},
		{"  spread\n   over  lines ", "spread over lines"},
		{`pre---post`, "pre—post"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, cleanTeX(tt.input))
		})
	}
}
