package errors

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// ParsedError is a build failure broken down for display in the browser
// overlay and the health endpoint.
type ParsedError struct {
	Stage      Stage  `json:"stage,omitempty"`
	File       string `json:"file,omitempty"`
	Template   string `json:"template,omitempty"`
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

type locationPattern struct {
	regex *regexp.Regexp
	// lineOffset is added to the reported line
	lineOffset int
	parse      func(m []string, pe *ParsedError)
}

var locationPatterns = []locationPattern{
	{
		// template: index.html:3:5: executing "index.html" at <.x>: msg
		// html/template:index.html:3:11: msg
		regex: regexp.MustCompile(`(?:html/)?template: ?([^:\s]+):(\d+)(?::(\d+))?: (.*)$`),
		parse: func(m []string, pe *ParsedError) {
			pe.Template = m[1]
			pe.Line, _ = strconv.Atoi(m[2])
			pe.Column, _ = strconv.Atoi(m[3])
			pe.Message = m[4]
		},
	},
	{
		// front matter starts one line below the opening fence
		regex:      regexp.MustCompile(`invalid front matter: yaml: line (\d+): (.*)$`),
		lineOffset: 1,
		parse: func(m []string, pe *ParsedError) {
			pe.Line, _ = strconv.Atoi(m[1])
			pe.Message = m[2]
		},
	},
	{
		regex: regexp.MustCompile(`yaml: line (\d+): (.*)$`),
		parse: func(m []string, pe *ParsedError) {
			pe.Line, _ = strconv.Atoi(m[1])
			pe.Message = m[2]
		},
	},
}

type suggestionPattern struct {
	regex      *regexp.Regexp
	suggestion string
}

var suggestionPatterns = []suggestionPattern{
	{regexp.MustCompile(`function "([^"]+)" not defined`), `Register a filter named "$1" or fix the spelling`},
	{regexp.MustCompile(`layout "([^"]+)" not found`), `Create "$1" in the includes directory or fix the layout name`},
	{regexp.MustCompile(`no publication year`), "Add a year or date field to the listed entries"},
	{regexp.MustCompile(`invalid bibtex`), "Check the .bib file for unbalanced braces or missing commas"},
	{regexp.MustCompile(`front matter is not closed`), `Close the front matter with a line containing only "---"`},
	{regexp.MustCompile(`is also written by`), "Give one of the pages a distinct permalink"},
}

// ParseBuildError flattens err into one ParsedError per failing file.
// Joined errors are expanded, and template and YAML messages are split
// into a location and a message.
func ParseBuildError(err error) []*ParsedError {
	if err == nil {
		return nil
	}

	var parsed []*ParsedError
	for _, e := range flatten(err) {
		pe := &ParsedError{Message: e.Error()}

		var be *BuildError
		if errors.As(e, &be) {
			pe.Stage = be.Stage
			pe.File = be.Path
			if be.Err != nil {
				pe.Message = be.Err.Error()
			}
		}

		locate(pe)
		suggest(pe)
		parsed = append(parsed, pe)
	}
	return parsed
}

// flatten expands errors.Join trees, stopping at the first BuildError in
// each branch.
func flatten(err error) []error {
	for e := err; e != nil; {
		switch x := e.(type) {
		case *BuildError:
			return []error{x}
		case interface{ Unwrap() []error }:
			var out []error
			for _, child := range x.Unwrap() {
				out = append(out, flatten(child)...)
			}
			return out
		case interface{ Unwrap() error }:
			e = x.Unwrap()
		default:
			return []error{err}
		}
	}
	return []error{err}
}

func locate(pe *ParsedError) {
	for _, p := range locationPatterns {
		m := p.regex.FindStringSubmatch(pe.Message)
		if m == nil {
			continue
		}
		p.parse(m, pe)
		if pe.Line > 0 {
			pe.Line += p.lineOffset
		}
		return
	}
}

func suggest(pe *ParsedError) {
	for _, p := range suggestionPatterns {
		if m := p.regex.FindStringSubmatchIndex(pe.Message); m != nil {
			pe.Suggestion = string(p.regex.ExpandString(nil, p.suggestion, pe.Message, m))
			return
		}
	}
}

// Location formats the file position as path:line:column, omitting the
// parts that are unknown.
func (pe *ParsedError) Location() string {
	file := pe.File
	if pe.Template != "" && !strings.HasSuffix(file, pe.Template) {
		if file == "" {
			file = pe.Template
		} else {
			file += " (" + pe.Template + ")"
		}
	}
	if pe.Line > 0 {
		file += ":" + strconv.Itoa(pe.Line)
		if pe.Column > 0 {
			file += ":" + strconv.Itoa(pe.Column)
		}
	}
	return file
}

// FormatError formats a parsed error for terminal display
func (pe *ParsedError) FormatError() string {
	var builder strings.Builder

	builder.WriteString("[" + strings.ToUpper(string(pe.Stage)) + "]")
	if loc := pe.Location(); loc != "" {
		builder.WriteString(" " + loc)
	}
	builder.WriteString("\n")
	builder.WriteString(fmt.Sprintf("  %s\n", pe.Message))
	if pe.Suggestion != "" {
		builder.WriteString(fmt.Sprintf("  hint: %s\n", pe.Suggestion))
	}
	return builder.String()
}

// FormatErrorsForBrowser renders errs as a standalone HTML page. All
// error text is escaped.
func FormatErrorsForBrowser(errs []*ParsedError) string {
	var builder strings.Builder

	builder.WriteString(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Build Errors</title>
    <style>
        body { font-family: monospace; margin: 20px; background-color: #1e1e1e; color: #ffffff; }
        .error { margin: 20px 0; padding: 15px; border-left: 4px solid #ff4444; background-color: #2d2d2d; }
        .error-header { font-weight: bold; font-size: 1.1em; margin-bottom: 10px; }
        .error-location { color: #88ccff; font-size: 0.9em; }
        .error-message { margin: 10px 0; white-space: pre-wrap; }
        .error-suggestion { color: #88ff88; font-style: italic; margin-top: 10px; }
    </style>
</head>
<body>
`)

	if len(errs) == 0 {
		builder.WriteString("    <h1>No build errors</h1>\n")
	} else {
		builder.WriteString("    <h1>Build Errors</h1>\n")
	}

	for _, pe := range errs {
		builder.WriteString(`    <div class="error">` + "\n")
		stage := string(pe.Stage)
		if stage == "" {
			stage = "build"
		}
		builder.WriteString(fmt.Sprintf("        <div class=\"error-header\">%s</div>\n", html.EscapeString(stage)))
		if loc := pe.Location(); loc != "" {
			builder.WriteString(fmt.Sprintf("        <div class=\"error-location\">%s</div>\n", html.EscapeString(loc)))
		}
		builder.WriteString(fmt.Sprintf("        <div class=\"error-message\">%s</div>\n", html.EscapeString(pe.Message)))
		if pe.Suggestion != "" {
			builder.WriteString(fmt.Sprintf("        <div class=\"error-suggestion\">%s</div>\n", html.EscapeString(pe.Suggestion)))
		}
		builder.WriteString("    </div>\n")
	}

	builder.WriteString("</body>\n</html>\n")
	return builder.String()
}
