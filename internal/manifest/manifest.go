// Package manifest parses and validates the tab-separated list of golden
// cases.
//
// Each non-blank, non-comment line holds up to seven tab-separated fields:
//
//	feed_path  expected_dir  case_name  extra_json  html_name  validator_args  compare_flags
//
// Fields may be quoted the way a delimited record format quotes them.
// extra_json, validator_args and compare_flags are split into shell words.
package manifest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/shlex"

	"github.com/feedparity/feedparity-go/internal/compare"
)

// Columns is the number of fields in a complete row.
const Columns = 7

// Severity of a Problem.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Problem is one manifest or fixture violation, tied to its source line.
type Problem struct {
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (p Problem) String() string {
	if p.Severity == SeverityWarning {
		return fmt.Sprintf("Line %d: warning: %s", p.Line, p.Message)
	}
	return fmt.Sprintf("Line %d: %s", p.Line, p.Message)
}

// Problems is an ordered list of violations.
type Problems []Problem

// Errors counts problems of error severity.
func (ps Problems) Errors() int {
	n := 0
	for _, p := range ps {
		if p.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Warnings counts problems of warning severity.
func (ps Problems) Warnings() int {
	return len(ps) - ps.Errors()
}

// Entry is one parsed manifest row.
type Entry struct {
	FeedPath      string   `json:"feed_path"`
	ExpectedDir   string   `json:"expected_dir"`
	CaseName      string   `json:"case_name"`
	ExtraJSON     []string `json:"extra_json,omitempty"`
	HTMLName      string   `json:"html_name,omitempty"`
	ValidatorArgs []string `json:"validator_args,omitempty"`
	CompareFlags  []string `json:"compare_flags,omitempty"`
	Line          int      `json:"line"`
}

// HTMLReport returns the declared HTML artifact name or the standard one.
func (e Entry) HTMLReport() string {
	if e.HTMLName != "" {
		return e.HTMLName
	}
	return compare.DefaultHTMLName
}

// Resolve returns name as-is when absolute, else joined under ExpectedDir.
func (e Entry) Resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(e.ExpectedDir, name)
}

// Matches reports whether the case name matches the glob pattern. An empty
// pattern matches everything; a malformed pattern matches nothing.
func (e Entry) Matches(pattern string) bool {
	if pattern == "" {
		return true
	}
	ok, err := doublestar.Match(pattern, e.CaseName)
	return err == nil && ok
}

// Manifest is a parsed case list. Entries holds only rows without errors;
// Problems holds everything found while parsing.
type Manifest struct {
	Path     string
	Entries  []Entry
	Problems Problems
}

// Filter returns the entries whose case name matches pattern.
func (m *Manifest) Filter(pattern string) []Entry {
	var out []Entry
	for _, e := range m.Entries {
		if e.Matches(pattern) {
			out = append(out, e)
		}
	}
	return out
}

// ParseOptions controls row-shape diagnostics.
type ParseOptions struct {
	// NoColumnWarn suppresses the warning for rows with fewer than seven
	// fields.
	NoColumnWarn bool
}

// Load reads and parses the manifest at path.
func Load(path string, opts ParseOptions) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	defer f.Close()

	m, err := Parse(f, opts)
	if err != nil {
		return nil, err
	}
	m.Path = path
	return m, nil
}

// Parse reads rows from r. A bad row is recorded as a Problem and parsing
// continues; only a read failure is returned as an error.
func Parse(r io.Reader, opts ParseOptions) (*Manifest, error) {
	m := &Manifest{}
	firstLine := make(map[string]int)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" || strings.HasPrefix(strings.TrimLeft(line, " \t"), "#") {
			continue
		}

		entry, problems := parseRow(line, lineNo, opts)
		m.Problems = append(m.Problems, problems...)
		if problems.Errors() > 0 {
			continue
		}
		if first, dup := firstLine[entry.CaseName]; dup {
			m.Problems = append(m.Problems, Problem{
				Line:     lineNo,
				Severity: SeverityError,
				Message:  fmt.Sprintf("duplicate case_name %q (first on line %d)", entry.CaseName, first),
			})
			continue
		}
		firstLine[entry.CaseName] = lineNo
		m.Entries = append(m.Entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("manifest: read line %d: %w", lineNo+1, err)
	}
	return m, nil
}

func parseRow(line string, lineNo int, opts ParseOptions) (Entry, Problems) {
	var problems Problems
	fail := func(format string, args ...any) (Entry, Problems) {
		problems = append(problems, Problem{Line: lineNo, Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
		return Entry{}, problems
	}

	fields, err := splitFields(line)
	if err != nil {
		return fail("malformed row: %v", err)
	}
	if len(fields) < 2 {
		return fail("expected at least 2 columns (feed_path, expected_dir)")
	}
	if len(fields) < Columns && !opts.NoColumnWarn {
		problems = append(problems, Problem{
			Line:     lineNo,
			Severity: SeverityWarning,
			Message:  "fewer than 7 columns; use tabs for empty fields",
		})
	}
	for len(fields) < Columns {
		fields = append(fields, "")
	}

	e := Entry{
		FeedPath:    fields[0],
		ExpectedDir: fields[1],
		CaseName:    fields[2],
		HTMLName:    fields[4],
		Line:        lineNo,
	}
	if e.FeedPath == "" {
		return fail("missing feed_path")
	}
	if e.ExpectedDir == "" {
		return fail("missing expected_dir")
	}
	if e.CaseName == "" {
		e.CaseName = filepath.Base(filepath.Clean(e.ExpectedDir))
	}

	if e.ExtraJSON, err = SplitWords(fields[3]); err != nil {
		return fail("extra_json: %v", err)
	}
	if e.ValidatorArgs, err = SplitWords(fields[5]); err != nil {
		return fail("validator_args: %v", err)
	}
	if e.CompareFlags, err = SplitWords(fields[6]); err != nil {
		return fail("compare_flags: %v", err)
	}
	return e, problems
}

func splitFields(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	return r.Read()
}

// SplitWords splits s into shell words, dropping empty ones.
func SplitWords(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	words, err := shlex.Split(s)
	if err != nil {
		return nil, err
	}
	out := words[:0]
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
