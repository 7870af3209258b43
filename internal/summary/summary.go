// Package summary persists parity results as a JSON summary and a Markdown
// report, and reads a prior summary back.
package summary

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/feedparity/feedparity-go/internal/domain"
)

// File names written into the output root.
const (
	SummaryFile = "summary_all_tests.json"
	ReportFile  = "report.md"
)

//go:embed schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("summary.json", strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("summary: add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("summary.json")
	})
	return schema, schemaErr
}

// Write stores results as SummaryFile and ReportFile under dir, creating dir
// if needed. Records keep the order of results.
func Write(dir string, results []domain.CaseResult, mode domain.MatchMode, runID string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("summary: create %s: %w", dir, err)
	}
	if results == nil {
		results = []domain.CaseResult{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("summary: encode: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SummaryFile), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("summary: write %s: %w", SummaryFile, err)
	}

	report := Markdown(results, mode, runID)
	if err := os.WriteFile(filepath.Join(dir, ReportFile), []byte(report), 0o644); err != nil {
		return fmt.Errorf("summary: write %s: %w", ReportFile, err)
	}
	return nil
}

// Load reads a summary written by Write. A missing file yields an empty list;
// a file that does not match the summary schema is an error.
func Load(path string) ([]domain.CaseResult, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("summary: read %s: %w", path, err)
	}

	s, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("summary: decode %s: %w", path, err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("summary: %s: %w", path, err)
	}

	var results []domain.CaseResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("summary: decode %s: %w", path, err)
	}
	for i, r := range results {
		if err := domain.ValidateCaseResult(r); err != nil {
			return nil, fmt.Errorf("summary: %s: case %d: %w", path, i, err)
		}
	}
	return results, nil
}

// Markdown renders the human-readable report.
func Markdown(results []domain.CaseResult, mode domain.MatchMode, runID string) string {
	var b strings.Builder
	b.WriteString("# Feed Validator Parity Report\n\n")
	fmt.Fprintf(&b, "Match mode: %s\n\n", mode)
	if runID != "" {
		fmt.Fprintf(&b, "Run: %s\n\n", runID)
	}
	fmt.Fprintf(&b, "Tested %d feeds.\n\n", len(results))
	b.WriteString(newTable(results).RenderMarkdown())
	b.WriteString("\n")
	return b.String()
}

// Table writes results as a terminal table to w.
func Table(w io.Writer, results []domain.CaseResult) {
	t := newTable(results)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	fmt.Fprintln(w, t.Render())
}

// Counts returns how many results matched and how many did not.
func Counts(results []domain.CaseResult) (matched, mismatched int) {
	for _, r := range results {
		if r.Match {
			matched++
		} else {
			mismatched++
		}
	}
	return matched, mismatched
}

func newTable(results []domain.CaseResult) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Feed", "Reference Total", "Candidate Total", "Match", "Duration (R/C)"})
	for _, r := range results {
		t.AppendRow(table.Row{
			r.Name,
			totalCell(domain.Reference, r.Reference),
			totalCell(domain.Candidate, r.Candidate),
			matchCell(r),
			fmt.Sprintf("%.2fs / %.2fs", r.Reference.Duration, r.Candidate.Duration),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignCenter},
		{Number: 3, Align: text.AlignCenter},
		{Number: 4, Align: text.AlignCenter},
		{Number: 5, Align: text.AlignCenter},
	})
	return t
}

func totalCell(impl domain.Implementation, r domain.ImplResult) string {
	if !r.Failed {
		return fmt.Sprint(r.Total)
	}
	label := "Reference failed"
	if impl == domain.Candidate {
		label = "Candidate failed"
	}
	if r.FailureReason == domain.FailureResourceExhaustion {
		return label + " (resource exhaustion)"
	}
	return label
}

func matchCell(r domain.CaseResult) string {
	switch {
	case r.Reference.Failed:
		return "N/A"
	case r.Match:
		return "✅"
	default:
		return "❌"
	}
}
