// Package compare decides whether two validator output directories are
// equivalent, after suppressing differences that carry no meaning.
package compare

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/pmezard/go-difflib/difflib"
)

// Check is the result of comparing one artifact.
type Check struct {
	Label    string   `json:"label"`
	Expected string   `json:"expected"`
	Actual   string   `json:"actual"`
	Passed   bool     `json:"passed"`
	Missing  []string `json:"missing,omitempty"`
	Diff     string   `json:"diff,omitempty"`
	Err      string   `json:"error,omitempty"`
}

// String renders the check the way a failing comparison is reported.
func (c Check) String() string {
	switch {
	case c.Passed:
		return c.Label + " matches"
	case len(c.Missing) > 0:
		return fmt.Sprintf("%s missing: %s", c.Label, strings.Join(c.Missing, ", "))
	case c.Err != "":
		return fmt.Sprintf("%s unreadable: %s", c.Label, c.Err)
	}
	return fmt.Sprintf("%s differs:\n%s", c.Label, c.Diff)
}

// Outcome is the verdict over every configured check.
type Outcome struct {
	Checks []Check `json:"checks"`
}

// Passed reports whether every check passed.
func (o Outcome) Passed() bool {
	for _, c := range o.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failures returns the failing checks.
func (o Outcome) Failures() []Check {
	var out []Check
	for _, c := range o.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// String renders every failing check followed by the overall verdict.
func (o Outcome) String() string {
	var b strings.Builder
	for _, c := range o.Failures() {
		b.WriteString(c.String())
		b.WriteString("\n")
	}
	if o.Passed() {
		b.WriteString("Outputs match.")
	} else {
		b.WriteString("Outputs differ.")
	}
	return b.String()
}

// Dirs compares the artifacts of expectedDir and actualDir selected by opts.
// Neither directory is modified.
func Dirs(expectedDir, actualDir string, opts Options) Outcome {
	var out Outcome
	for _, name := range opts.JSONFiles() {
		out.Checks = append(out.Checks, JSON(name,
			filepath.Join(expectedDir, name), filepath.Join(actualDir, name), opts))
	}
	if !opts.SkipHTML {
		name := opts.HTML()
		out.Checks = append(out.Checks, Text(name,
			filepath.Join(expectedDir, name), filepath.Join(actualDir, name)))
	}
	return out
}

// JSON compares two JSON documents after normalization.
func JSON(label, expectedPath, actualPath string, opts Options) Check {
	c := Check{Label: label, Expected: expectedPath, Actual: actualPath}
	if c.Missing = missing(expectedPath, actualPath); len(c.Missing) > 0 {
		return c
	}

	left, err := loadJSON(expectedPath)
	if err != nil {
		c.Err = err.Error()
		return c
	}
	right, err := loadJSON(actualPath)
	if err != nil {
		c.Err = err.Error()
		return c
	}

	left = NormalizeDocument(left, opts)
	right = NormalizeDocument(right, opts)
	if cmp.Equal(left, right) {
		c.Passed = true
		return c
	}

	leftDump, err := stableIndent(left)
	if err != nil {
		c.Err = err.Error()
		return c
	}
	rightDump, err := stableIndent(right)
	if err != nil {
		c.Err = err.Error()
		return c
	}
	c.Diff = unifiedDiff(leftDump, rightDump, expectedPath, actualPath)
	return c
}

// Text compares two text artifacts, ignoring line ending style only.
func Text(label, expectedPath, actualPath string) Check {
	c := Check{Label: label, Expected: expectedPath, Actual: actualPath}
	if c.Missing = missing(expectedPath, actualPath); len(c.Missing) > 0 {
		return c
	}
	left, err := os.ReadFile(expectedPath)
	if err != nil {
		c.Err = err.Error()
		return c
	}
	right, err := os.ReadFile(actualPath)
	if err != nil {
		c.Err = err.Error()
		return c
	}
	l, r := normalizeLineEndings(string(left)), normalizeLineEndings(string(right))
	if l == r {
		c.Passed = true
		return c
	}
	c.Diff = unifiedDiff(l, r, expectedPath, actualPath)
	return c
}

func missing(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			out = append(out, p)
		}
	}
	return out
}

func loadJSON(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return v, nil
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// NormalizeDocument applies the normalization passes selected by opts to a
// decoded JSON document and returns the result. The input is not modified
// and applying the passes twice gives the same result as applying them once.
func NormalizeDocument(doc any, opts Options) any {
	root, ok := doc.(map[string]any)
	if !ok {
		return doc
	}
	root = shallowCopy(root)

	if opts.IgnoreSummary {
		delete(root, "summary")
	} else if summary, ok := root["summary"].(map[string]any); ok {
		summary = shallowCopy(summary)
		for _, field := range opts.IgnoreSummaryFields {
			delete(summary, field)
		}
		if opts.SortSummaryArrays {
			for _, field := range SortableSummaryFields {
				if list, ok := summary[field].([]any); ok {
					summary[field] = sortedValues(list)
				}
			}
		}
		root["summary"] = summary
	}

	if opts.IgnoreNoticeOrder {
		if list, ok := root["notices"].([]any); ok {
			groups := make([]any, len(list))
			for i, item := range list {
				group, ok := item.(map[string]any)
				if !ok {
					groups[i] = item
					continue
				}
				group = shallowCopy(group)
				if samples, ok := group["sampleNotices"].([]any); ok {
					group["sampleNotices"] = sortedValues(samples)
				}
				groups[i] = group
			}
			root["notices"] = sortedValues(groups)
		}
	}
	return root
}

func shallowCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// sortedValues orders values by their canonical encoding: compact JSON with
// sorted object keys.
func sortedValues(list []any) []any {
	type keyed struct {
		key string
		v   any
	}
	items := make([]keyed, len(list))
	for i, v := range list {
		items[i] = keyed{key: canonicalKey(v), v: v}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].key < items[j].key })
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it.v
	}
	return out
}

func canonicalKey(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// stableIndent re-serializes v with sorted keys and two-space indentation.
func stableIndent(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return buf.String(), nil
}

func unifiedDiff(a, b, fromFile, toFile string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("diff unavailable: %v", err)
	}
	return strings.TrimRight(text, "\n")
}
