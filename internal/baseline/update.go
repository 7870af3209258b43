// Package baseline maintains golden expected outputs: it overwrites them
// from actual output when asked to, and regenerates them from a manifest.
package baseline

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/feedparity/feedparity-go/internal/compare"
)

// FixedNames are always copied when a baseline is updated.
var FixedNames = []string{compare.ReportFile, compare.SystemErrorsFile, compare.DefaultHTMLName}

// Result lists what an update did with each candidate name.
type Result struct {
	Copied    []string
	Unchanged []string
	Absent    []string
	Refused   []string
}

// Names returns the fixed names followed by extra and htmlName, without
// duplicates or empty entries.
func Names(extra []string, htmlName string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, n := range FixedNames {
		add(n)
	}
	for _, n := range extra {
		add(n)
	}
	add(htmlName)
	return out
}

// Safe reports whether name stays inside the directory it is joined to.
func Safe(name string) bool {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return false
		}
	}
	return true
}

// Update copies each named artifact byte for byte from actualDir to
// expectedDir, creating expectedDir if needed. It replaces the previous
// baseline and must only run when the caller explicitly opted in. Names that
// are absolute or climb out of the directory are refused; artifacts missing
// from actualDir are skipped. The first I/O error aborts the update.
func Update(expectedDir, actualDir string, names []string) (Result, error) {
	var res Result
	if err := os.MkdirAll(expectedDir, 0o755); err != nil {
		return res, fmt.Errorf("baseline: create %s: %w", expectedDir, err)
	}

	for _, name := range names {
		if !Safe(name) {
			res.Refused = append(res.Refused, name)
			continue
		}
		src := filepath.Join(actualDir, name)
		data, err := os.ReadFile(src)
		if errors.Is(err, fs.ErrNotExist) {
			res.Absent = append(res.Absent, name)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("baseline: read %s: %w", src, err)
		}

		dst := filepath.Join(expectedDir, name)
		if current, err := os.ReadFile(dst); err == nil && bytes.Equal(current, data) {
			res.Unchanged = append(res.Unchanged, name)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return res, fmt.Errorf("baseline: create %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return res, fmt.Errorf("baseline: write %s: %w", dst, err)
		}
		res.Copied = append(res.Copied, name)
	}
	return res, nil
}
