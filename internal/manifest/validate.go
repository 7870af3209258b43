package manifest

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/pflag"
)

// DefaultIgnoredNames never count as expected output.
var DefaultIgnoredNames = []string{"target", ".DS_Store", "Thumbs.db"}

// ValidateOptions mirrors the validate command's flags.
type ValidateOptions struct {
	SkipExistence      bool
	AllowEmptyExpected bool
	WarnEmptyExpected  bool
	IgnoreNames        []string
	NoColumnWarn       bool
}

// ParseOptions returns the parse-time part of o.
func (o ValidateOptions) ParseOptions() ParseOptions {
	return ParseOptions{NoColumnWarn: o.NoColumnWarn}
}

// ParseValidateFlags parses validate flags such as those held in
// MANIFEST_VALIDATE_FLAGS.
func ParseValidateFlags(args []string) (ValidateOptions, error) {
	var o ValidateOptions
	set := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	set.SetOutput(io.Discard)
	set.BoolVar(&o.SkipExistence, "skip-existence", false, "skip file existence checks")
	set.BoolVar(&o.AllowEmptyExpected, "allow-empty-expected", false, "allow expected_dir to be empty")
	set.BoolVar(&o.WarnEmptyExpected, "warn-empty-expected", false, "warn instead of failing if expected_dir is empty")
	set.StringArrayVar(&o.IgnoreNames, "ignore-name", nil, "additional names to ignore in expected_dir")
	set.BoolVar(&o.NoColumnWarn, "no-column-warn", false, "disable warnings for rows with fewer than 7 columns")
	if err := set.Parse(args); err != nil {
		return o, fmt.Errorf("manifest: %w", err)
	}
	if set.NArg() > 0 {
		return o, fmt.Errorf("manifest: unexpected argument %q", set.Arg(0))
	}
	return o, nil
}

// Validate returns the parse problems of m followed by every fixture
// violation of its entries. It never stops at the first one.
func Validate(m *Manifest, opts ValidateOptions) Problems {
	problems := append(Problems(nil), m.Problems...)
	if opts.SkipExistence {
		return problems
	}
	ignored := append(append([]string(nil), DefaultIgnoredNames...), opts.IgnoreNames...)
	for _, e := range m.Entries {
		problems = append(problems, validateEntry(e, opts, ignored)...)
	}
	return problems
}

func validateEntry(e Entry, opts ValidateOptions, ignored []string) Problems {
	var problems Problems
	add := func(sev Severity, format string, args ...any) {
		problems = append(problems, Problem{Line: e.Line, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if !exists(e.FeedPath) {
		add(SeverityError, "feed not found: %s", e.FeedPath)
	}
	if !exists(e.ExpectedDir) {
		add(SeverityError, "expected_dir not found: %s", e.ExpectedDir)
	} else if !opts.AllowEmptyExpected {
		has, err := HasOutputs(e.ExpectedDir, ignored)
		switch {
		case err != nil:
			add(SeverityError, "expected_dir unreadable: %v", err)
		case !has && opts.WarnEmptyExpected:
			add(SeverityWarning, "expected_dir is empty: %s", e.ExpectedDir)
		case !has:
			add(SeverityError, "expected_dir is empty: %s", e.ExpectedDir)
		}
	}

	for _, name := range e.ExtraJSON {
		if p := e.Resolve(name); !exists(p) {
			add(SeverityError, "extra JSON missing: %s", p)
		}
	}
	if e.HTMLName != "" {
		if p := e.Resolve(e.HTMLName); !exists(p) {
			add(SeverityError, "HTML missing: %s", p)
		}
	}
	return problems
}

// HasOutputs reports whether dir holds any entry not named in ignored.
func HasOutputs(dir string, ignored []string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	skip := make(map[string]bool, len(ignored))
	for _, n := range ignored {
		skip[n] = true
	}
	for _, entry := range entries {
		if !skip[entry.Name()] {
			return true, nil
		}
	}
	return false, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
