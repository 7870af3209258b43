// Package testutil provides golden report fixtures and mock validator
// scripts for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// GoldenDir returns the absolute path to the tests/golden directory.
func GoldenDir() string {
	// testutil/ is at internal/testutil/, golden is at tests/golden/
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "tests", "golden")
}

// Golden reads a fixture from GoldenDir.
func Golden(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(GoldenDir(), name))
	require.NoError(t, err)
	return string(data)
}

// WriteFiles writes each name/body pair under dir, creating parents.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

// MockValidator describes what a fake validator binary does when invoked.
type MockValidator struct {
	// Files are written into the directory passed via --output_base or
	// --output.
	Files map[string]string
	// RecordArgs writes the received arguments, one per line, to args.txt
	// in the output directory.
	RecordArgs bool
	ExitCode   int
	Sleep      time.Duration
	Stderr     string
}

// ValidatorScript writes m as an executable shell script and returns its path.
func ValidatorScript(t *testing.T, m MockValidator) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on Windows")
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("out=\"\"\n")
	b.WriteString("prev=\"\"\n")
	b.WriteString("for a in \"$@\"; do\n")
	b.WriteString("  case \"$prev\" in --output_base|--output) out=\"$a\" ;; esac\n")
	b.WriteString("  prev=\"$a\"\n")
	b.WriteString("done\n")
	b.WriteString("[ -n \"$out\" ] && mkdir -p \"$out\"\n")
	if m.RecordArgs {
		b.WriteString("printf '%s\\n' \"$@\" > \"$out/args.txt\"\n")
	}

	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		delim := fmt.Sprintf("FIXTURE_EOF_%d", i)
		fmt.Fprintf(&b, "mkdir -p \"$(dirname \"$out/%s\")\"\n", name)
		fmt.Fprintf(&b, "cat > \"$out/%s\" <<'%s'\n%s\n%s\n", name, delim, m.Files[name], delim)
	}
	if m.Stderr != "" {
		fmt.Fprintf(&b, "echo '%s' >&2\n", m.Stderr)
	}
	if m.Sleep > 0 {
		fmt.Fprintf(&b, "sleep %d\n", int(m.Sleep.Seconds()+0.999))
	}
	fmt.Fprintf(&b, "exit %d\n", m.ExitCode)

	path := filepath.Join(t.TempDir(), "validator.sh")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o755))
	return path
}
