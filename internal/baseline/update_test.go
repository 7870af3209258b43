package baseline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedparity/feedparity-go/internal/testutil"
)

func TestNames(t *testing.T) {
	t.Parallel()
	got := Names([]string{"feed_info.json", "report.json", "", "feed_info.json"}, "custom.html")
	assert.Equal(t, []string{"report.json", "system_errors.json", "report.html", "feed_info.json", "custom.html"}, got)
	assert.Equal(t, FixedNames, Names(nil, ""))
}

func TestSafe(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want bool
	}{
		{"report.json", true},
		{"nested/feed_info.json", true},
		{"..json", true},
		{"../escape.json", false},
		{"nested/../../escape.json", false},
		{`nested\..\escape.json`, false},
		{"/etc/passwd", false},
		{`\share\file`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Safe(tt.name), tt.name)
	}
}

func TestUpdate_CopiesAndCreatesExpectedDir(t *testing.T) {
	t.Parallel()
	actual := t.TempDir()
	testutil.WriteFiles(t, actual, map[string]string{
		"report.json":        `{"notices":[{"code":"x"}]}`,
		"system_errors.json": `{"notices":[]}`,
		"feed_info.json":     `{}`,
	})
	expected := filepath.Join(t.TempDir(), "case", "expected")

	res, err := Update(expected, actual, Names([]string{"feed_info.json"}, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"report.json", "system_errors.json", "feed_info.json"}, res.Copied)
	assert.Equal(t, []string{"report.html"}, res.Absent)
	assert.Empty(t, res.Refused)

	data, err := os.ReadFile(filepath.Join(expected, "report.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"notices":[{"code":"x"}]}`, string(data))
}

func TestUpdate_IdenticalContentIsUnchanged(t *testing.T) {
	t.Parallel()
	actual := t.TempDir()
	expected := t.TempDir()
	files := map[string]string{"report.json": `{"a":1}`, "system_errors.json": `{}`}
	testutil.WriteFiles(t, actual, files)
	testutil.WriteFiles(t, expected, map[string]string{"report.json": `{"a":1}`, "system_errors.json": `{"old":true}`})

	res, err := Update(expected, actual, []string{"report.json", "system_errors.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{"report.json"}, res.Unchanged)
	assert.Equal(t, []string{"system_errors.json"}, res.Copied)

	data, err := os.ReadFile(filepath.Join(expected, "system_errors.json"))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestUpdate_RefusesEscapingNames(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	actual := filepath.Join(root, "actual")
	expected := filepath.Join(root, "expected")
	testutil.WriteFiles(t, root, map[string]string{"secret.json": `{}`, "actual/report.json": `{}`})

	res, err := Update(expected, actual, []string{"report.json", "../secret.json", "/abs.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{"../secret.json", "/abs.json"}, res.Refused)
	assert.Equal(t, []string{"report.json"}, res.Copied)
	assert.NoFileExists(t, filepath.Join(expected, "secret.json"))
}

func TestUpdate_NestedName(t *testing.T) {
	t.Parallel()
	actual := t.TempDir()
	expected := t.TempDir()
	testutil.WriteFiles(t, actual, map[string]string{"extra/notices.json": `[]`})

	res, err := Update(expected, actual, []string{"extra/notices.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{"extra/notices.json"}, res.Copied)
	assert.FileExists(t, filepath.Join(expected, "extra", "notices.json"))
}
