package baseline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedparity/feedparity-go/internal/manifest"
	"github.com/feedparity/feedparity-go/internal/runner"
	"github.com/feedparity/feedparity-go/internal/testutil"
)

func loadManifest(t *testing.T, rows ...string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse(strings.NewReader(strings.Join(rows, "\n")), manifest.ParseOptions{NoColumnWarn: true})
	require.NoError(t, err)
	return m
}

func TestParseGenerateFlags(t *testing.T) {
	t.Parallel()
	o, err := ParseGenerateFlags([]string{"--skip-existing", "--dry-run", "--warn-missing-extra-json"})
	require.NoError(t, err)
	assert.True(t, o.SkipExisting)
	assert.True(t, o.DryRun)
	assert.True(t, o.WarnMissingExtraJSON)

	_, err = ParseGenerateFlags([]string{"--overwrite", "--skip-existing"})
	assert.ErrorIs(t, err, ErrConflictingFlags)

	_, err = ParseGenerateFlags([]string{"--nope"})
	assert.Error(t, err)
}

func TestGenerate_RunsValidatorIntoExpectedDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{"feeds/a.zip": "zip"})
	script := testutil.ValidatorScript(t, testutil.MockValidator{
		Files: map[string]string{
			"report.json":        `{"notices":[]}`,
			"custom.html":        "<html></html>",
			"notice_schema.json": `{}`,
		},
		RecordArgs: true,
	})
	expected := filepath.Join(root, "expected", "a")
	m := loadManifest(t, filepath.Join(root, "feeds/a.zip")+"\t"+expected+"\tcase_a\tnotice_schema.json\tcustom.html\t--country_code us\t")

	var out bytes.Buffer
	gen := NewGenerator(runner.NewBinaryRunner([]string{script}, runner.OutputBaseFlag, 10*time.Second), &out, nil)
	res, err := gen.Generate(context.Background(), m, GenerateOptions{ValidatorArgs: []string{"--threads", "1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"case_a"}, res.Generated)
	assert.Empty(t, res.Failures)
	assert.Contains(t, out.String(), "Generating expected for case_a")

	args, err := os.ReadFile(filepath.Join(expected, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--input", filepath.Join(root, "feeds/a.zip"), "--output_base", expected,
		"--threads", "1", "--country_code", "us",
		"--html_report_name", "custom.html", "--export_notices_schema",
	}, strings.Fields(string(args)))
}

func TestGenerate_ExistingExpected(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"a.zip":             "zip",
		"exp/a/report.json": `{"old":true}`,
	})
	script := testutil.ValidatorScript(t, testutil.MockValidator{Files: map[string]string{"report.json": `{"new":true}`}})
	row := filepath.Join(root, "a.zip") + "\t" + filepath.Join(root, "exp/a") + "\t\t\t\t\t"
	v := runner.NewBinaryRunner([]string{script}, runner.OutputBaseFlag, 10*time.Second)

	res, err := NewGenerator(v, nil, nil).Generate(context.Background(), loadManifest(t, row), GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Message, "Use --overwrite or --skip-existing")

	res, err = NewGenerator(v, nil, nil).Generate(context.Background(), loadManifest(t, row), GenerateOptions{SkipExisting: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Skipped)

	res, err = NewGenerator(v, nil, nil).Generate(context.Background(), loadManifest(t, row), GenerateOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Generated)
	data, err := os.ReadFile(filepath.Join(root, "exp/a/report.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"new":true}`, string(data))
}

func TestGenerate_DryRunTouchesNothing(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{"a.zip": "zip"})
	expected := filepath.Join(root, "exp", "a")
	m := loadManifest(t, filepath.Join(root, "a.zip")+"\t"+expected+"\t\t\t\t\t")

	var out bytes.Buffer
	v := runner.NewBinaryRunner([]string{"validator-that-does-not-exist"}, runner.OutputBaseFlag, time.Second)
	res, err := NewGenerator(v, &out, nil).Generate(context.Background(), m, GenerateOptions{DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	assert.Contains(t, out.String(), "  validator-that-does-not-exist --input "+filepath.Join(root, "a.zip"))
	assert.NoDirExists(t, expected)
}

func TestGenerate_FailuresAndFilter(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{"a.zip": "zip"})
	failing := testutil.ValidatorScript(t, testutil.MockValidator{ExitCode: 2})
	partial := testutil.ValidatorScript(t, testutil.MockValidator{Files: map[string]string{"report.json": "{}"}})
	feed := filepath.Join(root, "a.zip")

	m := loadManifest(t,
		filepath.Join(root, "missing.zip")+"\t"+filepath.Join(root, "exp/missing")+"\tbus_missing\t\t\t\t",
		feed+"\t"+filepath.Join(root, "exp/fails")+"\tbus_fails\t\t\t\t",
		feed+"\t"+filepath.Join(root, "exp/rail")+"\trail_skipped\t\t\t\t",
		feed+"\t\tbroken\t\t\t\t",
	)
	v := runner.NewBinaryRunner([]string{failing}, runner.OutputBaseFlag, 10*time.Second)
	res, err := NewGenerator(v, nil, nil).Generate(context.Background(), m, GenerateOptions{CaseFilter: "bus_*"})
	require.NoError(t, err)
	require.Len(t, res.Failures, 3)
	assert.Equal(t, "missing expected_dir", res.Failures[0].Message)
	assert.Contains(t, res.Failures[1].Message, "feed not found")
	assert.Equal(t, "validator failed for bus_fails", res.Failures[2].Message)

	m = loadManifest(t, feed+"\t"+filepath.Join(root, "exp/partial")+"\tpartial\tfeed_info.json\t\t\t")
	v = runner.NewBinaryRunner([]string{partial}, runner.OutputBaseFlag, 10*time.Second)
	res, err = NewGenerator(v, nil, nil).Generate(context.Background(), m, GenerateOptions{WarnMissingExtraJSON: true})
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, "extra JSON missing")

	res, err = NewGenerator(v, nil, nil).Generate(context.Background(), m, GenerateOptions{Overwrite: true})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)

	res, err = NewGenerator(v, nil, nil).Generate(context.Background(), m, GenerateOptions{Overwrite: true, AllowMissingExtraJSON: true})
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	assert.Empty(t, res.Warnings)
}
