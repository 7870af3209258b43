package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedparity/feedparity-go/internal/domain"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.UpdateExpected)
	assert.Equal(t, []string{"--overwrite"}, cfg.UpdateExpectedFlags)
	assert.Equal(t, domain.ModeCode, cfg.MatchMode)
	assert.Equal(t, 120*time.Second, cfg.ReferenceTimeout)
	assert.Equal(t, 180*time.Second, cfg.CandidateTimeout)
	assert.Equal(t, 30*time.Minute, cfg.GoldenTimeout)
	assert.Equal(t, DefaultCorpusRoots, cfg.CorpusRoots)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, "auto", cfg.LogFormat)
	assert.Empty(t, cfg.CompareArgs())
	assert.Equal(t, []string{DefaultCandidateBin}, cfg.CandidateCommand(nil))
	assert.Equal(t, []string{"cargo", "run", "-p", "gtfs-guru", "--"}, cfg.GoldenCommand())
	assert.Equal(t, []string{"java", "-Xmx8G", "-jar", DefaultReferenceJar}, cfg.ReferenceCommand())
}

func TestLoadFromEnv_GoldenSurface(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPDATE_EXPECTED", "1")
	t.Setenv("UPDATE_EXPECTED_ON_FAIL", "1")
	t.Setenv("UPDATE_EXPECTED_FLAGS", "--skip-existing --dry-run")
	t.Setenv("COMPARE_FLAGS", "--ignore-notice-order --ignore-summary-field 'gtfs Input'")
	t.Setenv("COMPARE_EXTRA_JSON", "feed_info.json notice_schema.json")
	t.Setenv("COMPARE_HTML_NAME", "custom.html")
	t.Setenv("GTFS_VALIDATOR_BIN", "/usr/local/bin/gtfs-guru")
	t.Setenv("SKIP_MANIFEST_VALIDATE", "1")
	t.Setenv("MANIFEST_VALIDATE_FLAGS", "--skip-existence")
	t.Setenv("CASE_FILTER", "bus_*")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.UpdateExpected)
	assert.True(t, cfg.UpdateExpectedOnFail)
	assert.True(t, cfg.SkipManifestValidate)
	assert.Equal(t, []string{"--skip-existing", "--dry-run"}, cfg.UpdateExpectedFlags)
	assert.Equal(t, []string{"--skip-existence"}, cfg.ManifestValidateFlags)
	assert.Equal(t, "bus_*", cfg.CaseFilter)
	assert.Equal(t, []string{
		"--ignore-notice-order", "--ignore-summary-field", "gtfs Input",
		"--extra-json", "feed_info.json", "--extra-json", "notice_schema.json",
		"--html-name", "custom.html",
	}, cfg.CompareArgs())
	assert.Equal(t, []string{"/usr/local/bin/gtfs-guru"}, cfg.CandidateCommand(nil))
	assert.Equal(t, []string{"node", "run.js"}, cfg.CandidateCommand([]string{"node", "run.js"}))
}

func TestLoadFromEnv_JavaArgsReplaceXmx(t *testing.T) {
	clearEnv(t)
	t.Setenv("JAVA_XMX", "2G")
	t.Setenv("REFERENCE_JAR", "v.jar")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"java", "-Xmx2G", "-jar", "v.jar"}, cfg.ReferenceCommand())

	t.Setenv("JAVA_ARGS", "-Xms1G -XX:+UseG1GC")
	cfg, err = LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"java", "-Xms1G", "-XX:+UseG1GC", "-jar", "v.jar"}, cfg.ReferenceCommand())
}

func TestLoadFromEnv_CorpusRoots(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEEDPARITY_CORPUS_ROOTS", "feeds 'more feeds'")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"feeds", "more feeds"}, cfg.CorpusRoots)
}

func TestLoadFromEnv_YAMLOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "feedparity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
validator_bin: bin/from-file
case_filter: rail_*
match_mode: file
corpus_roots: [feeds]
max_zip_size_mb: 50
reference:
  jar: ref.jar
  timeout: 30s
candidate:
  timeout: 1m
golden_timeout: 45m
log:
  level: debug
  format: json
cloudwatch:
  namespace: FeedParity
`), 0o644))
	t.Setenv("FEEDPARITY_CONFIG", path)
	t.Setenv("CASE_FILTER", "bus_*")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"bin/from-file"}, cfg.CandidateCommand(nil))
	assert.Equal(t, "bus_*", cfg.CaseFilter, "environment wins over file")
	assert.Equal(t, domain.ModeFile, cfg.MatchMode)
	assert.Equal(t, []string{"feeds"}, cfg.CorpusRoots)
	assert.InDelta(t, 50.0, cfg.MaxZipSizeMB, 0.001)
	assert.Equal(t, "ref.jar", cfg.ReferenceJar)
	assert.Equal(t, 30*time.Second, cfg.ReferenceTimeout)
	assert.Equal(t, time.Minute, cfg.CandidateTimeout)
	assert.Equal(t, 45*time.Minute, cfg.GoldenTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "FeedParity", cfg.CloudWatchNamespace)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"match mode", "FEEDPARITY_MATCH_MODE", "fuzzy", "FEEDPARITY_MATCH_MODE"},
		{"timeout", "FEEDPARITY_REFERENCE_TIMEOUT", "soon", "FEEDPARITY_REFERENCE_TIMEOUT"},
		{"golden timeout", "FEEDPARITY_GOLDEN_TIMEOUT", "later", "FEEDPARITY_GOLDEN_TIMEOUT"},
		{"zip size", "FEEDPARITY_MAX_ZIP_SIZE_MB", "-1", "FEEDPARITY_MAX_ZIP_SIZE_MB"},
		{"log format", "FEEDPARITY_LOG_FORMAT", "xml", "FEEDPARITY_LOG_FORMAT"},
		{"unbalanced quote", "COMPARE_FLAGS", "--html-name 'x", "COMPARE_FLAGS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromEnv_GoldenTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEEDPARITY_GOLDEN_TIMEOUT", "90s")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.GoldenTimeout)
}

func TestLoadFromEnv_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEEDPARITY_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"UPDATE_EXPECTED", "UPDATE_EXPECTED_ON_FAIL", "UPDATE_EXPECTED_FLAGS",
		"COMPARE_FLAGS", "COMPARE_EXTRA_JSON", "COMPARE_HTML_NAME",
		"GTFS_VALIDATOR_BIN", "SKIP_MANIFEST_VALIDATE", "MANIFEST_VALIDATE_FLAGS", "CASE_FILTER",
		"REFERENCE_JAR", "JAVA_XMX", "JAVA_ARGS",
		"FEEDPARITY_CONFIG", "FEEDPARITY_OUTPUT", "FEEDPARITY_MATCH_MODE", "FEEDPARITY_MAX_ZIP_SIZE_MB",
		"FEEDPARITY_REFERENCE_TIMEOUT", "FEEDPARITY_CANDIDATE_TIMEOUT", "FEEDPARITY_GOLDEN_TIMEOUT", "FEEDPARITY_CORPUS_ROOTS",
		"FEEDPARITY_LOG_LEVEL", "FEEDPARITY_LOG_FORMAT", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"FEEDPARITY_CLOUDWATCH_NAMESPACE", "FEEDPARITY_CLOUDWATCH_ROLE_ARN", "AWS_REGION", "AWS_PROFILE",
	} {
		// t.Setenv saves the current value and restores it on cleanup;
		// unsetting afterwards leaves the key absent during the test.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}
