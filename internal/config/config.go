// Package config provides harness configuration loaded from environment
// variables, optionally layered over a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"

	"github.com/feedparity/feedparity-go/internal/domain"
)

// Defaults applied when neither the environment nor the config file sets a
// value.
const (
	DefaultCandidateBin       = "target/release/gtfs-guru"
	DefaultReferenceJar       = "benchmark-feeds/gtfs-validator.jar"
	DefaultJavaXmx            = "8G"
	DefaultReferenceTimeout   = 120 * time.Second
	DefaultCandidateTimeout   = 180 * time.Second
	DefaultGoldenTimeout      = 30 * time.Minute
	DefaultParityOutput       = "output_all_tests_comparison"
	DefaultCloudWatchRegion   = "us-east-1"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "auto"
	DefaultUpdateExpectedFlag = "--overwrite"
)

// DefaultCorpusRoots are scanned by the parity run when no root is given.
var DefaultCorpusRoots = []string{"mobility-data-test-feeds", "test-gtfs-feeds", "benchmark-feeds"}

// DefaultGoldenCommand builds and runs the candidate from source when no
// validator binary is configured for golden runs.
var DefaultGoldenCommand = []string{"cargo", "run", "-p", "gtfs-guru", "--"}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds all harness configuration. It is built once and not modified.
type Config struct {
	// Golden suite.
	UpdateExpected        bool
	UpdateExpectedOnFail  bool
	UpdateExpectedFlags   []string
	CompareFlags          []string
	CompareExtraJSON      []string
	CompareHTMLName       string
	ValidatorBin          string
	SkipManifestValidate  bool
	ManifestValidateFlags []string
	CaseFilter            string
	// GoldenTimeout bounds each golden and expected-generation run. The
	// default leaves room for a cold cargo build.
	GoldenTimeout time.Duration

	// Parity run.
	ReferenceJar     string
	JavaXmx          string
	JavaArgs         []string
	ReferenceTimeout time.Duration
	CandidateTimeout time.Duration
	MatchMode        domain.MatchMode
	CorpusRoots      []string
	ParityOutput     string
	MaxZipSizeMB     float64

	// Observability.
	LogLevel     string
	LogFormat    string
	OTLPEndpoint string

	// CloudWatch publication, enabled by a non-empty namespace.
	CloudWatchNamespace string
	CloudWatchRoleARN   string
	AWSRegion           string
	AWSProfile          string
}

// fileConfig is the YAML overlay named by FEEDPARITY_CONFIG.
type fileConfig struct {
	ValidatorBin     string   `yaml:"validator_bin"`
	CompareFlags     []string `yaml:"compare_flags"`
	CompareExtraJSON []string `yaml:"compare_extra_json"`
	CompareHTMLName  string   `yaml:"compare_html_name"`
	CaseFilter       string   `yaml:"case_filter"`
	GoldenTimeout    string   `yaml:"golden_timeout"`

	Reference struct {
		Jar      string   `yaml:"jar"`
		JavaXmx  string   `yaml:"java_xmx"`
		JavaArgs []string `yaml:"java_args"`
		Timeout  string   `yaml:"timeout"`
	} `yaml:"reference"`
	Candidate struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"candidate"`

	MatchMode    string   `yaml:"match_mode"`
	CorpusRoots  []string `yaml:"corpus_roots"`
	ParityOutput string   `yaml:"parity_output"`
	MaxZipSizeMB float64  `yaml:"max_zip_size_mb"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	CloudWatch struct {
		Namespace string `yaml:"namespace"`
		RoleARN   string `yaml:"role_arn"`
		Region    string `yaml:"region"`
	} `yaml:"cloudwatch"`
}

// LoadFromEnv reads configuration from environment variables. When
// FEEDPARITY_CONFIG names a YAML file its values are used as defaults and the
// environment wins.
func LoadFromEnv() (Config, error) {
	var file fileConfig
	if path := os.Getenv("FEEDPARITY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
	}

	cfg := Config{
		UpdateExpected:       os.Getenv("UPDATE_EXPECTED") != "",
		UpdateExpectedOnFail: os.Getenv("UPDATE_EXPECTED_ON_FAIL") != "",
		SkipManifestValidate: os.Getenv("SKIP_MANIFEST_VALIDATE") != "",
		CompareHTMLName:      envOr("COMPARE_HTML_NAME", file.CompareHTMLName),
		ValidatorBin:         envOr("GTFS_VALIDATOR_BIN", file.ValidatorBin),
		CaseFilter:           envOr("CASE_FILTER", file.CaseFilter),
		ReferenceJar:         envOr("REFERENCE_JAR", or(file.Reference.Jar, DefaultReferenceJar)),
		JavaXmx:              envOr("JAVA_XMX", or(file.Reference.JavaXmx, DefaultJavaXmx)),
		ParityOutput:         envOr("FEEDPARITY_OUTPUT", or(file.ParityOutput, DefaultParityOutput)),
		MaxZipSizeMB:         file.MaxZipSizeMB,
		LogLevel:             envOr("FEEDPARITY_LOG_LEVEL", or(file.Log.Level, DefaultLogLevel)),
		LogFormat:            envOr("FEEDPARITY_LOG_FORMAT", or(file.Log.Format, DefaultLogFormat)),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		CloudWatchNamespace:  envOr("FEEDPARITY_CLOUDWATCH_NAMESPACE", file.CloudWatch.Namespace),
		CloudWatchRoleARN:    envOr("FEEDPARITY_CLOUDWATCH_ROLE_ARN", file.CloudWatch.RoleARN),
		AWSRegion:            envOr("AWS_REGION", or(file.CloudWatch.Region, DefaultCloudWatchRegion)),
		AWSProfile:           os.Getenv("AWS_PROFILE"),
		CorpusRoots:          file.CorpusRoots,
	}
	if len(cfg.CorpusRoots) == 0 {
		cfg.CorpusRoots = DefaultCorpusRoots
	}

	var err error
	if cfg.UpdateExpectedFlags, err = wordsOr("UPDATE_EXPECTED_FLAGS", nil); err != nil {
		return Config{}, err
	}
	if len(cfg.UpdateExpectedFlags) == 0 {
		cfg.UpdateExpectedFlags = []string{DefaultUpdateExpectedFlag}
	}
	if cfg.CompareFlags, err = wordsOr("COMPARE_FLAGS", file.CompareFlags); err != nil {
		return Config{}, err
	}
	if cfg.CompareExtraJSON, err = wordsOr("COMPARE_EXTRA_JSON", file.CompareExtraJSON); err != nil {
		return Config{}, err
	}
	if cfg.ManifestValidateFlags, err = wordsOr("MANIFEST_VALIDATE_FLAGS", nil); err != nil {
		return Config{}, err
	}
	if cfg.JavaArgs, err = wordsOr("JAVA_ARGS", file.Reference.JavaArgs); err != nil {
		return Config{}, err
	}
	if cfg.CorpusRoots, err = wordsOr("FEEDPARITY_CORPUS_ROOTS", cfg.CorpusRoots); err != nil {
		return Config{}, err
	}

	if cfg.GoldenTimeout, err = durationOr("FEEDPARITY_GOLDEN_TIMEOUT", file.GoldenTimeout, DefaultGoldenTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ReferenceTimeout, err = durationOr("FEEDPARITY_REFERENCE_TIMEOUT", file.Reference.Timeout, DefaultReferenceTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CandidateTimeout, err = durationOr("FEEDPARITY_CANDIDATE_TIMEOUT", file.Candidate.Timeout, DefaultCandidateTimeout); err != nil {
		return Config{}, err
	}

	if cfg.MatchMode, err = domain.ParseMatchMode(envOr("FEEDPARITY_MATCH_MODE", file.MatchMode)); err != nil {
		return Config{}, fmt.Errorf("%w: FEEDPARITY_MATCH_MODE: %v", ErrInvalid, err)
	}
	if raw := os.Getenv("FEEDPARITY_MAX_ZIP_SIZE_MB"); raw != "" {
		if cfg.MaxZipSizeMB, err = strconv.ParseFloat(raw, 64); err != nil || cfg.MaxZipSizeMB < 0 {
			return Config{}, fmt.Errorf("%w: FEEDPARITY_MAX_ZIP_SIZE_MB %q", ErrInvalid, raw)
		}
	}

	switch cfg.LogFormat {
	case "auto", "json", "text":
	default:
		return Config{}, fmt.Errorf("%w: FEEDPARITY_LOG_FORMAT %q (must be auto, json or text)", ErrInvalid, cfg.LogFormat)
	}

	return cfg, nil
}

// CompareArgs returns the global compare flags: COMPARE_FLAGS followed by one
// --extra-json per COMPARE_EXTRA_JSON item and --html-name when set.
func (c Config) CompareArgs() []string {
	args := append([]string(nil), c.CompareFlags...)
	for _, name := range c.CompareExtraJSON {
		args = append(args, "--extra-json", name)
	}
	if c.CompareHTMLName != "" {
		args = append(args, "--html-name", c.CompareHTMLName)
	}
	return args
}

// CandidateCommand returns the candidate validator argv prefix. A non-empty
// override, such as a --runner command, replaces the configured binary.
func (c Config) CandidateCommand(override []string) []string {
	if len(override) > 0 {
		return append([]string(nil), override...)
	}
	if c.ValidatorBin != "" {
		return []string{c.ValidatorBin}
	}
	return []string{DefaultCandidateBin}
}

// GoldenCommand returns the validator argv prefix for golden runs.
func (c Config) GoldenCommand() []string {
	if c.ValidatorBin != "" {
		return []string{c.ValidatorBin}
	}
	return append([]string(nil), DefaultGoldenCommand...)
}

// ReferenceCommand returns the reference validator argv prefix. JavaArgs,
// when set, replaces the -Xmx option.
func (c Config) ReferenceCommand() []string {
	cmd := []string{"java"}
	if len(c.JavaArgs) > 0 {
		cmd = append(cmd, c.JavaArgs...)
	} else {
		cmd = append(cmd, "-Xmx"+c.JavaXmx)
	}
	return append(cmd, "-jar", c.ReferenceJar)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func wordsOr(key string, fallback []string) ([]string, error) {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	words, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return words, nil
}

func durationOr(key, fileValue string, fallback time.Duration) (time.Duration, error) {
	raw := envOr(key, fileValue)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalid, key, raw)
	}
	return d, nil
}
