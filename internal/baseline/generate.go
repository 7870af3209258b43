package baseline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/pflag"

	"github.com/feedparity/feedparity-go/internal/manifest"
	"github.com/feedparity/feedparity-go/internal/runner"
)

// Validator flags added by the generator for rows that declare the
// corresponding artifacts.
const (
	HTMLReportNameFlag      = "--html_report_name"
	ExportNoticesSchemaFlag = "--export_notices_schema"
	NoticeSchemaFile        = "notice_schema.json"
)

// ErrConflictingFlags is returned when --overwrite and --skip-existing are
// both set.
var ErrConflictingFlags = errors.New("baseline: --overwrite and --skip-existing are mutually exclusive")

// GenerateOptions controls expected-output generation.
type GenerateOptions struct {
	Overwrite             bool
	SkipExisting          bool
	DryRun                bool
	AllowMissingExtraJSON bool
	WarnMissingExtraJSON  bool

	// CaseFilter is a glob over case names; empty selects every case.
	CaseFilter string
	// ValidatorArgs are passed to every run ahead of the row's own arguments.
	ValidatorArgs []string
}

// Validate checks for conflicting options.
func (o GenerateOptions) Validate() error {
	if o.Overwrite && o.SkipExisting {
		return ErrConflictingFlags
	}
	return nil
}

// RegisterGenerateFlags adds the generator flags to fs, bound to o.
func RegisterGenerateFlags(fs *pflag.FlagSet, o *GenerateOptions) {
	fs.BoolVar(&o.Overwrite, "overwrite", false, "overwrite existing expected outputs")
	fs.BoolVar(&o.SkipExisting, "skip-existing", false, "skip cases that already have expected outputs")
	fs.BoolVar(&o.DryRun, "dry-run", false, "print actions without running the validator")
	fs.BoolVar(&o.AllowMissingExtraJSON, "allow-missing-extra-json", false, "allow missing extra JSON outputs")
	fs.BoolVar(&o.WarnMissingExtraJSON, "warn-missing-extra-json", false, "warn instead of failing if extra JSON outputs are missing")
}

// ParseGenerateFlags parses generator flags such as UPDATE_EXPECTED_FLAGS.
func ParseGenerateFlags(args []string) (GenerateOptions, error) {
	var o GenerateOptions
	set := pflag.NewFlagSet("update", pflag.ContinueOnError)
	set.SetOutput(io.Discard)
	RegisterGenerateFlags(set, &o)
	if err := set.Parse(args); err != nil {
		return o, fmt.Errorf("baseline: %w", err)
	}
	if set.NArg() > 0 {
		return o, fmt.Errorf("baseline: unexpected argument %q", set.Arg(0))
	}
	return o, o.Validate()
}

// Validator runs a validator and can render the command it would run.
type Validator interface {
	Run(ctx context.Context, inv runner.Invocation) runner.Result
	CommandLine(inv runner.Invocation) []string
}

// GenerateResult lists what a generation pass did.
type GenerateResult struct {
	Generated []string
	Skipped   []string
	Failures  manifest.Problems
	Warnings  manifest.Problems
}

// Generator regenerates expected outputs by running the validator directly
// into each case's expected directory.
type Generator struct {
	validator Validator
	out       io.Writer
	logger    *slog.Logger
}

// NewGenerator creates a Generator. Progress lines are written to out.
func NewGenerator(v Validator, out io.Writer, logger *slog.Logger) *Generator {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{validator: v, out: out, logger: logger}
}

// Generate walks the manifest entries in order. Rows that failed to parse
// count as failures. It stops early only when ctx is cancelled.
func (g *Generator) Generate(ctx context.Context, m *manifest.Manifest, opts GenerateOptions) (GenerateResult, error) {
	var res GenerateResult
	if err := opts.Validate(); err != nil {
		return res, err
	}
	for _, p := range m.Problems {
		if p.Severity == manifest.SeverityError {
			res.Failures = append(res.Failures, p)
			fmt.Fprintln(g.out, p)
		}
	}

	ignored := manifest.DefaultIgnoredNames
	for _, e := range m.Entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !e.Matches(opts.CaseFilter) {
			continue
		}
		fail := func(format string, args ...any) {
			p := manifest.Problem{Line: e.Line, Severity: manifest.SeverityError, Message: fmt.Sprintf(format, args...)}
			res.Failures = append(res.Failures, p)
			fmt.Fprintln(g.out, p)
			g.logger.Warn("expected generation failed", "case", e.CaseName, "line", e.Line, "reason", p.Message)
		}

		if _, err := os.Stat(e.FeedPath); err != nil {
			fail("feed not found: %s", e.FeedPath)
			continue
		}

		if has, _ := manifest.HasOutputs(e.ExpectedDir, ignored); has {
			if opts.SkipExisting {
				fmt.Fprintf(g.out, "Skipping %s (expected exists)\n", e.CaseName)
				res.Skipped = append(res.Skipped, e.CaseName)
				continue
			}
			if !opts.Overwrite {
				fail("expected already exists for %s. Use --overwrite or --skip-existing.", e.CaseName)
				continue
			}
		}

		inv := runner.Invocation{Input: e.FeedPath, OutputDir: e.ExpectedDir, Args: generationArgs(e, opts.ValidatorArgs)}
		fmt.Fprintf(g.out, "Generating expected for %s\n", e.CaseName)
		if opts.DryRun {
			fmt.Fprintf(g.out, "  %s\n", strings.Join(g.validator.CommandLine(inv), " "))
			continue
		}

		if err := os.MkdirAll(e.ExpectedDir, 0o755); err != nil {
			fail("create %s: %v", e.ExpectedDir, err)
			continue
		}
		if result := g.validator.Run(ctx, inv); !result.Success {
			fail("validator failed for %s", e.CaseName)
			continue
		}
		res.Generated = append(res.Generated, e.CaseName)

		if e.HTMLName != "" {
			if p := e.Resolve(e.HTMLName); !fileExists(p) {
				fail("HTML missing: %s", p)
			}
		}
		if opts.AllowMissingExtraJSON {
			continue
		}
		for _, name := range e.ExtraJSON {
			p := e.Resolve(name)
			if fileExists(p) {
				continue
			}
			if opts.WarnMissingExtraJSON {
				w := manifest.Problem{Line: e.Line, Severity: manifest.SeverityWarning, Message: "extra JSON missing: " + p}
				res.Warnings = append(res.Warnings, w)
				fmt.Fprintln(g.out, w)
				continue
			}
			fail("extra JSON missing: %s", p)
		}
	}
	return res, nil
}

func generationArgs(e manifest.Entry, global []string) []string {
	args := append(append([]string(nil), global...), e.ValidatorArgs...)
	if e.HTMLName != "" {
		args = append(args, HTMLReportNameFlag, e.HTMLName)
	}
	if slices.Contains(e.ExtraJSON, NoticeSchemaFile) {
		args = append(args, ExportNoticesSchemaFlag)
	}
	return args
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
