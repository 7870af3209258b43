// Package suite orchestrates golden and parity runs: it invokes validators,
// compares their output and records one result per case.
package suite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/feedparity/feedparity-go/internal/baseline"
	"github.com/feedparity/feedparity-go/internal/compare"
	"github.com/feedparity/feedparity-go/internal/domain"
	"github.com/feedparity/feedparity-go/internal/manifest"
	"github.com/feedparity/feedparity-go/internal/observability"
	"github.com/feedparity/feedparity-go/internal/runner"
)

// ErrInvalidManifest is returned when manifest validation reports errors.
var ErrInvalidManifest = errors.New("suite: manifest validation failed")

// Stage is how far a golden case got.
type Stage string

const (
	StageFixture   Stage = "fixture"
	StageValidator Stage = "validator"
	StageCompare   Stage = "compare"
)

// Options configures a Suite.
type Options struct {
	// Golden runs the candidate validator with --output_base for golden
	// cases. Reference and Candidate are the two sides of a parity run.
	Golden    runner.Runner
	Reference runner.Runner
	Candidate runner.Runner

	MatchMode domain.MatchMode
	// CompareArgs are the global compare flags applied to every golden case.
	CompareArgs []string
	// UpdateOnFail copies actual outputs over the baseline when a golden
	// comparison fails.
	UpdateOnFail bool
	CaseFilter   string

	// ValidateManifest checks fixtures before a golden run.
	ValidateManifest bool
	ValidateOptions  manifest.ValidateOptions

	// Out receives progress lines and comparison diffs.
	Out     io.Writer
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Suite runs cases sequentially. It is not safe for concurrent use.
type Suite struct {
	opts   Options
	out    io.Writer
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a Suite.
func New(opts Options) *Suite {
	s := &Suite{opts: opts, out: opts.Out, logger: opts.Logger}
	if s.out == nil {
		s.out = io.Discard
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if !s.opts.MatchMode.Valid() {
		s.opts.MatchMode = domain.ModeCode
	}
	s.tracer = otel.Tracer(observability.TracerName)
	return s
}

// GoldenCase is one golden comparison: run the candidate on FeedPath into
// ActualDir, then compare ActualDir against ExpectedDir.
type GoldenCase struct {
	Name          string
	Line          int
	FeedPath      string
	ExpectedDir   string
	ActualDir     string
	ValidatorArgs []string
	// CompareArgs are the complete compare flags for this case.
	CompareArgs []string
}

// GoldenResult is the outcome of one golden case.
type GoldenResult struct {
	Case     string           `json:"case"`
	Line     int              `json:"line,omitempty"`
	Stage    Stage            `json:"stage"`
	Passed   bool             `json:"passed"`
	Updated  bool             `json:"baseline_updated,omitempty"`
	Outcome  *compare.Outcome `json:"outcome,omitempty"`
	Baseline *baseline.Result `json:"baseline,omitempty"`
	Err      string           `json:"error,omitempty"`
}

// GoldenReport aggregates a golden run.
type GoldenReport struct {
	Results  []GoldenResult    `json:"results"`
	Problems manifest.Problems `json:"problems,omitempty"`
}

// Failures counts failed cases and manifest rows that could not be run.
func (r GoldenReport) Failures() int {
	n := r.Problems.Errors()
	for _, res := range r.Results {
		if !res.Passed {
			n++
		}
	}
	return n
}

// Passed reports whether every case passed.
func (r GoldenReport) Passed() bool { return r.Failures() == 0 }

// RunGolden runs every manifest entry that matches the case filter into
// <actualRoot>/<case>. extraArgs are passed to every validator run ahead of
// the entry's own arguments. Each failure is reported as soon as it is found.
func (s *Suite) RunGolden(ctx context.Context, m *manifest.Manifest, actualRoot string, extraArgs []string) (GoldenReport, error) {
	var report GoldenReport
	if s.opts.ValidateManifest {
		problems := manifest.Validate(m, s.opts.ValidateOptions)
		for _, p := range problems {
			fmt.Fprintln(s.out, p)
		}
		if problems.Errors() > 0 {
			fmt.Fprintf(s.out, "Manifest validation failed with %d error(s).\n", problems.Errors())
			return report, fmt.Errorf("%w: %d error(s)", ErrInvalidManifest, problems.Errors())
		}
	} else {
		for _, p := range m.Problems {
			if p.Severity == manifest.SeverityError {
				report.Problems = append(report.Problems, p)
				fmt.Fprintln(s.out, p)
			}
		}
	}

	if err := os.MkdirAll(actualRoot, 0o755); err != nil {
		return report, fmt.Errorf("suite: create %s: %w", actualRoot, err)
	}

	for _, e := range m.Filter(s.opts.CaseFilter) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		c := GoldenCase{
			Name:          e.CaseName,
			Line:          e.Line,
			FeedPath:      e.FeedPath,
			ExpectedDir:   e.ExpectedDir,
			ActualDir:     filepath.Join(actualRoot, e.CaseName),
			ValidatorArgs: append(append([]string(nil), extraArgs...), e.ValidatorArgs...),
			CompareArgs:   s.entryCompareArgs(e),
		}
		report.Results = append(report.Results, s.runGoldenCase(ctx, c))
	}

	if n := report.Failures(); n > 0 {
		fmt.Fprintf(s.out, "Golden suite finished with %d failure(s).\n", n)
	} else {
		fmt.Fprintln(s.out, "Golden suite passed.")
	}
	s.logger.Info("golden suite finished", "cases", len(report.Results), "failures", report.Failures())
	return report, nil
}

// RunSingle runs one golden case with the global compare flags. The expected
// directory must already exist.
func (s *Suite) RunSingle(ctx context.Context, feedPath, expectedDir, actualDir string, validatorArgs []string) GoldenResult {
	c := GoldenCase{
		Name:          filepath.Base(filepath.Clean(expectedDir)),
		FeedPath:      feedPath,
		ExpectedDir:   expectedDir,
		ActualDir:     actualDir,
		ValidatorArgs: validatorArgs,
		CompareArgs:   s.opts.CompareArgs,
	}
	if _, err := os.Stat(expectedDir); err != nil {
		res := GoldenResult{Case: c.Name, Stage: StageFixture, Err: fmt.Sprintf("expected dir not found: %s", expectedDir)}
		s.reportFailure(res)
		return res
	}
	res := s.runGoldenCase(ctx, c)
	if res.Passed {
		fmt.Fprintln(s.out, "Outputs match.")
	}
	return res
}

// entryCompareArgs layers the entry's declarations over the global flags.
func (s *Suite) entryCompareArgs(e manifest.Entry) []string {
	args := append([]string(nil), s.opts.CompareArgs...)
	for _, name := range e.ExtraJSON {
		args = append(args, "--extra-json", name)
	}
	if e.HTMLName != "" {
		args = append(args, "--html-name", e.HTMLName)
	}
	return append(args, e.CompareFlags...)
}

func (s *Suite) runGoldenCase(ctx context.Context, c GoldenCase) GoldenResult {
	ctx, span := s.tracer.Start(ctx, "golden.case", trace.WithAttributes(
		attribute.String("case", c.Name),
		attribute.String("feed", c.FeedPath),
	))
	defer span.End()
	start := time.Now()

	res := s.goldenCase(ctx, c)

	span.SetAttributes(attribute.String("stage", string(res.Stage)), attribute.Bool("passed", res.Passed))
	if !res.Passed {
		span.SetStatus(codes.Error, "golden case failed")
	}
	s.opts.Metrics.RecordCase(ctx, "golden", res.Passed, time.Since(start))
	return res
}

func (s *Suite) goldenCase(ctx context.Context, c GoldenCase) GoldenResult {
	res := GoldenResult{Case: c.Name, Line: c.Line, Stage: StageFixture}

	if err := os.MkdirAll(c.ActualDir, 0o755); err != nil {
		res.Err = fmt.Sprintf("create %s: %v", c.ActualDir, err)
		s.reportFailure(res)
		return res
	}
	if _, err := os.Stat(c.FeedPath); err != nil {
		res.Err = fmt.Sprintf("feed not found: %s", c.FeedPath)
		s.reportFailure(res)
		return res
	}

	res.Stage = StageValidator
	fmt.Fprintf(s.out, "Running %s\n", c.Name)
	run := s.opts.Golden.Run(ctx, runner.Invocation{Input: c.FeedPath, OutputDir: c.ActualDir, Args: c.ValidatorArgs})
	s.opts.Metrics.RecordValidatorRun(ctx, string(domain.Candidate), runStatus(run))
	if !run.Success {
		res.Err = fmt.Sprintf("validator failed for %s", c.Name)
		s.logger.Warn("validator failed", "case", c.Name, "err", run.Err)
		s.reportFailure(res)
		return res
	}

	res.Stage = StageCompare
	opts, err := compare.ParseFlags(c.CompareArgs)
	if err != nil {
		res.Err = err.Error()
		s.reportFailure(res)
		return res
	}
	outcome := compare.Dirs(c.ExpectedDir, c.ActualDir, opts)
	res.Outcome = &outcome
	if outcome.Passed() {
		res.Passed = true
		s.logger.Debug("golden case passed", "case", c.Name)
		return res
	}

	fmt.Fprintln(s.out, outcome.String())
	res.Err = fmt.Sprintf("compare failed for %s", c.Name)
	s.reportFailure(res)

	if s.opts.UpdateOnFail {
		updated, err := baseline.Update(c.ExpectedDir, c.ActualDir, baseline.Names(opts.ExtraJSON, opts.HTMLName))
		res.Baseline = &updated
		if err != nil {
			res.Err = fmt.Sprintf("%s; %v", res.Err, err)
			s.logger.Error("baseline update failed", "case", c.Name, "err", err)
			return res
		}
		for _, name := range updated.Refused {
			s.logger.Warn("baseline update refused unsafe name", "case", c.Name, "name", name)
		}
		res.Updated = true
		fmt.Fprintf(s.out, "Expected outputs updated for %s.\n", c.Name)
	}
	return res
}

func (s *Suite) reportFailure(res GoldenResult) {
	if res.Line > 0 {
		fmt.Fprintf(s.out, "Line %d: %s\n", res.Line, res.Err)
	} else {
		fmt.Fprintln(s.out, res.Err)
	}
	s.logger.Info("golden case failed", "case", res.Case, "stage", res.Stage, "reason", res.Err)
}

func runStatus(r runner.Result) string {
	switch {
	case r.TimedOut:
		return "timeout"
	case r.Success:
		return "success"
	default:
		return "failed"
	}
}
