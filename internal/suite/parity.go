package suite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/feedparity/feedparity-go/internal/classify"
	"github.com/feedparity/feedparity-go/internal/compare"
	"github.com/feedparity/feedparity-go/internal/domain"
	"github.com/feedparity/feedparity-go/internal/notices"
	"github.com/feedparity/feedparity-go/internal/runner"
	"github.com/feedparity/feedparity-go/internal/summary"
)

// Per-case output layout of a parity run.
const (
	ReferenceDir  = "reference"
	CandidateDir  = "candidate"
	AltReportFile = "validation_report.json"
)

// ErrOutputLocked is returned when another run holds the output root.
var ErrOutputLocked = errors.New("suite: output root is locked by another run")

// Case is one parity input.
type Case struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// PrepareOutput takes an advisory lock next to root, then deletes and
// recreates root. It must run before any case writes into root. The
// returned function releases the lock.
func PrepareOutput(root string) (func() error, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(filepath.Dir(root), 0o755); err != nil {
		return nil, fmt.Errorf("suite: create %s: %w", filepath.Dir(root), err)
	}
	lock := flock.New(root + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("suite: lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, lock.Path())
	}

	if err := os.RemoveAll(root); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("suite: wipe %s: %w", root, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("suite: create %s: %w", root, err)
	}
	return lock.Unlock, nil
}

// RunParity runs the reference and then the candidate validator on each case,
// never overlapping, and returns one result per case in input order. A
// repeated case name is suffixed so no two cases share an output directory.
// root must have been prepared with PrepareOutput.
func (s *Suite) RunParity(ctx context.Context, root string, cases []Case) ([]domain.CaseResult, error) {
	cases = uniqueNames(cases, s.logger)
	results := make([]domain.CaseResult, 0, len(cases))
	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		fmt.Fprintf(s.out, "[%d/%d] Comparing: %s\n", i+1, len(cases), c.Name)
		res, err := s.parityCase(ctx, root, c)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Suite) parityCase(ctx context.Context, root string, c Case) (domain.CaseResult, error) {
	ctx, span := s.tracer.Start(ctx, "parity.case", trace.WithAttributes(
		attribute.String("case", c.Name),
		attribute.String("feed", c.Path),
	))
	defer span.End()
	start := time.Now()

	caseDir := filepath.Join(root, c.Name)
	refDir := filepath.Join(caseDir, ReferenceDir)
	candDir := filepath.Join(caseDir, CandidateDir)
	for _, dir := range []string{refDir, candDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return domain.CaseResult{}, fmt.Errorf("suite: create %s: %w", dir, err)
		}
	}

	res := domain.CaseResult{Name: c.Name, Path: c.Path}
	res.Reference = s.runSide(ctx, domain.Reference, s.opts.Reference, c.Path, refDir)
	res.Candidate = s.runSide(ctx, domain.Candidate, s.opts.Candidate, c.Path, candDir)

	res.Reference.Notices = readNotices(refDir, nil)
	res.Candidate.Notices = readNotices(candDir, nil)
	res.Reference.FailureReason = classify.Classify(refDir, statusOf(res.Reference))
	res.Candidate.FailureReason = classify.Classify(candDir, statusOf(res.Candidate))
	res.Decide(s.opts.MatchMode)

	fmt.Fprintf(s.out, "  Reference: %d notices (%.2fs) | Candidate: %d notices (%.2fs)\n",
		res.Reference.Total, res.Reference.Duration, res.Candidate.Total, res.Candidate.Duration)
	s.logger.Info("parity case finished",
		"case", c.Name,
		"match", res.Match,
		"match_by_code", res.MatchByCode,
		"match_by_file", res.MatchByFile,
		"reference_failure", res.Reference.FailureReason,
		"candidate_failure", res.Candidate.FailureReason,
	)
	span.SetAttributes(attribute.Bool("match", res.Match))
	s.opts.Metrics.RecordCase(ctx, "parity", res.Match, time.Since(start))
	return res, nil
}

func (s *Suite) runSide(ctx context.Context, impl domain.Implementation, r runner.Runner, input, outDir string) domain.ImplResult {
	run := r.Run(ctx, runner.Invocation{Input: input, OutputDir: outDir})
	s.opts.Metrics.RecordValidatorRun(ctx, string(impl), runStatus(run))
	if run.Err != nil {
		if run.ReturnCode != nil {
			fmt.Fprintf(s.out, "  %s failed with code %d\n", impl, *run.ReturnCode)
		} else {
			fmt.Fprintf(s.out, "  %s execution error: %v\n", impl, run.Err)
		}
		s.logger.Warn("validator run failed", "implementation", impl, "input", input, "timed_out", run.TimedOut, "err", run.Err)
	}
	return domain.ImplResult{
		Success:    run.Success,
		ReturnCode: run.ReturnCode,
		Duration:   run.Duration.Seconds(),
	}
}

// readNotices loads the report in dir, falling back to cached when no report
// is readable, and adds system error counts on top.
func readNotices(dir string, cached domain.FileNotices) domain.FileNotices {
	n, err := notices.LoadFirst(
		filepath.Join(dir, compare.ReportFile),
		filepath.Join(dir, AltReportFile),
	)
	if err != nil {
		n = cached.Clone()
	}
	if sys, err := notices.LoadFile(filepath.Join(dir, compare.SystemErrorsFile)); err == nil {
		n = domain.Merge(n, sys)
	}
	if n == nil {
		n = domain.FileNotices{}
	}
	return n
}

func statusOf(r domain.ImplResult) classify.Status {
	success := r.Success
	return classify.Status{ReturnCode: r.ReturnCode, Success: &success}
}

// Rebuild re-derives results from the artifacts under root without running
// any validator. Case names come from the prior summary when there is one,
// otherwise from the sorted case directories. Cached notices are used only
// when a side has no readable report, and a cached failure reason only when
// the side has no artifacts at all.
func (s *Suite) Rebuild(root string) ([]domain.CaseResult, error) {
	prior, err := summary.Load(filepath.Join(root, summary.SummaryFile))
	if err != nil {
		return nil, err
	}
	byName := make(map[string]domain.CaseResult, len(prior))
	var names []string
	for _, r := range prior {
		byName[r.Name] = r
		names = append(names, r.Name)
	}
	if len(prior) == 0 {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("suite: read %s: %w", root, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
	}

	results := make([]domain.CaseResult, 0, len(names))
	for _, name := range names {
		caseDir := filepath.Join(root, name)
		if info, err := os.Stat(caseDir); err != nil || !info.IsDir() {
			s.logger.Warn("case directory missing, skipping", "case", name)
			continue
		}
		old, known := byName[name]
		res := domain.CaseResult{Name: name, Path: old.Path}
		res.Reference = rebuildSide(filepath.Join(caseDir, ReferenceDir), old.Reference, known)
		res.Candidate = rebuildSide(filepath.Join(caseDir, CandidateDir), old.Candidate, known)
		res.Decide(s.opts.MatchMode)
		results = append(results, res)
	}
	s.logger.Info("summary rebuilt", "cases", len(results))
	return results, nil
}

func rebuildSide(dir string, old domain.ImplResult, known bool) domain.ImplResult {
	side := domain.ImplResult{
		Success:    old.Success,
		ReturnCode: old.ReturnCode,
		Duration:   old.Duration,
		Notices:    readNotices(dir, old.Notices),
	}

	status := classify.Status{ReturnCode: old.ReturnCode}
	if known {
		success := old.Success
		status.Success = &success
	}
	if !hasArtifacts(dir) && old.FailureReason.Valid() {
		side.FailureReason = old.FailureReason
	} else {
		side.FailureReason = classify.Classify(dir, status)
	}
	return side
}

func hasArtifacts(dir string) bool {
	for _, name := range []string{compare.ReportFile, compare.SystemErrorsFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}
