package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/feedparity/feedparity-go/internal/domain"
	"github.com/feedparity/feedparity-go/internal/manifest"
	"github.com/feedparity/feedparity-go/internal/publish/cloudwatch"
	"github.com/feedparity/feedparity-go/internal/runner"
	"github.com/feedparity/feedparity-go/internal/suite"
	"github.com/feedparity/feedparity-go/internal/summary"
)

type parityFlags struct {
	summaryOnly     bool
	matchBy         string
	runner          string
	referenceRunner string
	maxSizeMB       float64
	javaXmx         string
	javaArgs        string
	output          string
	manifest        string
}

func newParityCmd(a *app) *cobra.Command {
	var f parityFlags
	cmd := &cobra.Command{
		Use:   "parity [flags] [CORPUS_ROOT...]",
		Short: "Run the reference and candidate validators on every corpus feed and compare notice counts",
		RunE: func(cmd *cobra.Command, roots []string) error {
			return a.runParity(cmd, f, roots)
		},
	}
	fs := cmd.Flags()
	fs.BoolVar(&f.summaryOnly, "summary-only", false, "rebuild the summary from existing outputs without running validators")
	fs.StringVar(&f.matchBy, "match-by", "", "match criterion: code or file (default from FEEDPARITY_MATCH_MODE, else code)")
	fs.StringVar(&f.runner, "runner", "", "candidate command line, replacing the configured binary")
	fs.StringVar(&f.referenceRunner, "reference-runner", "", "reference command line, replacing the java -jar invocation")
	fs.Float64Var(&f.maxSizeMB, "max-size-mb", 0, "skip zip feeds larger than this many MB (0 = no limit)")
	fs.StringVar(&f.javaXmx, "java-xmx", "", "reference JVM heap size, e.g. 8G")
	fs.StringVar(&f.javaArgs, "java-args", "", "reference JVM options, replacing -Xmx")
	fs.StringVarP(&f.output, "output", "o", "", "output root (default from FEEDPARITY_OUTPUT)")
	fs.StringVar(&f.manifest, "manifest", "", "take cases from a golden manifest instead of scanning corpus roots")
	return cmd
}

func (a *app) runParity(cmd *cobra.Command, f parityFlags, roots []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	cfg := a.cfg

	mode := cfg.MatchMode
	if f.matchBy != "" {
		var err error
		if mode, err = domain.ParseMatchMode(f.matchBy); err != nil {
			return err
		}
	}
	output := cfg.ParityOutput
	if f.output != "" {
		output = f.output
	}
	if f.javaXmx != "" {
		cfg.JavaXmx = f.javaXmx
	}
	if f.javaArgs != "" {
		words, err := manifest.SplitWords(f.javaArgs)
		if err != nil {
			return fmt.Errorf("--java-args: %w", err)
		}
		cfg.JavaArgs = words
	}
	referenceCmd := cfg.ReferenceCommand()
	if f.referenceRunner != "" {
		words, err := manifest.SplitWords(f.referenceRunner)
		if err != nil {
			return fmt.Errorf("--reference-runner: %w", err)
		}
		referenceCmd = words
	}
	var candidateOverride []string
	if f.runner != "" {
		words, err := manifest.SplitWords(f.runner)
		if err != nil {
			return fmt.Errorf("--runner: %w", err)
		}
		candidateOverride = words
	}

	s := suite.New(suite.Options{
		Reference: runner.NewBinaryRunner(referenceCmd, runner.OutputBaseFlag, cfg.ReferenceTimeout),
		Candidate: runner.NewBinaryRunner(cfg.CandidateCommand(candidateOverride), runner.OutputFlag, cfg.CandidateTimeout),
		MatchMode: mode,
		Out:       out,
		Logger:    a.logger,
		Metrics:   a.metrics,
	})

	start := time.Now()
	var results []domain.CaseResult
	if f.summaryOnly {
		if info, err := os.Stat(output); err != nil || !info.IsDir() {
			fmt.Fprintf(out, "Output directory missing: %s\n", output)
			return errFailed
		}
		var err error
		if results, err = s.Rebuild(output); err != nil {
			return err
		}
	} else {
		cases, err := a.parityCases(cmd, f, roots)
		if err != nil {
			return err
		}
		unlock, err := suite.PrepareOutput(output)
		if err != nil {
			return err
		}
		defer func() { _ = unlock() }()

		results, err = s.RunParity(ctx, output, cases)
		if err != nil {
			return err
		}
	}

	runID := uuid.NewString()
	if err := summary.Write(output, results, mode, runID); err != nil {
		return err
	}
	fmt.Fprintln(out)
	summary.Table(out, results)
	fmt.Fprintf(out, "Parity run complete. Results saved to %s\n", output)

	matched, mismatched := summary.Counts(results)
	a.logger.Info("parity run finished", "run_id", runID, "cases", len(results), "matched", matched, "mismatched", mismatched)
	a.publish(ctx, cloudwatch.ParityStats(results, mode, time.Since(start)))
	if mismatched > 0 {
		return errFailed
	}
	return nil
}

// parityCases lists the run's inputs from --manifest or by scanning the
// corpus roots, printing what was found.
func (a *app) parityCases(cmd *cobra.Command, f parityFlags, roots []string) ([]suite.Case, error) {
	out := cmd.OutOrStdout()
	if f.manifest != "" {
		m, err := loadManifest(out, f.manifest, manifest.ParseOptions{NoColumnWarn: true})
		if err != nil {
			return nil, err
		}
		cases := suite.CasesFromManifest(m.Filter(a.cfg.CaseFilter))
		fmt.Fprintf(out, "Found %d potential test cases.\n", len(cases))
		return cases, nil
	}

	if len(roots) == 0 {
		roots = a.cfg.CorpusRoots
	}
	maxMB := a.cfg.MaxZipSizeMB
	if cmd.Flags().Changed("max-size-mb") {
		maxMB = f.maxSizeMB
	}
	d, err := suite.Discover(roots, suite.DiscoverOptions{
		MaxZipBytes: int64(maxMB * 1024 * 1024),
		Logger:      a.logger,
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Found %d potential test cases.\n", len(d.Cases))
	if len(d.SkippedBySize) > 0 {
		fmt.Fprintf(out, "Skipped %d files larger than %g MB.\n", len(d.SkippedBySize), maxMB)
		for _, p := range d.SkippedBySize {
			fmt.Fprintf(out, "  - %s\n", p)
		}
	}
	return d.Cases, nil
}
