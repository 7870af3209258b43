package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedparity/feedparity-go/internal/baseline"
	"github.com/feedparity/feedparity-go/internal/manifest"
	"github.com/feedparity/feedparity-go/internal/publish/cloudwatch"
	"github.com/feedparity/feedparity-go/internal/runner"
	"github.com/feedparity/feedparity-go/internal/suite"
)

// goldenRunner runs the candidate into --output_base, bounded by
// FEEDPARITY_GOLDEN_TIMEOUT. Validator stderr is forwarded so build and crash
// output stays visible.
func (a *app) goldenRunner(stderr io.Writer) *runner.BinaryRunner {
	r := runner.NewBinaryRunner(a.cfg.GoldenCommand(), runner.OutputBaseFlag, a.cfg.GoldenTimeout)
	r.Stderr = stderr
	return r
}

// loadManifest prints the not-found message the shell wrappers expect and
// maps it to a plain failure.
func loadManifest(out io.Writer, path string, opts manifest.ParseOptions) (*manifest.Manifest, error) {
	m, err := manifest.Load(path, opts)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(out, "Manifest not found: %s\n", path)
		return nil, errFailed
	}
	return m, err
}

func newSuiteCmd(a *app) *cobra.Command {
	return passthrough("suite MANIFEST ACTUAL_ROOT [validator args...]",
		"Run every manifest case and compare it with its expected outputs", 2,
		func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			manifestPath, actualRoot, validatorArgs := args[0], args[1], args[2:]

			if a.cfg.UpdateExpected {
				opts, err := baseline.ParseGenerateFlags(a.cfg.UpdateExpectedFlags)
				if err != nil {
					return fmt.Errorf("UPDATE_EXPECTED_FLAGS: %w", err)
				}
				if err := a.generate(cmd, manifestPath, opts, validatorArgs); err != nil {
					return err
				}
			}

			validateOpts, err := manifest.ParseValidateFlags(a.cfg.ManifestValidateFlags)
			if err != nil {
				return fmt.Errorf("MANIFEST_VALIDATE_FLAGS: %w", err)
			}
			m, err := loadManifest(out, manifestPath, validateOpts.ParseOptions())
			if err != nil {
				return err
			}

			s := suite.New(suite.Options{
				Golden:           a.goldenRunner(cmd.ErrOrStderr()),
				CompareArgs:      a.cfg.CompareArgs(),
				UpdateOnFail:     a.cfg.UpdateExpectedOnFail,
				CaseFilter:       a.cfg.CaseFilter,
				ValidateManifest: !a.cfg.SkipManifestValidate,
				ValidateOptions:  validateOpts,
				Out:              out,
				Logger:           a.logger,
				Metrics:          a.metrics,
			})
			start := time.Now()
			report, err := s.RunGolden(ctx, m, actualRoot, validatorArgs)
			if errors.Is(err, suite.ErrInvalidManifest) {
				return errFailed
			}
			if err != nil {
				return err
			}

			passed := 0
			for _, r := range report.Results {
				if r.Passed {
					passed++
				}
			}
			a.publish(ctx, cloudwatch.RunStats{
				Kind:     "golden",
				Cases:    len(report.Results),
				Passed:   passed,
				Failed:   report.Failures(),
				Duration: time.Since(start),
			})
			if !report.Passed() {
				return errFailed
			}
			return nil
		})
}

func newSingleCmd(a *app) *cobra.Command {
	return passthrough("single FEED EXPECTED ACTUAL [validator args...]",
		"Run one feed and compare it with an expected directory", 3,
		func(cmd *cobra.Command, args []string) error {
			s := suite.New(suite.Options{
				Golden:       a.goldenRunner(cmd.ErrOrStderr()),
				CompareArgs:  a.cfg.CompareArgs(),
				UpdateOnFail: a.cfg.UpdateExpectedOnFail || a.cfg.UpdateExpected,
				Out:          cmd.OutOrStdout(),
				Logger:       a.logger,
				Metrics:      a.metrics,
			})
			if res := s.RunSingle(cmd.Context(), args[0], args[1], args[2], args[3:]); !res.Passed {
				return errFailed
			}
			return nil
		})
}

func newValidateCmd(a *app) *cobra.Command {
	return passthrough("validate MANIFEST [flags...]",
		"Check a manifest for malformed rows and missing fixtures", 1,
		func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			opts, err := manifest.ParseValidateFlags(args[1:])
			if err != nil {
				return err
			}
			m, err := loadManifest(out, args[0], opts.ParseOptions())
			if err != nil {
				return err
			}
			problems := manifest.Validate(m, opts)
			for _, p := range problems {
				fmt.Fprintln(out, p)
			}
			if n := problems.Errors(); n > 0 {
				fmt.Fprintf(out, "Manifest validation failed with %d error(s).\n", n)
				return errFailed
			}
			fmt.Fprintln(out, "Manifest validation passed.")
			a.logger.Debug("manifest valid", "path", args[0], "cases", len(m.Entries), "warnings", problems.Warnings())
			return nil
		})
}

func newUpdateCmd(a *app) *cobra.Command {
	return passthrough("update [flags...] MANIFEST [validator args...]",
		"Regenerate expected outputs by running the validator into each expected directory", 1,
		func(cmd *cobra.Command, args []string) error {
			flags, rest := splitLeadingFlags(args)
			if len(rest) == 0 {
				return errors.New("usage: golden update [flags...] MANIFEST [validator args...]")
			}
			opts, err := baseline.ParseGenerateFlags(flags)
			if err != nil {
				return err
			}
			return a.generate(cmd, rest[0], opts, rest[1:])
		})
}

// generate regenerates expected outputs for the manifest at path and returns
// errFailed when any case failed.
func (a *app) generate(cmd *cobra.Command, path string, opts baseline.GenerateOptions, validatorArgs []string) error {
	out := cmd.OutOrStdout()
	m, err := loadManifest(out, path, manifest.ParseOptions{})
	if err != nil {
		return err
	}
	opts.CaseFilter = a.cfg.CaseFilter
	opts.ValidatorArgs = validatorArgs

	g := baseline.NewGenerator(a.goldenRunner(cmd.ErrOrStderr()), out, a.logger)
	res, err := g.Generate(cmd.Context(), m, opts)
	if err != nil {
		return err
	}
	if n := len(res.Failures); n > 0 {
		fmt.Fprintf(out, "Expected generation finished with %d failure(s).\n", n)
		return errFailed
	}
	fmt.Fprintln(out, "Expected generation finished successfully.")
	a.logger.Info("expected outputs generated", "generated", len(res.Generated), "skipped", len(res.Skipped))
	return nil
}
