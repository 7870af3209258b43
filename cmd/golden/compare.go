package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feedparity/feedparity-go/internal/compare"
)

func newCompareCmd(a *app) *cobra.Command {
	return passthrough("compare EXPECTED ACTUAL [compare flags...]",
		"Compare two validator output directories after normalization", 2,
		func(cmd *cobra.Command, args []string) error {
			opts, err := compare.ParseFlags(args[2:])
			if err != nil {
				return err
			}
			outcome := compare.Dirs(args[0], args[1], opts)
			fmt.Fprintln(cmd.OutOrStdout(), outcome.String())
			if !outcome.Passed() {
				a.logger.Info("outputs differ", "expected", args[0], "actual", args[1], "failures", len(outcome.Failures()))
				return errFailed
			}
			return nil
		})
}
