// Command golden runs validator golden suites and reference/candidate parity
// runs.
//
// Usage:
//
//	golden suite    MANIFEST ACTUAL_ROOT [validator args...]
//	golden single   FEED EXPECTED ACTUAL [validator args...]
//	golden validate MANIFEST [--skip-existence] [--warn-empty-expected]
//	golden update   [--overwrite|--skip-existing] [--dry-run] MANIFEST [validator args...]
//	golden compare  EXPECTED ACTUAL [compare flags...]
//	golden parity   [--summary-only] [--match-by code|file] [--runner CMD] [ROOT...]
//
// Exit code 0 = success. Exit code 1 = failures or mismatches. Exit code 2 = error.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if shutdownErr := a.close(); shutdownErr != nil {
		fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", shutdownErr)
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFailed):
		return 1
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
}
