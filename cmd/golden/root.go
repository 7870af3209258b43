package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedparity/feedparity-go/internal/awsauth"
	"github.com/feedparity/feedparity-go/internal/config"
	"github.com/feedparity/feedparity-go/internal/observability"
	"github.com/feedparity/feedparity-go/internal/publish/cloudwatch"
)

// errFailed reports failed cases or mismatches. The details have already
// been printed, so it maps to exit code 1 without another message.
var errFailed = errors.New("run failed")

// app is the state shared by every subcommand.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	shutdown func(context.Context) error
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	shutdown, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    "feedparity",
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
	})
	if err != nil {
		a.logger.Warn("tracing disabled", "err", err)
	} else {
		a.shutdown = shutdown
	}

	a.metrics, err = observability.NewMetrics(nil)
	return err
}

func (a *app) close() error {
	if a.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.shutdown(ctx)
}

// publish sends run counts to CloudWatch when a namespace is configured.
// Publication problems are logged and never fail the run.
func (a *app) publish(ctx context.Context, stats cloudwatch.RunStats) {
	if a.cfg.CloudWatchNamespace == "" {
		return
	}
	awsCfg, err := awsauth.NewConfig(ctx, awsauth.Options{
		Region:  a.cfg.AWSRegion,
		Profile: a.cfg.AWSProfile,
		RoleARN: a.cfg.CloudWatchRoleARN,
	})
	if err != nil {
		a.logger.Warn("cloudwatch publish skipped", "err", err)
		return
	}
	if err := cloudwatch.New(awsCfg, a.cfg.CloudWatchNamespace).Publish(ctx, stats); err != nil {
		a.logger.Warn("cloudwatch publish failed", "err", err)
		return
	}
	a.logger.Info("run metrics published", "namespace", a.cfg.CloudWatchNamespace, "kind", stats.Kind)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "golden",
		Short:             "Differential testing harness for feed validators",
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}
	root.AddCommand(
		newSuiteCmd(a),
		newSingleCmd(a),
		newValidateCmd(a),
		newUpdateCmd(a),
		newCompareCmd(a),
		newParityCmd(a),
	)
	return root
}

// passthrough returns a command whose arguments are handed to run verbatim,
// so that validator and compare flags need no "--" separator.
func passthrough(use, short string, minArgs int, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:                use,
		Short:              short,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
				return cmd.Help()
			}
			if len(args) < minArgs {
				return errors.New("usage: golden " + use)
			}
			return run(cmd, args)
		},
	}
}

// splitLeadingFlags splits args at the first argument that does not start
// with "-".
func splitLeadingFlags(args []string) (flags, rest []string) {
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			return args[:i], args[i:]
		}
	}
	return args, nil
}
