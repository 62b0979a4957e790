package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Bada35/Write-With-Jira/internal/app"
	"github.com/Bada35/Write-With-Jira/internal/config"
	"github.com/Bada35/Write-With-Jira/internal/metrics"
	"github.com/Bada35/Write-With-Jira/internal/output"
	"github.com/Bada35/Write-With-Jira/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	configPath string
	envFiles   []string
	detailDir  string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "write-with-jira: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "write-with-jira",
		Short:         "Generate daily and bi-weekly team reports from Git and Jira activity",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "optional YAML config file; environment variables override it")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")
	root.PersistentFlags().StringVar(&opts.detailDir, "detail-dir", ".", "directory receiving commit-info and issue-info dumps")

	root.AddCommand(
		stageCommand(opts, config.StageTeamReport, "team-report", "Write the per-team commit report for the window", cobra.NoArgs),
		stageCommand(opts, config.StageRepoSummary, "repo-summary", "Write the commit summary of every configured repository", cobra.NoArgs),
		stageCommand(opts, config.StageGitDaily, "git-daily", "Write the one-day commit report", cobra.NoArgs),
		stageCommand(opts, config.StageIssueReport, "issue-report", "Write the Jira issues updated on the report date", cobra.NoArgs),
		stageCommand(opts, config.StageMerge, "merge", "Merge the written Git and Jira reports into the daily report", cobra.NoArgs),
		stageCommand(opts, config.StageDaily, "daily", "Collect Git and Jira activity and write the merged daily report", cobra.NoArgs),
		stageCommand(opts, config.StageCommitInfo, "commit-info <repository path> <sha>", "Dump one commit with its diff and branches", cobra.ExactArgs(2)),
		stageCommand(opts, config.StageIssueInfo, "issue-info <issue key>", "Dump one Jira issue", cobra.ExactArgs(1)),
	)
	return root
}

func stageCommand(opts *options, stage config.Stage, use, short string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, stage, args)
		},
	}
}

func run(ctx context.Context, opts *options, stage config.Stage, args []string) error {
	environ, err := config.Environ(opts.envFiles...)
	if err != nil {
		return err
	}
	cfg, err := config.LoadFile(opts.configPath, environ)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateFor(stage); err != nil {
		return err
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(logLevel(cfg.LogLevel))
	logger, err := loggerConfig.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil && !shouldIgnoreLoggerSyncError(syncErr) {
			_, _ = fmt.Fprintf(os.Stderr, "write-with-jira: sync logger: %v\n", syncErr)
		}
	}()
	for _, warning := range cfg.Warnings {
		logger.Warn("configuration warning", zap.String("warning", warning))
	}

	telemetryRuntime, err := telemetry.Setup(telemetry.Config{
		Enabled:          cfg.Telemetry.OTELEnabled,
		ServiceName:      "write-with-jira",
		TraceMode:        cfg.Telemetry.OTELTraceMode,
		TraceSampleRatio: cfg.Telemetry.OTELTraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetryRuntime.Shutdown(shutdownCtx)
	}()

	recorder := metrics.NewRecorder()
	deps, err := buildDeps(cfg, stage, logger, recorder)
	if err != nil {
		return err
	}

	runtime := app.NewRuntime(cfg, deps)
	runtime.DetailDir = opts.detailDir
	return runtime.Run(ctx, stage, args...)
}

// buildDeps creates only the upstream clients the stage talks to.
func buildDeps(cfg *config.Config, stage config.Stage, logger *zap.Logger, recorder *metrics.Recorder) (app.Deps, error) {
	writer := output.NewWriter(logger, recorder)
	writer.HTML = cfg.Output.HTML
	deps := app.Deps{
		Writer:   writer,
		Logger:   logger,
		Recorder: recorder,
	}

	if stage.UsesGit() {
		git, err := app.NewGitSourceFromConfig(cfg, recorder)
		if err != nil {
			return app.Deps{}, fmt.Errorf("build git source: %w", err)
		}
		deps.Git = git
	}
	if stage.UsesIssues() {
		issues, err := app.NewIssueTrackerFromConfig(cfg, recorder)
		if err != nil {
			return app.Deps{}, fmt.Errorf("build issue tracker: %w", err)
		}
		deps.Issues = issues
	}
	return deps, nil
}

func logLevel(raw string) zapcore.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// shouldIgnoreLoggerSyncError reports sync failures of terminal-backed
// stderr, which cannot be fsynced.
func shouldIgnoreLoggerSyncError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
