// Package app wires configuration, upstream clients and report builders into
// the runnable report stages.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Bada35/Write-With-Jira/internal/authors"
	"github.com/Bada35/Write-With-Jira/internal/commits"
	"github.com/Bada35/Write-With-Jira/internal/config"
	"github.com/Bada35/Write-With-Jira/internal/metrics"
	"github.com/Bada35/Write-With-Jira/internal/output"
	"github.com/Bada35/Write-With-Jira/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Deps are the collaborators of a Runtime. Git and Issues may be nil for
// stages that do not use them.
type Deps struct {
	Git      GitSource
	Issues   IssueTracker
	Writer   *output.Writer
	Logger   *zap.Logger
	Recorder *metrics.Recorder
	// Location renders local commit times; nil means time.Local.
	Location *time.Location
}

// Runtime runs report stages for one invocation.
type Runtime struct {
	cfg      *config.Config
	git      GitSource
	issues   IssueTracker
	writer   *output.Writer
	logger   *zap.Logger
	recorder *metrics.Recorder
	resolver *authors.Resolver
	location *time.Location

	// Now is injected for deterministic tests.
	Now func() time.Time
	// DetailDir receives commit and issue detail dumps.
	DetailDir string
}

// NewRuntime creates a runtime. The author cache lives for the runtime only.
func NewRuntime(cfg *config.Config, deps Deps) *Runtime {
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := deps.Writer
	if writer == nil {
		writer = output.NewWriter(logger, deps.Recorder)
	}
	location := deps.Location
	if location == nil {
		location = time.Local
	}

	var directory authors.Directory
	if deps.Git != nil {
		directory = deps.Git
	}

	return &Runtime{
		cfg:      cfg,
		git:      deps.Git,
		issues:   deps.Issues,
		writer:   writer,
		logger:   logger,
		recorder: deps.Recorder,
		resolver: authors.NewResolver(cfg.Git.AuthorDisplay, directory, authors.NewCache(), logger, deps.Recorder),
		location: location,
		Now:      time.Now,
	}
}

// Run executes stage inside a stage span and writes the metrics textfile
// afterwards. args carries the positional arguments of the detail stages.
func (r *Runtime) Run(ctx context.Context, stage config.Stage, args ...string) error {
	ctx, span := telemetry.StartStage(ctx, string(stage), attribute.String("stage", string(stage)))
	r.logger.Info("stage starting", zap.String("stage", string(stage)))

	err := r.dispatch(ctx, stage, args)
	telemetry.EndWithError(span, err)

	if textfileErr := r.recorder.WriteTextfile(r.cfg.Metrics.TextfilePath); textfileErr != nil {
		r.logger.Warn("metrics textfile not written", zap.Error(textfileErr))
	}
	if err != nil {
		return err
	}
	r.logger.Info("stage finished", zap.String("stage", string(stage)))
	return nil
}

func (r *Runtime) dispatch(ctx context.Context, stage config.Stage, args []string) error {
	switch stage {
	case config.StageTeamReport:
		return r.TeamReport(ctx)
	case config.StageRepoSummary:
		return r.RepoSummary(ctx)
	case config.StageGitDaily:
		_, err := r.GitDaily(ctx)
		return err
	case config.StageIssueReport:
		_, err := r.IssueReport(ctx)
		return err
	case config.StageMerge:
		return r.MergeFiles(ctx)
	case config.StageDaily:
		return r.Daily(ctx)
	case config.StageCommitInfo:
		if len(args) != 2 {
			return fmt.Errorf("%s needs <repository path> <sha>", stage)
		}
		return r.CommitInfo(ctx, args[0], args[1])
	case config.StageIssueInfo:
		if len(args) != 1 {
			return fmt.Errorf("%s needs <issue key>", stage)
		}
		return r.IssueInfo(ctx, args[0])
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
}

// window resolves the configured [start, end] window.
func (r *Runtime) window() (time.Time, time.Time, error) {
	start, end, err := r.cfg.Window.Resolve(r.Now())
	if err != nil {
		return time.Time{}, time.Time{}, &config.Error{Problems: []string{err.Error()}}
	}
	return start, end, nil
}

func (r *Runtime) collector(withRefs bool) *commits.Collector {
	opts := commits.CollectorOptions{
		PageSize: r.cfg.Git.PageSize,
		Logger:   r.logger,
		Recorder: r.recorder,
	}
	if withRefs {
		opts.Refs = commits.NewRefEnricher(r.git, r.cfg.Git.RefsConcurrency, r.logger)
	}
	return commits.NewCollector(r.git, opts)
}

// resolveProject maps a repository path to a project id. Failures are logged
// and reported as false so the caller skips the repository.
func (r *Runtime) resolveProject(ctx context.Context, path string) (string, bool) {
	project, err := r.git.ResolveProject(ctx, path)
	if err != nil {
		r.logger.Warn("repository skipped", zap.String("repository", path), zap.Error(err))
		return "", false
	}
	return project, true
}

// authorName returns the name shown for a commit. In lookup mode the email
// local part is the directory handle; an unresolved handle shows the raw
// author name.
func (r *Runtime) authorName(ctx context.Context, commit commits.Commit) string {
	if r.cfg.Git.AuthorDisplay != authors.ModeLookup {
		return commit.Author
	}
	handle, _, _ := strings.Cut(commit.AuthorEmail, "@")
	if handle == "" {
		return commit.Author
	}
	if name := r.resolver.Resolve(ctx, handle); name != handle {
		return name
	}
	return commit.Author
}

func (r *Runtime) withAuthorNames(ctx context.Context, list []commits.Commit) []commits.Commit {
	named := make([]commits.Commit, len(list))
	for i, commit := range list {
		commit.Author = r.authorName(ctx, commit)
		named[i] = commit
	}
	return named
}

func toMembers(configured []config.MemberConfig) []commits.Member {
	members := make([]commits.Member, 0, len(configured))
	for _, member := range configured {
		members = append(members, commits.Member{ID: member.ID, DisplayName: member.Name})
	}
	return members
}
