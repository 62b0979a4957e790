package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Bada35/Write-With-Jira/internal/commits"
	"github.com/Bada35/Write-With-Jira/internal/config"
	"github.com/Bada35/Write-With-Jira/internal/jiraapi"
	"github.com/Bada35/Write-With-Jira/internal/merge"
	"github.com/Bada35/Write-With-Jira/internal/output"
	"github.com/Bada35/Write-With-Jira/internal/report"
	"github.com/Bada35/Write-With-Jira/internal/upstream"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	kindTeam         = "team"
	kindRepoSummary  = "repo_summary"
	kindGitDaily     = "git_daily"
	kindIssues       = "issues"
	kindDaily        = "daily"
	kindCommitDetail = "commit_detail"
	kindIssueDetail  = "issue_detail"
)

// TeamReport writes one window report per team with members. Teams whose
// repository cannot be resolved or whose members have no commits get no
// file.
func (r *Runtime) TeamReport(ctx context.Context) error {
	start, end, err := r.window()
	if err != nil {
		return err
	}

	collector := r.collector(false)
	window := commits.Window{Since: start}
	for _, team := range r.cfg.ActiveTeams() {
		project, ok := r.resolveProject(ctx, team.Repo)
		if !ok {
			continue
		}

		var collected []commits.Commit
		if r.cfg.Git.CollectionMode == config.CollectionAll {
			collected = collector.CollectAll(ctx, project, window)
		} else {
			collected = collector.CollectProject(ctx, project, window)
		}

		members := toMembers(team.Members)
		summary := report.NewTeamSummary(report.Team{
			ID:             team.ID,
			RepositoryPath: team.Repo,
			Members:        members,
		}, commits.Partition(collected, members))
		if !summary.HasCommits() {
			r.logger.Info("team has no commits in window", zap.String("team", team.ID), zap.String("repository", team.Repo))
			continue
		}

		name := output.TeamFileName(r.cfg.Output.TeamReportDir, r.cfg.Output.TeamReportFilename, team.Repo, end)
		if err := r.writer.WriteReport(kindTeam, name, report.TeamBuilder{}.Build(summary, start, end), output.Append); err != nil {
			return err
		}
	}
	return nil
}

// RepoSummary writes the window summary of every configured repository.
func (r *Runtime) RepoSummary(ctx context.Context) error {
	start, end, err := r.window()
	if err != nil {
		return err
	}

	repos := r.collectRepositories(ctx, commits.Window{Since: start}, false)
	content := report.RepoSummaryBuilder{Location: r.location}.Build(start, end, repos)
	name := output.FileName(r.cfg.Output.TeamReportDir, r.cfg.Output.TeamReportFilename, end)
	return r.writer.WriteReport(kindRepoSummary, name, content, output.Overwrite)
}

// GitDaily writes the one-day commit report for the window end date and
// returns it as a document.
func (r *Runtime) GitDaily(ctx context.Context) (report.Document, error) {
	_, date, err := r.window()
	if err != nil {
		return report.Document{}, err
	}

	window := commits.Window{Since: date, Until: date.Add(24*time.Hour - time.Second)}
	repos := r.collectRepositories(ctx, window, true)

	builder := report.DailyBuilder{}
	content := builder.Build(date, repos)
	name := output.FileName(r.cfg.Output.GitReportDir, r.cfg.Output.GitReportFilename, date)
	if err := r.writer.WriteReport(kindGitDaily, name, content, output.Overwrite); err != nil {
		return report.Document{}, err
	}
	return report.ParseDocument(content), nil
}

// collectRepositories lists every configured repository through the
// whole-project listing, with author names resolved.
func (r *Runtime) collectRepositories(ctx context.Context, window commits.Window, withRefs bool) []report.RepoCommits {
	collector := r.collector(withRefs)
	repos := make([]report.RepoCommits, 0, len(r.cfg.Repositories))
	for _, path := range r.cfg.Repositories {
		project, ok := r.resolveProject(ctx, path)
		if !ok {
			continue
		}
		collected := collector.CollectAll(ctx, project, window)
		repos = append(repos, report.RepoCommits{
			Repository: path,
			Commits:    r.withAuthorNames(ctx, collected),
		})
	}
	return repos
}

// IssueReport writes the issues updated since the window end date for every
// project key and returns the report as a document.
func (r *Runtime) IssueReport(ctx context.Context) (report.Document, error) {
	_, date, err := r.window()
	if err != nil {
		return report.Document{}, err
	}

	keys := r.cfg.Jira.Keys(r.cfg.Merge.TeamIDs)
	projects := make([]report.ProjectIssues, 0, len(keys))
	for _, key := range keys {
		issues, err := r.issues.SearchIssues(ctx, jiraapi.SearchQuery{
			ProjectKey:   key,
			UpdatedSince: date,
			Statuses:     r.cfg.Jira.Statuses,
		})
		if err != nil {
			r.logger.Warn("issue search failed", zap.String("project", key), zap.Int("status", upstream.StatusCode(err)), zap.Error(err))
			continue
		}
		projects = append(projects, report.ProjectIssues{Key: key, Issues: toReportIssues(issues)})
	}

	builder := report.IssuesBuilder{}
	content := builder.Build(date, projects)
	name := output.FileName(r.cfg.Output.JiraReportDir, r.cfg.Output.JiraReportFilename, date)
	if err := r.writer.WriteReport(kindIssues, name, content, output.Overwrite); err != nil {
		return report.Document{}, err
	}
	return report.ParseDocument(content), nil
}

// MergeFiles merges the Git and issue reports written earlier for the window
// end date. A missing input is an empty document.
func (r *Runtime) MergeFiles(_ context.Context) error {
	_, date, err := r.window()
	if err != nil {
		return err
	}

	gitText, err := output.ReadOptional(output.FileName(r.cfg.Output.GitReportDir, r.cfg.Output.GitReportFilename, date))
	if err != nil {
		return fmt.Errorf("read git report: %w", err)
	}
	issueText, err := output.ReadOptional(output.FileName(r.cfg.Output.JiraReportDir, r.cfg.Output.JiraReportFilename, date))
	if err != nil {
		return fmt.Errorf("read issue report: %w", err)
	}
	return r.writeDaily(date, r.merger().Merge(gitText, issueText))
}

// Daily runs the Git and issue reports concurrently and merges their
// documents in process.
func (r *Runtime) Daily(ctx context.Context) error {
	_, date, err := r.window()
	if err != nil {
		return err
	}

	var gitDoc, issueDoc report.Document
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		doc, err := r.GitDaily(groupCtx)
		gitDoc = doc
		return err
	})
	group.Go(func() error {
		doc, err := r.IssueReport(groupCtx)
		issueDoc = doc
		return err
	})
	if err := group.Wait(); err != nil {
		return err
	}
	return r.writeDaily(date, r.merger().MergeDocuments(gitDoc, issueDoc))
}

func (r *Runtime) merger() merge.Merger {
	return merge.Merger{
		TeamIDs:        r.cfg.Merge.TeamIDs,
		RepoPrefix:     r.cfg.Merge.RepoPrefix,
		RepoPathPrefix: r.cfg.Merge.RepoPathPrefix,
	}
}

func (r *Runtime) writeDaily(date time.Time, content string) error {
	name := output.FileName(r.cfg.Output.DailyReportDir, r.cfg.Output.DailyReportFilename, date)
	return r.writer.WriteReport(kindDaily, name, content, output.Overwrite)
}

// CommitInfo dumps one commit with its diff, branches and per-file line
// counts. An unreachable commit is logged, not returned.
func (r *Runtime) CommitInfo(ctx context.Context, repositoryPath, sha string) error {
	project, ok := r.resolveProject(ctx, repositoryPath)
	if !ok {
		return nil
	}
	detail, err := commits.FetchDetail(ctx, r.git, project, sha, r.logger)
	if err != nil {
		r.logger.Error("commit detail unavailable", zap.String("commit", sha), zap.Int("status", upstream.StatusCode(err)), zap.Error(err))
		return nil
	}

	for _, file := range detail.Files {
		r.logger.Info("file changed",
			zap.String("path", file.Path),
			zap.String("change", file.Change),
			zap.Int("added", file.Added),
			zap.Int("removed", file.Removed),
		)
	}
	name := filepath.Join(r.DetailDir, fmt.Sprintf("commit-detail-%s.json", sha))
	return r.writer.WriteJSON(kindCommitDetail, name, detail)
}

// IssueInfo dumps one issue as the tracker returned it and logs its headline
// fields.
func (r *Runtime) IssueInfo(ctx context.Context, key string) error {
	raw, err := r.issues.GetIssue(ctx, key)
	if err != nil {
		r.logger.Error("issue unavailable", zap.String("issue", key), zap.Int("status", upstream.StatusCode(err)), zap.Error(err))
		return nil
	}

	name := filepath.Join(r.DetailDir, fmt.Sprintf("issue-%s.json", key))
	if err := r.writer.WriteJSON(kindIssueDetail, name, raw); err != nil {
		return err
	}

	detail, err := jiraapi.Summarize(raw)
	if err != nil {
		r.logger.Warn("issue fields not decoded", zap.String("issue", key), zap.Error(err))
		return nil
	}
	assignee := detail.Assignee
	if assignee == "" {
		assignee = "미배정"
	}
	r.logger.Info("issue",
		zap.String("key", detail.Key),
		zap.String("summary", detail.Summary),
		zap.String("status", detail.Status),
		zap.String("assignee", assignee),
		zap.Time("created", detail.Created),
		zap.Time("updated", detail.Updated),
	)
	return nil
}

func toReportIssues(issues []jiraapi.Issue) []report.Issue {
	converted := make([]report.Issue, 0, len(issues))
	for _, issue := range issues {
		converted = append(converted, report.Issue(issue))
	}
	return converted
}
