package commits

import (
	"context"
	"strings"

	"github.com/Bada35/Write-With-Jira/internal/metrics"
	"go.uber.org/zap"
)

// CollectorOptions configures a Collector.
type CollectorOptions struct {
	PageSize int
	// Refs, when set, attaches branch refs to every kept commit.
	Refs     *RefEnricher
	Logger   *zap.Logger
	Recorder *metrics.Recorder
}

// Collector gathers the commits of a project over a window.
type Collector struct {
	branches *BranchEnumerator
	pages    *PageFetcher
	refs     *RefEnricher
	pageSize int
	logger   *zap.Logger
	recorder *metrics.Recorder
}

// MemberReport is one member's share of a project's commits.
type MemberReport struct {
	Member  Member
	Count   int
	Commits []Commit
}

// NewCollector creates a collector over source.
func NewCollector(source Source, opts CollectorOptions) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Collector{
		branches: NewBranchEnumerator(source, logger),
		pages:    NewPageFetcher(source, logger),
		refs:     opts.Refs,
		pageSize: pageSize,
		logger:   logger,
		recorder: opts.Recorder,
	}
}

// CollectMember scans every branch and keeps the commits authored by member.
func (c *Collector) CollectMember(ctx context.Context, project string, member Member, window Window) []Commit {
	return c.collectBranches(ctx, project, window, member.Matches)
}

// CollectProject scans every branch and keeps commits of every author.
func (c *Collector) CollectProject(ctx context.Context, project string, window Window) []Commit {
	return c.collectBranches(ctx, project, window, nil)
}

// CollectAll uses the whole-project listing instead of per-branch scans.
// Commits carry an empty Branch.
func (c *Collector) CollectAll(ctx context.Context, project string, window Window) []Commit {
	query := Query{Since: window.Since, Until: window.Until, All: true}
	var accumulated []Commit
	for _, page := range c.pages.Pages(ctx, project, query, c.pageSize) {
		accumulated = c.appendPage(ctx, accumulated, project, "", page, nil)
	}
	return c.dedupe(project, accumulated)
}

func (c *Collector) collectBranches(ctx context.Context, project string, window Window, keep func(RawCommit) bool) []Commit {
	var accumulated []Commit
	for _, branch := range c.branches.ListBranches(ctx, project) {
		query := Query{Since: window.Since, Until: window.Until, Ref: branch}
		for _, page := range c.pages.Pages(ctx, project, query, c.pageSize) {
			accumulated = c.appendPage(ctx, accumulated, project, branch, page, keep)
		}
	}
	return c.dedupe(project, accumulated)
}

func (c *Collector) appendPage(ctx context.Context, accumulated []Commit, project, branch string, page []RawCommit, keep func(RawCommit) bool) []Commit {
	kept := make([]RawCommit, 0, len(page))
	for _, raw := range page {
		if strings.HasPrefix(raw.Title, MergeCommitPrefix) {
			c.recorder.MergeCommitDropped(project)
			continue
		}
		if keep != nil && !keep(raw) {
			continue
		}
		kept = append(kept, raw)
	}

	if c.refs != nil && len(kept) > 0 {
		enriched, err := c.refs.Enrich(ctx, project, kept)
		if err != nil {
			c.logger.Warn("commit page enrichment failed, page treated as empty",
				zap.String("project", project),
				zap.String("ref", branch),
				zap.Error(err),
			)
			return accumulated
		}
		kept = enriched
	}

	for _, raw := range kept {
		accumulated = append(accumulated, normalize(raw, branch))
	}
	return accumulated
}

// dedupe keeps the first commit for each URL, preserving first-seen order.
func (c *Collector) dedupe(project string, accumulated []Commit) []Commit {
	seen := make(map[string]struct{}, len(accumulated))
	unique := make([]Commit, 0, len(accumulated))
	for _, commit := range accumulated {
		if _, ok := seen[commit.URL]; ok {
			continue
		}
		seen[commit.URL] = struct{}{}
		unique = append(unique, commit)
	}
	c.recorder.DuplicatesDropped(project, len(accumulated)-len(unique))
	c.recorder.CommitsCollected(project, len(unique))
	return unique
}

func normalize(raw RawCommit, branch string) Commit {
	return Commit{
		ID:          raw.ID,
		Title:       raw.Title,
		Author:      raw.AuthorName,
		AuthorEmail: raw.AuthorEmail,
		CreatedAt:   raw.CreatedAt,
		URL:         raw.WebURL,
		Branch:      branch,
		Branches:    raw.Branches,
	}
}

// Partition splits project commits per member in member order. A commit
// matching several members is counted for each of them.
func Partition(commits []Commit, members []Member) []MemberReport {
	reports := make([]MemberReport, 0, len(members))
	for _, member := range members {
		report := MemberReport{Member: member}
		for _, commit := range commits {
			if !member.Matches(RawCommit{AuthorName: commit.Author, AuthorEmail: commit.AuthorEmail}) {
				continue
			}
			report.Commits = append(report.Commits, commit)
		}
		report.Count = len(report.Commits)
		reports = append(reports, report)
	}
	return reports
}
