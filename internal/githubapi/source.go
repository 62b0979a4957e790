// Package githubapi reads commits from the GitHub REST API for the same
// collection pipeline the GitLab source feeds.
package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Bada35/Write-With-Jira/internal/commits"
	"github.com/Bada35/Write-With-Jira/internal/metrics"
	"github.com/Bada35/Write-With-Jira/internal/telemetry"
	"github.com/Bada35/Write-With-Jira/internal/upstream"
	"github.com/google/go-github/v75/github"
	"go.opentelemetry.io/otel/attribute"
)

const (
	serviceName    = "github"
	branchPageSize = 100
)

// Source adapts a go-github client to the commit collection contracts.
// Projects are identified by "owner/repo".
type Source struct {
	client   *github.Client
	recorder *metrics.Recorder
}

var _ commits.DetailSource = (*Source)(nil)

// NewSource wraps client as a commit source.
func NewSource(client *github.Client, recorder *metrics.Recorder) *Source {
	return &Source{client: client, recorder: recorder}
}

// ResolveProject checks that the repository at path exists and returns its
// full name.
func (s *Source) ResolveProject(ctx context.Context, path string) (string, error) {
	owner, repo, err := splitProject(path)
	if err != nil {
		return "", err
	}

	var repository *github.Repository
	err = s.call(ctx, "project", func(ctx context.Context) (*github.Response, error) {
		var resp *github.Response
		var callErr error
		repository, resp, callErr = s.client.Repositories.Get(ctx, owner, repo)
		return resp, callErr
	})
	if err != nil {
		return "", err
	}
	if name := repository.GetFullName(); name != "" {
		return name, nil
	}
	return owner + "/" + repo, nil
}

// ListBranches lists every branch name, following the pagination links.
func (s *Source) ListBranches(ctx context.Context, project string) ([]string, error) {
	owner, repo, err := splitProject(project)
	if err != nil {
		return nil, err
	}

	opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: branchPageSize}}
	var names []string
	for {
		var branches []*github.Branch
		var next int
		err := s.call(ctx, "branches", func(ctx context.Context) (*github.Response, error) {
			var resp *github.Response
			var callErr error
			branches, resp, callErr = s.client.Repositories.ListBranches(ctx, owner, repo, opts)
			if resp != nil {
				next = resp.NextPage
			}
			return resp, callErr
		})
		if err != nil {
			return nil, err
		}
		for _, branch := range branches {
			names = append(names, branch.GetName())
		}
		if next == 0 {
			return names, nil
		}
		opts.Page = next
	}
}

// ListCommits reads one commit page. GitHub has no cross-branch listing, so
// an All query lists the default branch.
func (s *Source) ListCommits(ctx context.Context, project string, query commits.Query, page, perPage int) ([]commits.RawCommit, error) {
	owner, repo, err := splitProject(project)
	if err != nil {
		return nil, err
	}
	if !query.Until.IsZero() && !query.Since.IsZero() && query.Until.Before(query.Since) {
		return nil, fmt.Errorf("until must not be before since")
	}

	opts := &github.CommitsListOptions{
		Since:       query.Since,
		Until:       query.Until,
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}
	if !query.All {
		opts.SHA = query.Ref
	}

	var payload []*github.RepositoryCommit
	err = s.call(ctx, "commits", func(ctx context.Context) (*github.Response, error) {
		var resp *github.Response
		var callErr error
		payload, resp, callErr = s.client.Repositories.ListCommits(ctx, owner, repo, opts)
		return resp, callErr
	})
	if err != nil {
		return nil, err
	}

	raws := make([]commits.RawCommit, 0, len(payload))
	for _, commit := range payload {
		raws = append(raws, toRawCommit(commit))
	}
	return raws, nil
}

// CommitRefs lists the branches whose head is sha. GitHub offers no
// "branches containing" lookup for arbitrary ancestors.
func (s *Source) CommitRefs(ctx context.Context, project, sha string) ([]string, error) {
	owner, repo, err := splitProject(project)
	if err != nil {
		return nil, err
	}

	var heads []*github.BranchCommit
	err = s.call(ctx, "commit_refs", func(ctx context.Context) (*github.Response, error) {
		var resp *github.Response
		var callErr error
		heads, resp, callErr = s.client.Repositories.ListBranchesHeadCommit(ctx, owner, repo, sha)
		return resp, callErr
	})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(heads))
	for _, head := range heads {
		names = append(names, head.GetName())
	}
	return names, nil
}

// GetCommit reads one commit.
func (s *Source) GetCommit(ctx context.Context, project, sha string) (commits.RawCommit, error) {
	commit, err := s.getCommit(ctx, project, sha, "commit")
	if err != nil {
		return commits.RawCommit{}, err
	}
	return toRawCommit(commit), nil
}

// CommitDiff reads the per-file patches of sha.
func (s *Source) CommitDiff(ctx context.Context, project, sha string) ([]commits.FileDiff, error) {
	commit, err := s.getCommit(ctx, project, sha, "commit_diff")
	if err != nil {
		return nil, err
	}
	diff := make([]commits.FileDiff, 0, len(commit.Files))
	for _, file := range commit.Files {
		diff = append(diff, toFileDiff(file))
	}
	return diff, nil
}

// LookupDisplayName resolves a login to the profile name.
func (s *Source) LookupDisplayName(ctx context.Context, username string) (string, bool, error) {
	login := strings.TrimPrefix(strings.TrimSpace(username), "@")
	if login == "" {
		return "", false, nil
	}

	var user *github.User
	err := s.call(ctx, "users", func(ctx context.Context) (*github.Response, error) {
		var resp *github.Response
		var callErr error
		user, resp, callErr = s.client.Users.Get(ctx, login)
		return resp, callErr
	})
	if upstream.StatusCode(err) == http.StatusNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	name := user.GetName()
	return name, name != "", nil
}

func (s *Source) getCommit(ctx context.Context, project, sha, endpoint string) (*github.RepositoryCommit, error) {
	owner, repo, err := splitProject(project)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sha) == "" {
		return nil, fmt.Errorf("sha is required")
	}

	var commit *github.RepositoryCommit
	err = s.call(ctx, endpoint, func(ctx context.Context) (*github.Response, error) {
		var resp *github.Response
		var callErr error
		commit, resp, callErr = s.client.Repositories.GetCommit(ctx, owner, repo, sha, nil)
		return resp, callErr
	})
	return commit, err
}

// call runs one API call, records its outcome and maps HTTP failures to
// *upstream.StatusError.
func (s *Source) call(ctx context.Context, endpoint string, fn func(context.Context) (*github.Response, error)) error {
	ctx, span := telemetry.StartDependency(ctx, serviceName+"."+endpoint, attribute.String("upstream.endpoint", endpoint))

	resp, err := fn(ctx)
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	s.recorder.UpstreamRequest(serviceName, endpoint, status)

	err = mapError(endpoint, status, err)
	telemetry.EndWithError(span, err)
	return err
}

func mapError(endpoint string, status int, err error) error {
	if err == nil {
		return nil
	}
	if status != 0 && (status < 200 || status > 299) {
		statusErr := &upstream.StatusError{
			Service:    serviceName,
			Endpoint:   endpoint,
			StatusCode: status,
		}
		var errResp *github.ErrorResponse
		if errors.As(err, &errResp) {
			statusErr.Body = errResp.Message
		}
		return statusErr
	}
	return fmt.Errorf("%s request failed: %w", endpoint, err)
}

func splitProject(project string) (string, string, error) {
	trimmed := strings.Trim(strings.TrimSpace(project), "/")
	owner, repo, ok := strings.Cut(trimmed, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("project %q must be owner/repo", project)
	}
	return owner, repo, nil
}

func toRawCommit(commit *github.RepositoryCommit) commits.RawCommit {
	detail := commit.GetCommit()
	author := detail.GetAuthor()
	message := detail.GetMessage()
	title, _, _ := strings.Cut(message, "\n")
	return commits.RawCommit{
		ID:          commit.GetSHA(),
		Title:       strings.TrimSpace(title),
		Message:     message,
		AuthorName:  author.GetName(),
		AuthorEmail: author.GetEmail(),
		CreatedAt:   author.GetDate().Time,
		WebURL:      commit.GetHTMLURL(),
	}
}

func toFileDiff(file *github.CommitFile) commits.FileDiff {
	diff := commits.FileDiff{
		OldPath: file.GetFilename(),
		NewPath: file.GetFilename(),
		Diff:    file.GetPatch(),
	}
	switch file.GetStatus() {
	case "added":
		diff.NewFile = true
	case "removed":
		diff.DeletedFile = true
	case "renamed":
		diff.RenamedFile = true
		if previous := file.GetPreviousFilename(); previous != "" {
			diff.OldPath = previous
		}
	}
	return diff
}
