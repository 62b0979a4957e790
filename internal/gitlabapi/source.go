package gitlabapi

import (
	"context"
	"strconv"

	"github.com/Bada35/Write-With-Jira/internal/commits"
)

// Source adapts DataClient to the commit collection contracts.
type Source struct {
	client *DataClient
}

var _ commits.DetailSource = (*Source)(nil)

// NewSource wraps client as a commit source.
func NewSource(client *DataClient) *Source {
	return &Source{client: client}
}

// ResolveProject returns the numeric project id for path.
func (s *Source) ResolveProject(ctx context.Context, path string) (string, error) {
	project, err := s.client.ResolveProject(ctx, path)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(project.ID, 10), nil
}

// ListBranches lists the project's branches.
func (s *Source) ListBranches(ctx context.Context, project string) ([]string, error) {
	return s.client.ListBranches(ctx, project)
}

// ListCommits reads one commit page.
func (s *Source) ListCommits(ctx context.Context, project string, query commits.Query, page, perPage int) ([]commits.RawCommit, error) {
	payload, err := s.client.ListCommitsPage(ctx, project, CommitQuery{
		Since:   query.Since,
		Until:   query.Until,
		RefName: query.Ref,
		All:     query.All,
	}, page, perPage)
	if err != nil {
		return nil, err
	}
	raws := make([]commits.RawCommit, 0, len(payload))
	for _, commit := range payload {
		raws = append(raws, toRawCommit(commit))
	}
	return raws, nil
}

// CommitRefs lists the branches containing sha.
func (s *Source) CommitRefs(ctx context.Context, project, sha string) ([]string, error) {
	return s.client.GetCommitRefs(ctx, project, sha)
}

// GetCommit reads one commit.
func (s *Source) GetCommit(ctx context.Context, project, sha string) (commits.RawCommit, error) {
	commit, err := s.client.GetCommit(ctx, project, sha)
	if err != nil {
		return commits.RawCommit{}, err
	}
	return toRawCommit(commit), nil
}

// CommitDiff reads the per-file diff of sha.
func (s *Source) CommitDiff(ctx context.Context, project, sha string) ([]commits.FileDiff, error) {
	payload, err := s.client.GetCommitDiff(ctx, project, sha)
	if err != nil {
		return nil, err
	}
	diff := make([]commits.FileDiff, 0, len(payload))
	for _, file := range payload {
		diff = append(diff, commits.FileDiff(file))
	}
	return diff, nil
}

// LookupDisplayName resolves a username to the directory's display name.
func (s *Source) LookupDisplayName(ctx context.Context, username string) (string, bool, error) {
	user, ok, err := s.client.LookupUser(ctx, username)
	if err != nil || !ok {
		return "", ok, err
	}
	return user.Name, user.Name != "", nil
}

func toRawCommit(commit Commit) commits.RawCommit {
	return commits.RawCommit{
		ID:          commit.ID,
		Title:       commit.Title,
		Message:     commit.Message,
		AuthorName:  commit.AuthorName,
		AuthorEmail: commit.AuthorEmail,
		CreatedAt:   commit.CreatedAt,
		WebURL:      commit.WebURL,
	}
}
