package commits

import (
	"context"
	"strings"
	"time"
)

// MergeCommitPrefix marks commits suppressed from every collection.
const MergeCommitPrefix = "Merge branch"

// UnknownBranch substitutes the ref list of a commit whose refs could not be
// fetched.
const UnknownBranch = "unknown"

// Query narrows one commit listing request.
type Query struct {
	Since time.Time
	// Until is optional; zero means open-ended.
	Until time.Time
	// Ref is the branch to list. Ignored when All is set.
	Ref string
	// All lists commits reachable from every ref in one sequence.
	All bool
}

// RawCommit is one commit as returned by the Git host.
type RawCommit struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Message     string    `json:"message,omitempty"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	CreatedAt   time.Time `json:"created_at"`
	WebURL      string    `json:"web_url"`
	// Branches is filled by ref enrichment; nil until then.
	Branches []string `json:"branches,omitempty"`
}

// Commit is a collected commit tagged with the branch it was first seen on.
type Commit struct {
	ID          string
	Title       string
	Author      string
	AuthorEmail string
	CreatedAt   time.Time
	URL         string
	Branch      string
	Branches    []string
}

// Member is one configured team member.
type Member struct {
	ID          string
	DisplayName string
}

// Name returns the display name, falling back to the id.
func (m Member) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.ID
}

// Matches reports whether raw was authored by m: the email local part equals
// the id without its @ marker, or the author name equals the display name.
func (m Member) Matches(raw RawCommit) bool {
	localPart, _, _ := strings.Cut(raw.AuthorEmail, "@")
	id := strings.TrimPrefix(m.ID, "@")
	if localPart != "" && localPart == id {
		return true
	}
	return m.DisplayName != "" && raw.AuthorName == m.DisplayName
}

// Window is the collection date range.
type Window struct {
	Since time.Time
	Until time.Time
}

// Source is a Git host able to list branches and commit pages of a project.
type Source interface {
	// ResolveProject maps a repository path to the host's project identifier.
	ResolveProject(ctx context.Context, path string) (string, error)
	ListBranches(ctx context.Context, project string) ([]string, error)
	ListCommits(ctx context.Context, project string, query Query, page, perPage int) ([]RawCommit, error)
	// CommitRefs returns the branch names containing sha.
	CommitRefs(ctx context.Context, project, sha string) ([]string, error)
}

// FileDiff is one changed file of a commit.
type FileDiff struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	Diff        string `json:"diff"`
	NewFile     bool   `json:"new_file"`
	RenamedFile bool   `json:"renamed_file"`
	DeletedFile bool   `json:"deleted_file"`
}

// DetailSource extends Source with single-commit detail endpoints.
type DetailSource interface {
	Source
	GetCommit(ctx context.Context, project, sha string) (RawCommit, error)
	CommitDiff(ctx context.Context, project, sha string) ([]FileDiff, error)
}
