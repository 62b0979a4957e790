package gitlabapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Bada35/Write-With-Jira/internal/upstream"
)

const defaultGitLabAPIBaseURL = "https://gitlab.com/api/v4/"

// Project is one GitLab project.
type Project struct {
	ID                int64  `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
}

// CommitQuery narrows a repository commit listing.
type CommitQuery struct {
	Since   time.Time
	Until   time.Time
	RefName string
	All     bool
}

// Commit is one commit from the repository commit endpoints.
type Commit struct {
	ID          string    `json:"id"`
	ShortID     string    `json:"short_id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	CreatedAt   time.Time `json:"created_at"`
	WebURL      string    `json:"web_url"`
}

// FileDiff is one file of a commit diff.
type FileDiff struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	Diff        string `json:"diff"`
	NewFile     bool   `json:"new_file"`
	RenamedFile bool   `json:"renamed_file"`
	DeletedFile bool   `json:"deleted_file"`
}

// User is one entry of the user directory.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type branchPayload struct {
	Name string `json:"name"`
}

type refPayload struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// DataClient is a typed GitLab REST v4 client for the report endpoints.
type DataClient struct {
	baseURL       *url.URL
	requestClient *upstream.Client
}

// NewDataClient creates a typed data client over the retry/rate-limit request
// client.
func NewDataClient(baseURL string, requestClient *upstream.Client) (*DataClient, error) {
	if requestClient == nil {
		return nil, fmt.Errorf("request client is required")
	}

	parsed, err := parseAPIBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &DataClient{
		baseURL:       parsed,
		requestClient: requestClient,
	}, nil
}

// ResolveProject looks a project up by its path. A leading slash is ignored.
func (c *DataClient) ResolveProject(ctx context.Context, path string) (Project, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return Project{}, fmt.Errorf("project path is required")
	}

	reqURL := c.endpointURL(nil, "projects", url.PathEscape(trimmed))
	var project Project
	if _, err := c.requestClient.GetJSON(ctx, "project", reqURL, nil, &project); err != nil {
		return Project{}, err
	}
	return project, nil
}

// ListBranches lists every branch name of a project, paging until a short
// page.
func (c *DataClient) ListBranches(ctx context.Context, projectID string) ([]string, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("project id is required")
	}

	const perPage = 100
	var names []string
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(perPage))
		query.Set("page", strconv.Itoa(page))
		reqURL := c.endpointURL(query, "projects", url.PathEscape(projectID), "repository", "branches")

		var payload []branchPayload
		if _, err := c.requestClient.GetJSON(ctx, "branches", reqURL, nil, &payload); err != nil {
			return nil, err
		}
		for _, branch := range payload {
			names = append(names, branch.Name)
		}
		if len(payload) < perPage {
			break
		}
	}
	return names, nil
}

// ListCommitsPage reads one page of the repository commit listing.
func (c *DataClient) ListCommitsPage(ctx context.Context, projectID string, query CommitQuery, page, perPage int) ([]Commit, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("project id is required")
	}
	if !query.Until.IsZero() && !query.Since.IsZero() && query.Until.Before(query.Since) {
		return nil, fmt.Errorf("until must not be before since")
	}

	values := url.Values{}
	if !query.Since.IsZero() {
		values.Set("since", query.Since.UTC().Format(time.RFC3339))
	}
	if !query.Until.IsZero() {
		values.Set("until", query.Until.UTC().Format(time.RFC3339))
	}
	if query.All {
		values.Set("all", "true")
	} else if query.RefName != "" {
		values.Set("ref_name", query.RefName)
	}
	values.Set("page", strconv.Itoa(page))
	values.Set("per_page", strconv.Itoa(perPage))
	reqURL := c.endpointURL(values, "projects", url.PathEscape(projectID), "repository", "commits")

	var payload []Commit
	if _, err := c.requestClient.GetJSON(ctx, "commits", reqURL, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// GetCommit reads one commit.
func (c *DataClient) GetCommit(ctx context.Context, projectID, sha string) (Commit, error) {
	if strings.TrimSpace(sha) == "" {
		return Commit{}, fmt.Errorf("sha is required")
	}
	reqURL := c.endpointURL(nil, "projects", url.PathEscape(projectID), "repository", "commits", url.PathEscape(sha))

	var commit Commit
	if _, err := c.requestClient.GetJSON(ctx, "commit", reqURL, nil, &commit); err != nil {
		return Commit{}, err
	}
	return commit, nil
}

// GetCommitDiff reads the per-file diff of one commit.
func (c *DataClient) GetCommitDiff(ctx context.Context, projectID, sha string) ([]FileDiff, error) {
	if strings.TrimSpace(sha) == "" {
		return nil, fmt.Errorf("sha is required")
	}
	reqURL := c.endpointURL(nil, "projects", url.PathEscape(projectID), "repository", "commits", url.PathEscape(sha), "diff")

	var diff []FileDiff
	if _, err := c.requestClient.GetJSON(ctx, "commit_diff", reqURL, nil, &diff); err != nil {
		return nil, err
	}
	return diff, nil
}

// GetCommitRefs returns the names of the branches containing sha.
func (c *DataClient) GetCommitRefs(ctx context.Context, projectID, sha string) ([]string, error) {
	if strings.TrimSpace(sha) == "" {
		return nil, fmt.Errorf("sha is required")
	}
	query := url.Values{}
	query.Set("type", "branch")
	reqURL := c.endpointURL(query, "projects", url.PathEscape(projectID), "repository", "commits", url.PathEscape(sha), "refs")

	var refs []refPayload
	if _, err := c.requestClient.GetJSON(ctx, "commit_refs", reqURL, nil, &refs); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	return names, nil
}

// LookupUser finds a user by username. The boolean is false when the
// directory has no such user.
func (c *DataClient) LookupUser(ctx context.Context, username string) (User, bool, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(username), "@")
	if trimmed == "" {
		return User{}, false, nil
	}
	query := url.Values{}
	query.Set("username", trimmed)
	reqURL := c.endpointURL(query, "users")

	var users []User
	if _, err := c.requestClient.GetJSON(ctx, "users", reqURL, nil, &users); err != nil {
		return User{}, false, err
	}
	if len(users) == 0 {
		return User{}, false, nil
	}
	return users[0], true, nil
}

func (c *DataClient) endpointURL(query url.Values, segments ...string) string {
	reqURL := *c.baseURL
	reqURL.RawPath = joinURLPath(c.baseURL.EscapedPath(), segments...)
	unescaped, err := url.PathUnescape(reqURL.RawPath)
	if err != nil {
		unescaped = reqURL.RawPath
	}
	reqURL.Path = unescaped
	if query != nil {
		reqURL.RawQuery = query.Encode()
	}
	return reqURL.String()
}

func parseAPIBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultGitLabAPIBaseURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse gitlab api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse gitlab api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed, nil
}

func joinURLPath(base string, segments ...string) string {
	builder := strings.Builder{}
	builder.WriteString(strings.TrimSuffix(base, "/"))
	for _, segment := range segments {
		builder.WriteString("/")
		builder.WriteString(strings.TrimPrefix(segment, "/"))
	}
	return builder.String()
}
