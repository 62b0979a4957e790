// Package jiraapi reads issues from the Jira Cloud REST v3 API.
package jiraapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Bada35/Write-With-Jira/internal/upstream"
)

const (
	defaultPageSize = 50
	searchFields    = "key,summary,status,updated"
	dateLayout      = "2006-01-02"
)

// Jira renders timestamps with a numeric zone without a colon.
var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339Nano,
}

// Issue is the subset of issue fields the reports use.
type Issue struct {
	Key     string
	Summary string
	Status  string
	Updated time.Time
}

// SearchQuery selects recently updated issues of one project.
type SearchQuery struct {
	ProjectKey   string
	UpdatedSince time.Time
	// Statuses restricts the result to these status names when set.
	Statuses []string
}

// JQL renders the query in Jira Query Language.
func (q SearchQuery) JQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "project = %s AND updated >= %q", q.ProjectKey, q.UpdatedSince.Format(dateLayout))
	if len(q.Statuses) > 0 {
		quoted := make([]string, 0, len(q.Statuses))
		for _, status := range q.Statuses {
			quoted = append(quoted, strconv.Quote(status))
		}
		fmt.Fprintf(&b, " AND status in (%s)", strings.Join(quoted, ", "))
	}
	b.WriteString(" ORDER BY updated DESC")
	return b.String()
}

type searchPayload struct {
	StartAt    int            `json:"startAt"`
	MaxResults int            `json:"maxResults"`
	Total      int            `json:"total"`
	Issues     []issuePayload `json:"issues"`
}

type issuePayload struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		Updated string `json:"updated"`
	} `json:"fields"`
}

// Client is a typed Jira REST v3 client.
type Client struct {
	baseURL       *url.URL
	requestClient *upstream.Client
	pageSize      int
}

// NewClient creates a client for domain, either a bare host such as
// "team.atlassian.net" or a full base URL.
func NewClient(domain string, requestClient *upstream.Client, pageSize int) (*Client, error) {
	if requestClient == nil {
		return nil, fmt.Errorf("request client is required")
	}
	parsed, err := parseBaseURL(domain)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		baseURL:       parsed,
		requestClient: requestClient,
		pageSize:      pageSize,
	}, nil
}

// SearchIssues returns every issue matching query, paging by startAt until
// a page comes back empty or the reported total is reached. Without a total,
// a page shorter than the page size is the last one.
func (c *Client) SearchIssues(ctx context.Context, query SearchQuery) ([]Issue, error) {
	if strings.TrimSpace(query.ProjectKey) == "" {
		return nil, fmt.Errorf("project key is required")
	}

	jql := query.JQL()
	var issues []Issue
	for startAt := 0; ; {
		values := url.Values{}
		values.Set("jql", jql)
		values.Set("fields", searchFields)
		values.Set("startAt", strconv.Itoa(startAt))
		values.Set("maxResults", strconv.Itoa(c.pageSize))

		var payload searchPayload
		if _, err := c.requestClient.GetJSON(ctx, "search", c.endpointURL(values, "search"), nil, &payload); err != nil {
			return nil, err
		}
		for _, item := range payload.Issues {
			issues = append(issues, toIssue(item))
		}

		startAt += len(payload.Issues)
		if len(payload.Issues) == 0 {
			return issues, nil
		}
		if payload.Total > 0 {
			if startAt >= payload.Total {
				return issues, nil
			}
		} else if len(payload.Issues) < c.pageSize {
			return issues, nil
		}
	}
}

// GetIssue returns the full issue document for key as the API sent it.
func (c *Client) GetIssue(ctx context.Context, key string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, fmt.Errorf("issue key is required")
	}

	var raw json.RawMessage
	if _, err := c.requestClient.GetJSON(ctx, "issue", c.endpointURL(nil, "issue", url.PathEscape(trimmed)), nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Summarize extracts the commonly shown fields of a full issue document.
func Summarize(raw json.RawMessage) (IssueDetail, error) {
	var payload struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
			Status  struct {
				Name string `json:"name"`
			} `json:"status"`
			Assignee *struct {
				DisplayName string `json:"displayName"`
			} `json:"assignee"`
			Created string `json:"created"`
			Updated string `json:"updated"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return IssueDetail{}, fmt.Errorf("decode issue: %w", err)
	}

	detail := IssueDetail{
		Key:     payload.Key,
		Summary: payload.Fields.Summary,
		Status:  payload.Fields.Status.Name,
		Created: parseTime(payload.Fields.Created),
		Updated: parseTime(payload.Fields.Updated),
	}
	if payload.Fields.Assignee != nil {
		detail.Assignee = payload.Fields.Assignee.DisplayName
	}
	return detail, nil
}

// IssueDetail is the headline view of one issue. Assignee is empty when the
// issue is unassigned.
type IssueDetail struct {
	Key      string
	Summary  string
	Status   string
	Assignee string
	Created  time.Time
	Updated  time.Time
}

func toIssue(item issuePayload) Issue {
	return Issue{
		Key:     item.Key,
		Summary: item.Fields.Summary,
		Status:  item.Fields.Status.Name,
		Updated: parseTime(item.Fields.Updated),
	}
}

func parseTime(raw string) time.Time {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func (c *Client) endpointURL(query url.Values, segments ...string) string {
	reqURL := c.baseURL.JoinPath(segments...)
	if query != nil {
		reqURL.RawQuery = query.Encode()
	}
	return reqURL.String()
}

func parseBaseURL(domain string) (*url.URL, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(domain), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("jira domain is required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse jira base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("parse jira base url: missing host")
	}
	return parsed.JoinPath("rest", "api", "3"), nil
}
