package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Bada35/Write-With-Jira/internal/authors"
	"github.com/Bada35/Write-With-Jira/internal/commits"
	"github.com/Bada35/Write-With-Jira/internal/config"
	"github.com/Bada35/Write-With-Jira/internal/githubapi"
	"github.com/Bada35/Write-With-Jira/internal/gitlabapi"
	"github.com/Bada35/Write-With-Jira/internal/jiraapi"
	"github.com/Bada35/Write-With-Jira/internal/metrics"
	"github.com/Bada35/Write-With-Jira/internal/upstream"
)

const defaultRequestTimeout = 30 * time.Second

// GitSource is a Git host that can also resolve author handles.
type GitSource interface {
	commits.DetailSource
	authors.Directory
}

// IssueTracker reads issues for the issue report and issue detail stages.
type IssueTracker interface {
	SearchIssues(ctx context.Context, query jiraapi.SearchQuery) ([]jiraapi.Issue, error)
	GetIssue(ctx context.Context, key string) (json.RawMessage, error)
}

// NewGitSourceFromConfig builds the configured Git host source.
func NewGitSourceFromConfig(cfg *config.Config, recorder *metrics.Recorder) (GitSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	switch cfg.Git.Provider {
	case config.ProviderGitHub:
		return newGitHubSource(cfg, recorder)
	default:
		return newGitLabSource(cfg, recorder)
	}
}

func newGitLabSource(cfg *config.Config, recorder *metrics.Recorder) (GitSource, error) {
	httpClient, err := gitlabapi.NewTokenHTTPClient(gitlabapi.TokenAuthConfig{
		Token:         cfg.GitLab.Token,
		Timeout:       timeoutOrDefault(cfg.GitLab.RequestTimeout),
		BaseTransport: http.DefaultTransport,
	})
	if err != nil {
		return nil, fmt.Errorf("create gitlab http client: %w", err)
	}

	requestClient := upstream.NewClient("gitlab", httpClient, upstream.RetryConfig{
		MaxAttempts:    cfg.GitLab.Retry.MaxAttempts,
		InitialBackoff: cfg.GitLab.Retry.InitialBackoff,
		MaxBackoff:     cfg.GitLab.Retry.MaxBackoff,
	}, upstream.RateLimitPolicy{
		MinRemainingThreshold: 1,
		MinResetBuffer:        time.Second,
		ThrottleBackoff:       10 * time.Second,
	}, recorder)

	dataClient, err := gitlabapi.NewDataClient(cfg.GitLab.APIBaseURL(), requestClient)
	if err != nil {
		return nil, fmt.Errorf("create gitlab data client: %w", err)
	}
	return gitlabapi.NewSource(dataClient), nil
}

func newGitHubSource(cfg *config.Config, recorder *metrics.Recorder) (GitSource, error) {
	timeout := timeoutOrDefault(cfg.GitHub.RequestTimeout)

	var (
		httpClient *http.Client
		err        error
	)
	if cfg.GitHub.AppID > 0 {
		httpClient, err = githubapi.NewInstallationHTTPClient(githubapi.InstallationAuthConfig{
			AppID:          cfg.GitHub.AppID,
			InstallationID: cfg.GitHub.InstallationID,
			PrivateKeyPath: cfg.GitHub.PrivateKeyPath,
			Timeout:        timeout,
			BaseTransport:  http.DefaultTransport,
		})
	} else {
		httpClient, err = githubapi.NewTokenHTTPClient(githubapi.TokenAuthConfig{
			Token:         cfg.GitHub.Token,
			Timeout:       timeout,
			BaseTransport: http.DefaultTransport,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("create github http client: %w", err)
	}

	restClient, err := githubapi.NewRESTClient(httpClient, cfg.GitHub.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("create github rest client: %w", err)
	}
	return githubapi.NewSource(restClient, recorder), nil
}

// NewIssueTrackerFromConfig builds the Jira client.
func NewIssueTrackerFromConfig(cfg *config.Config, recorder *metrics.Recorder) (IssueTracker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	httpClient, err := jiraapi.NewBasicAuthHTTPClient(jiraapi.BasicAuthConfig{
		Email:         cfg.Jira.Email,
		APIToken:      cfg.Jira.APIToken,
		Timeout:       defaultRequestTimeout,
		BaseTransport: http.DefaultTransport,
	})
	if err != nil {
		return nil, fmt.Errorf("create jira http client: %w", err)
	}

	requestClient := upstream.NewClient("jira", httpClient, upstream.RetryConfig{MaxAttempts: 1}, upstream.RateLimitPolicy{
		ThrottleBackoff: 10 * time.Second,
	}, recorder)
	client, err := jiraapi.NewClient(cfg.Jira.Domain, requestClient, cfg.Jira.PageSize)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}
	return client, nil
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultRequestTimeout
	}
	return timeout
}
