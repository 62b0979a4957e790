package jiraapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// BasicAuthConfig configures Jira Cloud API token authentication.
type BasicAuthConfig struct {
	Email         string
	APIToken      string
	Timeout       time.Duration
	BaseTransport http.RoundTripper
}

// NewBasicAuthHTTPClient creates an HTTP client sending email:api_token as
// basic credentials on every request.
func NewBasicAuthHTTPClient(cfg BasicAuthConfig) (*http.Client, error) {
	email := strings.TrimSpace(cfg.Email)
	token := strings.TrimSpace(cfg.APIToken)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if token == "" {
		return nil, fmt.Errorf("api token is required")
	}

	baseTransport := cfg.BaseTransport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	return &http.Client{
		Transport: &basicAuthTransport{email: email, token: token, base: baseTransport},
		Timeout:   cfg.Timeout,
	}, nil
}

type basicAuthTransport struct {
	email string
	token string
	base  http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	authed := req.Clone(req.Context())
	authed.SetBasicAuth(t.email, t.token)
	return t.base.RoundTrip(authed)
}
