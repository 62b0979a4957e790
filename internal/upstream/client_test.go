package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Bada35/Write-With-Jira/internal/metrics"
)

type fakeDoer struct {
	responses []*http.Response
	errors    []error
	callCount int
	requests  []*http.Request
}

func (d *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	idx := d.callCount
	d.callCount++
	d.requests = append(d.requests, req)

	var resp *http.Response
	if idx < len(d.responses) {
		resp = d.responses[idx]
	}
	var err error
	if idx < len(d.errors) {
		err = d.errors[idx]
	}
	return resp, err
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func newResponse(status int, headers map[string]string, body string) *http.Response {
	header := make(http.Header)
	for key, value := range headers {
		header.Set(key, value)
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestClientDo(t *testing.T) {
	t.Parallel()

	now := time.Unix(1739836800, 0)
	policy := RateLimitPolicy{
		MinRemainingThreshold: 10,
		MinResetBuffer:        10 * time.Second,
		ThrottleBackoff:       60 * time.Second,
		Now: func() time.Time {
			return now
		},
	}
	retry := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     5 * time.Second,
	}

	testCases := []struct {
		name          string
		doer          *fakeDoer
		retryConfig   RetryConfig
		wantAttempts  int
		wantErr       bool
		wantStatus    int
		wantSleepCall int
	}{
		{
			name: "retries_transient_5xx_and_succeeds",
			doer: &fakeDoer{
				responses: []*http.Response{
					newResponse(http.StatusInternalServerError, nil, "boom"),
					newResponse(http.StatusOK, map[string]string{"RateLimit-Remaining": "1999"}, "ok"),
				},
			},
			retryConfig:   retry,
			wantAttempts:  2,
			wantStatus:    http.StatusOK,
			wantSleepCall: 1,
		},
		{
			name: "does_not_retry_permanent_4xx",
			doer: &fakeDoer{
				responses: []*http.Response{
					newResponse(http.StatusNotFound, nil, "not found"),
				},
			},
			retryConfig:  retry,
			wantAttempts: 1,
			wantStatus:   http.StatusNotFound,
		},
		{
			name: "throttled_waits_then_retries",
			doer: &fakeDoer{
				responses: []*http.Response{
					newResponse(http.StatusTooManyRequests, map[string]string{"Retry-After": "90"}, "slow down"),
					newResponse(http.StatusOK, nil, "ok"),
				},
			},
			retryConfig:   retry,
			wantAttempts:  2,
			wantStatus:    http.StatusOK,
			wantSleepCall: 1,
		},
		{
			name: "single_attempt_returns_transient_status",
			doer: &fakeDoer{
				responses: []*http.Response{
					newResponse(http.StatusServiceUnavailable, nil, "down"),
				},
			},
			retryConfig:  RetryConfig{MaxAttempts: 1},
			wantAttempts: 1,
			wantStatus:   http.StatusServiceUnavailable,
		},
		{
			name: "network_errors_retry_until_exhausted",
			doer: &fakeDoer{
				errors: []error{
					fmt.Errorf("network down"),
					fmt.Errorf("network down"),
				},
			},
			retryConfig:   RetryConfig{MaxAttempts: 2, InitialBackoff: time.Second},
			wantAttempts:  2,
			wantErr:       true,
			wantSleepCall: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sleepCalls := 0
			client := NewClient("gitlab", tc.doer, tc.retryConfig, policy, nil)
			client.Sleep = func(_ time.Duration) {
				sleepCalls++
			}

			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "https://gitlab.example.com/api/v4/projects", nil)
			if err != nil {
				t.Fatalf("NewRequestWithContext() unexpected error: %v", err)
			}

			resp, metadata, callErr := client.Do(req)
			if resp != nil && resp.Body != nil {
				t.Cleanup(func() {
					_ = resp.Body.Close()
				})
			}
			if tc.wantErr && callErr == nil {
				t.Fatalf("Do() expected error, got nil")
			}
			if !tc.wantErr && callErr != nil {
				t.Fatalf("Do() unexpected error: %v", callErr)
			}
			if metadata.Attempts != tc.wantAttempts {
				t.Fatalf("Attempts = %d, want %d", metadata.Attempts, tc.wantAttempts)
			}
			if tc.wantStatus == 0 {
				if resp != nil {
					t.Fatalf("response = %v, want nil", resp)
				}
			} else if resp == nil || resp.StatusCode != tc.wantStatus {
				got := 0
				if resp != nil {
					got = resp.StatusCode
				}
				t.Fatalf("status = %d, want %d", got, tc.wantStatus)
			}
			if sleepCalls != tc.wantSleepCall {
				t.Fatalf("sleepCalls = %d, want %d", sleepCalls, tc.wantSleepCall)
			}
		})
	}
}

func TestClientDoLastThrottledAttemptKeepsBodyOpen(t *testing.T) {
	t.Parallel()

	body := &trackingBody{Reader: strings.NewReader("rate limited")}
	doer := &fakeDoer{
		responses: []*http.Response{{
			StatusCode: http.StatusTooManyRequests,
			Header:     http.Header{},
			Body:       body,
		}},
	}
	client := NewClient("jira", doer, RetryConfig{MaxAttempts: 1}, RateLimitPolicy{}, nil)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "https://jira.example.com/rest/api/3/search", nil)
	if err != nil {
		t.Fatalf("NewRequestWithContext() unexpected error: %v", err)
	}
	resp, _, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() unexpected error: %v", err)
	}
	if body.closed {
		t.Fatalf("body closed before caller could read it")
	}
	_ = resp.Body.Close()
}

func TestClientGetJSON(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		response   *http.Response
		doErr      error
		wantErr    bool
		wantStatus int
		wantLabel  string
		wantValue  string
	}{
		{
			name:      "decodes_success_body",
			response:  newResponse(http.StatusOK, nil, `{"name":"main"}`),
			wantLabel: "2xx",
			wantValue: "main",
		},
		{
			name:       "returns_status_error_with_body",
			response:   newResponse(http.StatusForbidden, nil, "403 Forbidden\n"),
			wantErr:    true,
			wantStatus: http.StatusForbidden,
			wantLabel:  "4xx",
		},
		{
			name:      "transport_error",
			doErr:     errors.New("dial tcp: refused"),
			wantErr:   true,
			wantLabel: "error",
		},
		{
			name:      "malformed_json",
			response:  newResponse(http.StatusOK, nil, `{`),
			wantErr:   true,
			wantLabel: "2xx",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			doer := &fakeDoer{
				responses: []*http.Response{tc.response},
				errors:    []error{tc.doErr},
			}
			recorder := metrics.NewRecorder()
			client := NewClient("gitlab", doer, RetryConfig{}, RateLimitPolicy{}, recorder)

			var target struct {
				Name string `json:"name"`
			}
			header := http.Header{}
			header.Set("X-Test", "1")
			_, err := client.GetJSON(context.Background(), "branches", "https://gitlab.example.com/api/v4/projects/1/repository/branches", header, &target)
			if tc.wantErr && err == nil {
				t.Fatalf("GetJSON() expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("GetJSON() unexpected error: %v", err)
			}
			if got := StatusCode(err); got != tc.wantStatus {
				t.Fatalf("StatusCode() = %d, want %d", got, tc.wantStatus)
			}
			if target.Name != tc.wantValue {
				t.Fatalf("decoded name = %q, want %q", target.Name, tc.wantValue)
			}
			if got := doer.requests[0].Header.Get("Accept"); got != "application/json" {
				t.Fatalf("Accept = %q, want application/json", got)
			}
			if got := doer.requests[0].Header.Get("X-Test"); got != "1" {
				t.Fatalf("X-Test = %q, want 1", got)
			}

			want := 1.0
			if got := upstreamCount(t, recorder, tc.wantLabel); got != want {
				t.Fatalf("upstream_requests_total{status=%q} = %v, want %v", tc.wantLabel, got, want)
			}
		})
	}
}

func TestStatusErrorMessage(t *testing.T) {
	t.Parallel()

	err := &StatusError{Service: "gitlab", Endpoint: "project", StatusCode: 404, Body: "404 Project Not Found"}
	want := "gitlab project: unexpected status 404: 404 Project Not Found"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := fmt.Errorf("resolve: %w", err)
	if got := StatusCode(wrapped); got != 404 {
		t.Fatalf("StatusCode(wrapped) = %d, want 404", got)
	}
}

func TestBackoffForAttempt(t *testing.T) {
	t.Parallel()

	retry := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second}
	testCases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 3 * time.Second},
		{attempt: 6, want: 3 * time.Second},
	}
	for _, tc := range testCases {
		if got := backoffForAttempt(retry, tc.attempt); got != tc.want {
			t.Fatalf("backoffForAttempt(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func upstreamCount(t *testing.T, recorder *metrics.Recorder, status string) float64 {
	t.Helper()

	families, err := recorder.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather() unexpected error: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "write_with_jira_upstream_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" && label.GetValue() == status {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
