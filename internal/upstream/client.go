package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Bada35/Write-With-Jira/internal/metrics"
	"github.com/Bada35/Write-With-Jira/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxErrorBodyBytes = 512

// RetryConfig configures request retry behavior. One attempt means no retry.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// HTTPDoer is implemented by http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CallMetadata reports execution metadata for a client call.
type CallMetadata struct {
	Attempts        int
	LastRateHeaders RateLimitHeaders
	LastDecision    Decision
}

// Client wraps upstream HTTP requests with retry and rate-limit controls.
type Client struct {
	service    string
	doer       HTTPDoer
	retry      RetryConfig
	ratePolicy RateLimitPolicy
	recorder   *metrics.Recorder
	// Sleep is injected for testability.
	Sleep func(duration time.Duration)
}

// NewClient creates a request client for one upstream service. The service
// name labels spans, metrics and errors.
func NewClient(service string, doer HTTPDoer, retry RetryConfig, ratePolicy RateLimitPolicy, recorder *metrics.Recorder) *Client {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		service:    service,
		doer:       doer,
		retry:      retry,
		ratePolicy: ratePolicy,
		recorder:   recorder,
		Sleep:      time.Sleep,
	}
}

// Service returns the upstream service name.
func (c *Client) Service() string {
	return c.service
}

// Do executes a request with retry and rate-limit awareness. On the final
// attempt the response is returned as-is, with its body open, whatever its
// status.
func (c *Client) Do(req *http.Request) (*http.Response, CallMetadata, error) {
	if req == nil {
		return nil, CallMetadata{}, fmt.Errorf("request is nil")
	}

	ctx, span := telemetry.StartDependency(
		req.Context(),
		c.service+".client.do",
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.URL.EscapedPath()),
		attribute.Int("upstream.max_attempts", c.retry.MaxAttempts),
	)
	if span != nil {
		defer span.End()
	}

	metadata := CallMetadata{}
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		metadata.Attempts = attempt
		last := attempt == c.retry.MaxAttempts

		resp, err := c.doer.Do(req.Clone(ctx))
		if err != nil {
			if span != nil {
				span.RecordError(err)
				span.AddEvent("attempt_failed", trace.WithAttributes(
					attribute.Int("upstream.attempt", attempt),
				))
			}
			if last {
				if span != nil {
					span.SetStatus(codes.Error, err.Error())
				}
				return nil, metadata, err
			}
			c.Sleep(backoffForAttempt(c.retry, attempt))
			continue
		}

		headers := ParseRateLimitHeaders(resp.Header, resp.StatusCode)
		metadata.LastRateHeaders = headers
		decision := c.ratePolicy.Evaluate(headers)
		metadata.LastDecision = decision

		if span != nil {
			span.AddEvent("attempt_completed", trace.WithAttributes(
				attribute.Int("upstream.attempt", attempt),
				attribute.Int("http.status_code", resp.StatusCode),
				attribute.Int("upstream.rate_limit_remaining", headers.Remaining),
				attribute.Bool("upstream.rate_limit_allow", decision.Allow),
				attribute.String("upstream.rate_limit_reason", decision.Reason),
			))
		}

		if last {
			if span != nil {
				if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
					span.SetStatus(codes.Ok, "request completed")
				} else {
					span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
				}
			}
			return resp, metadata, nil
		}

		if !decision.Allow {
			closeBody(resp)
			c.Sleep(decision.WaitFor)
			continue
		}
		if isTransientStatus(resp.StatusCode) {
			closeBody(resp)
			c.Sleep(backoffForAttempt(c.retry, attempt))
			continue
		}

		if span != nil {
			span.SetStatus(codes.Ok, "request completed")
		}
		return resp, metadata, nil
	}

	if span != nil {
		span.SetStatus(codes.Error, "request attempts exhausted")
	}
	return nil, metadata, fmt.Errorf("request attempts exhausted")
}

// GetJSON issues a GET for endpoint, records the outcome, and decodes a 2xx
// body into target. Any other status yields a *StatusError.
func (c *Client) GetJSON(ctx context.Context, endpoint, rawURL string, header http.Header, target any) (CallMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return CallMetadata{}, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, metadata, err := c.Do(req)
	if err != nil {
		c.recorder.UpstreamRequest(c.service, endpoint, 0)
		return metadata, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	if resp == nil {
		c.recorder.UpstreamRequest(c.service, endpoint, 0)
		return metadata, fmt.Errorf("%s request failed: nil response", endpoint)
	}
	c.recorder.UpstreamRequest(c.service, endpoint, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return metadata, newStatusError(c.service, endpoint, resp)
	}
	if target == nil {
		closeBody(resp)
		return metadata, nil
	}
	if err := decodeJSONAndClose(resp, target); err != nil {
		return metadata, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return metadata, nil
}

func newStatusError(service, endpoint string, resp *http.Response) *StatusError {
	statusErr := &StatusError{
		Service:    service,
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
	}
	if resp.Body != nil {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		statusErr.Body = strings.TrimSpace(string(body))
		_ = resp.Body.Close()
	}
	return statusErr
}

func decodeJSONAndClose(resp *http.Response, target any) error {
	defer resp.Body.Close()
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(target); err != nil {
		return err
	}
	return nil
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}

func isTransientStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode <= 599
}

func backoffForAttempt(retry RetryConfig, attempt int) time.Duration {
	backoff := retry.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if retry.MaxBackoff > 0 && backoff > retry.MaxBackoff {
			return retry.MaxBackoff
		}
	}
	if retry.MaxBackoff > 0 && backoff > retry.MaxBackoff {
		return retry.MaxBackoff
	}
	return backoff
}
