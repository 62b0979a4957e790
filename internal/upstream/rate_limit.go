package upstream

import (
	"net/http"
	"strconv"
	"time"
)

// RateLimitHeaders contains parsed rate-limit response headers. GitLab sends
// RateLimit-*, Jira Cloud sends X-RateLimit-*; both are read.
type RateLimitHeaders struct {
	// Known is false when the response carried no remaining-budget header.
	Known      bool
	Remaining  int
	ResetUnix  int64
	RetryAfter time.Duration
	Throttled  bool
}

// Decision represents a rate-limit action decision.
type Decision struct {
	Allow   bool
	WaitFor time.Duration
	Reason  string
}

// RateLimitPolicy evaluates rate-limit actions from parsed headers.
type RateLimitPolicy struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	ThrottleBackoff       time.Duration
	Now                   func() time.Time
}

// ParseRateLimitHeaders parses rate-limit and retry headers.
func ParseRateLimitHeaders(header http.Header, statusCode int) RateLimitHeaders {
	parsed := RateLimitHeaders{}

	remaining := firstHeader(header, "RateLimit-Remaining", "X-RateLimit-Remaining")
	if remaining != "" {
		parsed.Known = true
		parsed.Remaining = parseInt(remaining)
	}
	parsed.ResetUnix = parseInt64(firstHeader(header, "RateLimit-Reset", "X-RateLimit-Reset"))

	retryAfterSeconds := parseInt(header.Get("Retry-After"))
	if retryAfterSeconds > 0 {
		parsed.RetryAfter = time.Duration(retryAfterSeconds) * time.Second
	}

	if statusCode == http.StatusTooManyRequests {
		parsed.Throttled = true
	}
	return parsed
}

// Evaluate decides whether calls may continue or should pause.
func (p RateLimitPolicy) Evaluate(headers RateLimitHeaders) Decision {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	if headers.Throttled {
		waitFor := p.ThrottleBackoff
		if headers.RetryAfter > waitFor {
			waitFor = headers.RetryAfter
		}
		return Decision{
			Allow:   false,
			WaitFor: waitFor,
			Reason:  "throttled",
		}
	}

	if !headers.Known || headers.Remaining >= p.MinRemainingThreshold {
		return Decision{
			Allow:  true,
			Reason: "within_budget",
		}
	}

	resetAt := time.Unix(headers.ResetUnix, 0)
	if !resetAt.After(now) {
		return Decision{
			Allow:  true,
			Reason: "reset_elapsed",
		}
	}

	return Decision{
		Allow:   false,
		WaitFor: resetAt.Sub(now) + p.MinResetBuffer,
		Reason:  "remaining_below_threshold",
	}
}

func firstHeader(header http.Header, keys ...string) string {
	for _, key := range keys {
		if value := header.Get(key); value != "" {
			return value
		}
	}
	return ""
}

func parseInt(raw string) int {
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt64(raw string) int64 {
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
