package upstream

import (
	"errors"
	"fmt"
)

// StatusError is a non-success response from an upstream endpoint. Callers
// absorb it into a safe default for their unit of work.
type StatusError struct {
	Service    string
	Endpoint   string
	StatusCode int
	// Body holds at most the first 512 bytes of the response body.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Service, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Service, e.Endpoint, e.StatusCode, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not a
// status error.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
