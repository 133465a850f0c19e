package infra

import (
	"errors"
	"fmt"
)

var (
	// ErrJudgmentUnavailable means no usable answer came back from the AI gateway.
	ErrJudgmentUnavailable   = errors.New("judgment service unavailable")
	ErrRepositoryUnavailable = errors.New("repository not found or not accessible")
	ErrVCSRateLimited        = errors.New("version control host rate limit exceeded")
	ErrRecordNotFound        = errors.New("record not found")
)

// StatusError is a non-success HTTP answer from an external service.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s service returned %d: %s", e.Service, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func truncateBody(body []byte) string {
	const limit = 500
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
