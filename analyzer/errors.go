package analyzer

import "errors"

var (
	// ErrTargetUnreachable means the artifact could not be fetched within the retry budget.
	ErrTargetUnreachable = errors.New("target unreachable")
	// ErrMalformedAnswer means the judgment service answered with something that is not the expected JSON.
	ErrMalformedAnswer = errors.New("malformed judgment answer")
	ErrNoCommits       = errors.New("no commits found in repository")
	ErrNoSampleRecords = errors.New("table has no records to sample")
)
