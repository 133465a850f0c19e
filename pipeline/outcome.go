package pipeline

import (
	"errors"

	"github.com/tnqbao/gau-review-orchestrator/analyzer"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeDegraded
	OutcomeFlagForHuman
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeFlagForHuman:
		return "flag_for_human"
	case OutcomeFatal:
		return "fatal"
	}
	return "unknown"
}

// Outcome is the result of one analysis stage. Value is set for OK and Degraded,
// Err for every other kind and for Degraded.
type Outcome[T any] struct {
	Kind  OutcomeKind
	Value T
	Err   error
}

// classify maps a stage error onto the outcome taxonomy. Degraded outcomes carry the
// placeholder built from the error.
func classify[T any](value T, err error, placeholder func(error) T) Outcome[T] {
	switch {
	case err == nil:
		return Outcome[T]{Kind: OutcomeOK, Value: value}
	case errors.Is(err, infra.ErrJudgmentUnavailable):
		return Outcome[T]{Kind: OutcomeFatal, Err: err}
	case errors.Is(err, analyzer.ErrTargetUnreachable), errors.Is(err, infra.ErrRepositoryUnavailable):
		return Outcome[T]{Kind: OutcomeFlagForHuman, Err: err}
	default:
		return Outcome[T]{Kind: OutcomeDegraded, Value: placeholder(err), Err: err}
	}
}

// decisive maps the verdict stage: without a verdict the job cannot complete.
func decisive[T any](value T, err error) Outcome[T] {
	if err != nil {
		return Outcome[T]{Kind: OutcomeFatal, Err: err}
	}
	return Outcome[T]{Kind: OutcomeOK, Value: value}
}
