package analyzer

import (
	"context"
	"sync"

	"github.com/tnqbao/gau-review-orchestrator/infra"
)

// scriptedJudge returns canned answers in order and records every request.
type scriptedJudge struct {
	mu       sync.Mutex
	answers  []string
	err      error
	requests []infra.JudgmentRequest
}

func (j *scriptedJudge) Invoke(ctx context.Context, req infra.JudgmentRequest) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.requests = append(j.requests, req)
	if j.err != nil {
		return "", j.err
	}
	if len(j.answers) == 0 {
		return "", nil
	}
	answer := j.answers[0]
	j.answers = j.answers[1:]
	return answer, nil
}
