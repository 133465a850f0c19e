package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/tnqbao/gau-review-orchestrator/analyzer"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

const (
	promptPreviewLines = 15
	promptPreviewWidth = 100
)

// loggedJudge narrates every judgment call of a job on its console.
type loggedJudge struct {
	next    analyzer.Judge
	console *console
	model   string
	timeout time.Duration
}

func (j *loggedJudge) Invoke(ctx context.Context, req infra.JudgmentRequest) (string, error) {
	c := j.console
	c.Info(ctx, "Calling judgment service for %s", req.StepName)
	c.Info(ctx, "   Model: %s", j.model)
	c.Info(ctx, "   Temperature: %v", req.Temperature)
	c.Info(ctx, "   Max Tokens: %d", req.MaxTokens)
	c.Info(ctx, "   Timeout: %s", j.timeout)
	c.Info(ctx, "Prompt sent (%d chars):", len(req.Prompt))

	lines := strings.Split(req.Prompt, "\n")
	for i, line := range lines {
		if i == promptPreviewLines {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len([]rune(line)) > promptPreviewWidth {
			line = string([]rune(line)[:promptPreviewWidth])
		}
		c.Info(ctx, "   %s", line)
	}
	if len(lines) > promptPreviewLines {
		c.Info(ctx, "   ... (%d more lines)", len(lines)-promptPreviewLines)
	}

	previous := req.OnRetry
	req.OnRetry = func(attempt, maxAttempts int, reason string, wait time.Duration) {
		c.Warning(ctx, "Judgment attempt %d/%d failed (%s), waiting %s before retrying", attempt, maxAttempts, reason, wait)
		if previous != nil {
			previous(attempt, maxAttempts, reason, wait)
		}
	}

	answer, err := j.next.Invoke(ctx, req)
	if err != nil {
		c.Error(ctx, "Judgment call failed: %v", err)
		return "", err
	}

	c.Info(ctx, "Response received (%d chars):", len(answer))
	for _, line := range strings.Split(answer, "\n") {
		if strings.TrimSpace(line) != "" {
			c.Info(ctx, "   %s", line)
		}
	}
	return answer, nil
}
