package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tnqbao/gau-review-orchestrator/analyzer"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

func placeholder(err error) string { return "placeholder: " + err.Error() }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  OutcomeKind
		wantValue string
	}{
		{"success", nil, OutcomeOK, "value"},
		{"judgment outage", fmt.Errorf("wrapped: %w", infra.ErrJudgmentUnavailable), OutcomeFatal, ""},
		{"unreachable target", fmt.Errorf("%w: dns", analyzer.ErrTargetUnreachable), OutcomeFlagForHuman, ""},
		{"unavailable repository", &infra.StatusError{Service: "github", StatusCode: 404, Err: infra.ErrRepositoryUnavailable}, OutcomeFlagForHuman, ""},
		{"anything else", errors.New("boom"), OutcomeDegraded, "placeholder: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value := "value"
			if tt.err != nil {
				value = ""
			}
			got := classify(value, tt.err, placeholder)
			if got.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if got.Value != tt.wantValue {
				t.Errorf("value = %q, want %q", got.Value, tt.wantValue)
			}
			if !errors.Is(got.Err, tt.err) {
				t.Errorf("err = %v, want %v", got.Err, tt.err)
			}
		})
	}
}

func TestDecisive(t *testing.T) {
	if out := decisive(1, nil); out.Kind != OutcomeOK || out.Value != 1 {
		t.Errorf("decisive(1, nil) = %+v", out)
	}
	if out := decisive(0, errors.New("bad")); out.Kind != OutcomeFatal {
		t.Errorf("decisive error kind = %s", out.Kind)
	}
}

func TestTokenRegistry(t *testing.T) {
	r := NewTokenRegistry()

	if r.Cancel(7) {
		t.Error("cancel of an unknown job reported success")
	}

	token := r.Register(7)
	if token.Requested() {
		t.Fatal("fresh token already requested")
	}
	if !r.Cancel(7) || !token.Requested() {
		t.Error("cancel did not reach the registered token")
	}
	if r.Running() != 1 {
		t.Errorf("running = %d, want 1", r.Running())
	}

	r.Release(7)
	if r.Running() != 0 || r.Cancel(7) {
		t.Error("released job still registered")
	}

	var nilToken *CancelToken
	if nilToken.Requested() {
		t.Error("nil token reports a request")
	}
}

func TestTokenRegistryConcurrentCancel(t *testing.T) {
	r := NewTokenRegistry()
	tokens := make([]*CancelToken, 20)
	for i := range tokens {
		tokens[i] = r.Register(uint64(i))
	}

	var wg sync.WaitGroup
	for i := range tokens {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			r.Cancel(id)
		}(uint64(i))
	}
	wg.Wait()

	for i, token := range tokens {
		if !token.Requested() {
			t.Errorf("token %d not cancelled", i)
		}
	}
}

type scriptedJudge struct {
	answer string
	err    error
	retry  bool
}

func (s scriptedJudge) Invoke(ctx context.Context, req infra.JudgmentRequest) (string, error) {
	if s.retry && req.OnRetry != nil {
		req.OnRetry(1, 3, "rate limited", time.Millisecond)
	}
	return s.answer, s.err
}

func consoleMessages(t *testing.T, store *memoryJobStore, id uint64) []string {
	t.Helper()
	job, err := store.FindByID(id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	messages := make([]string, 0, len(job.ConsoleLog))
	for _, entry := range job.ConsoleLog {
		messages = append(messages, entry.Message)
	}
	return messages
}

func TestLoggedJudgePreviewsPrompt(t *testing.T) {
	h := newHarness(t)
	c := newConsole(h.jobID, h.store, discardLogger())
	judge := &loggedJudge{next: scriptedJudge{answer: "{\"ok\":true}\n\n", retry: true}, console: c, model: "m", timeout: time.Second}

	lines := make([]string, 20)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	lines[0] = strings.Repeat("x", 150)
	lines[1] = ""

	answer, err := judge.Invoke(context.Background(), infra.JudgmentRequest{StepName: "Verdict", Prompt: strings.Join(lines, "\n")})
	if err != nil || answer != "{\"ok\":true}\n\n" {
		t.Fatalf("Invoke = %q, %v", answer, err)
	}

	messages := consoleMessages(t, h.store, h.jobID)
	joined := strings.Join(messages, "\n")

	if !strings.Contains(joined, "   "+strings.Repeat("x", promptPreviewWidth)+"\n") {
		t.Error("long prompt line not truncated to the preview width")
	}
	if !strings.Contains(joined, "   ... (5 more lines)") {
		t.Error("missing remaining-lines marker")
	}
	if strings.Contains(joined, "line 15") {
		t.Error("preview went past its line limit")
	}
	if !strings.Contains(joined, "Judgment attempt 1/3 failed (rate limited)") {
		t.Error("retry not narrated")
	}
	if !strings.Contains(joined, "   {\"ok\":true}") {
		t.Error("response not echoed")
	}
}

func TestLoggedJudgeReportsFailure(t *testing.T) {
	h := newHarness(t)
	c := newConsole(h.jobID, h.store, discardLogger())
	judge := &loggedJudge{next: scriptedJudge{err: infra.ErrJudgmentUnavailable}, console: c}

	if _, err := judge.Invoke(context.Background(), infra.JudgmentRequest{Prompt: "p"}); !errors.Is(err, infra.ErrJudgmentUnavailable) {
		t.Fatalf("err = %v", err)
	}

	job, _ := h.store.FindByID(h.jobID)
	last := job.ConsoleLog[len(job.ConsoleLog)-1]
	if last.Level != entity.ConsoleLevelError || !strings.HasPrefix(last.Message, "Judgment call failed") {
		t.Errorf("last console entry = %+v", last)
	}
}

func TestConsoleStopsAfterFinish(t *testing.T) {
	h := newHarness(t)
	c := newConsole(h.jobID, h.store, nil)

	c.Info(context.Background(), "before %d", 1)
	h.store.Finish(h.jobID, entity.JobStatusCompleted, "done", nil)
	c.Warning(context.Background(), "after")

	if got := consoleMessages(t, h.store, h.jobID); len(got) != 1 || got[0] != "before 1" {
		t.Errorf("console = %v", got)
	}
}
