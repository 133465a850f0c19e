package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tnqbao/gau-review-orchestrator/config"
)

// JudgmentRequest is one prompt sent to the AI gateway.
type JudgmentRequest struct {
	StepName    string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// OnRetry, when set, is told about every rate-limited or failed attempt before the wait.
	OnRetry func(attempt, maxAttempts int, reason string, wait time.Duration)
}

type JudgmentService struct {
	URL         string
	APIKey      string
	Model       string
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration
	client      *http.Client
	logger      *LoggerClient
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func InitJudgmentService(cfg *config.EnvConfig, logger *LoggerClient) *JudgmentService {
	return &JudgmentService{
		URL:         cfg.ExternalService.JudgmentServiceURL,
		APIKey:      cfg.ExternalService.JudgmentServiceKey,
		Model:       cfg.ExternalService.JudgmentModel,
		MaxAttempts: cfg.Review.JudgmentMaxAttempts,
		RetryDelay:  cfg.Review.JudgmentRetryDelay,
		Timeout:     cfg.Review.JudgmentTimeout,
		client:      &http.Client{},
		logger:      logger,
	}
}

// Invoke sends the prompt and returns the answer with any markdown code fence removed.
// Rate limits (429) and server errors (5xx) are retried up to MaxAttempts; any other
// failure ends the call at once. Every returned error wraps ErrJudgmentUnavailable.
func (s *JudgmentService) Invoke(ctx context.Context, req JudgmentRequest) (string, error) {
	payload, err := json.Marshal(chatCompletionRequest{
		Model:       s.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode request: %w", ErrJudgmentUnavailable, err)
	}

	maxAttempts := s.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		content, retryable, err := s.attempt(ctx, payload)
		if err == nil {
			return ExtractJSONPayload(content), nil
		}
		if !retryable {
			return "", fmt.Errorf("%w: %w", ErrJudgmentUnavailable, err)
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}

		if s.logger != nil {
			s.logger.WarningWithContextf(ctx, "[Judgment] %s attempt %d/%d failed: %v, retrying in %s",
				req.StepName, attempt, maxAttempts, err, s.RetryDelay)
		}
		if req.OnRetry != nil {
			req.OnRetry(attempt, maxAttempts, err.Error(), s.RetryDelay)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", ErrJudgmentUnavailable, ctx.Err())
		case <-time.After(s.RetryDelay):
		}
	}

	return "", fmt.Errorf("%w: gave up after %d attempts: %w", ErrJudgmentUnavailable, maxAttempts, lastErr)
}

func (s *JudgmentService) attempt(ctx context.Context, payload []byte) (string, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", false, fmt.Errorf("failed to call judgment service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read judgment response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return "", true, &StatusError{Service: "judgment", StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, &StatusError{Service: "judgment", StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", false, fmt.Errorf("failed to decode judgment response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", false, errors.New("judgment response has no choices")
	}

	return decoded.Choices[0].Message.Content, false, nil
}

// ExtractJSONPayload strips a surrounding ```json or ``` fence from a model answer.
func ExtractJSONPayload(content string) string {
	content = strings.TrimSpace(content)

	if start := strings.Index(content, "```json"); start >= 0 {
		rest := content[start+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}

	if start := strings.Index(content, "```"); start >= 0 {
		rest := content[start+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}

	return content
}
