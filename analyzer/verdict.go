package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

const verdictTemperature = 0.2

// technicalKeywords identify a technical review reason when the answer carries no uncertainty_kind.
var technicalKeywords = []string{"blank", "empty", "cannot load", "error"}

type VerdictInput struct {
	Duplicate          bool
	Content            *entity.ContentSignals
	Commits            *entity.CommitSignals
	ClaimedHours       float64
	CustomInstructions string
}

// VerdictSynthesizer delegates the approve/flag decision to the judge.
type VerdictSynthesizer struct {
	MaxTokens int
}

func NewVerdictSynthesizer(cfg *config.EnvConfig) *VerdictSynthesizer {
	return &VerdictSynthesizer{MaxTokens: cfg.Review.DefaultJudgmentTokens}
}

func (s *VerdictSynthesizer) Decide(ctx context.Context, in VerdictInput, judge Judge) (*entity.Verdict, error) {
	aiInvolvement := entity.AIInvolvementNone
	estimated := in.ClaimedHours
	if in.Commits != nil {
		if in.Commits.AIInvolvement != "" {
			aiInvolvement = in.Commits.AIInvolvement
		}
		if in.Commits.EstimatedActualHours > 0 {
			estimated = in.Commits.EstimatedActualHours
		}
	}

	prompt, err := renderPrompt(verdictPrompt, map[string]interface{}{
		"Duplicate":          in.Duplicate,
		"ClaimedHours":       in.ClaimedHours,
		"Content":            in.Content,
		"Commits":            in.Commits,
		"CustomInstructions": strings.TrimSpace(in.CustomInstructions),
		"AIInvolvement":      aiInvolvement,
		"EstimatedHours":     estimated,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build verdict prompt: %w", err)
	}

	answer, err := judge.Invoke(ctx, infra.JudgmentRequest{
		StepName:    "Final Review",
		Prompt:      prompt,
		MaxTokens:   s.MaxTokens,
		Temperature: verdictTemperature,
	})
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Status          string  `json:"status"`
		ConfidenceScore float64 `json:"confidence_score"`
		ReviewNotes     string  `json:"review_notes"`
		UserFeedback    string  `json:"user_feedback"`
	}
	if err := decodeAnswer(answer, &decoded); err != nil {
		return nil, err
	}

	status, ok := canonicalVerdictStatus(decoded.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown verdict status %q", ErrMalformedAnswer, decoded.Status)
	}

	verdict := &entity.Verdict{
		Status:          status,
		ConfidenceScore: roundScore(decoded.ConfidenceScore),
		ReviewNotes:     decoded.ReviewNotes,
		UserFeedback:    decoded.UserFeedback,
	}
	verdict.ClampScores()
	return verdict, nil
}

func canonicalVerdictStatus(status string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved":
		return entity.VerdictApproved, true
	case "flagged":
		return entity.VerdictFlagged, true
	}
	return "", false
}

// TechnicalUncertainty reports whether the content test asked for human review because
// the site could not be evaluated, as opposed to doubts about the work itself.
func TechnicalUncertainty(content *entity.ContentSignals) (string, bool) {
	if content == nil || !content.NeedsHumanReview {
		return "", false
	}

	switch content.UncertaintyKind {
	case entity.UncertaintyTechnical:
		return content.UncertaintyReason, true
	case entity.UncertaintyAnalytical:
		return "", false
	}

	reason := strings.ToLower(content.UncertaintyReason)
	for _, keyword := range technicalKeywords {
		if strings.Contains(reason, keyword) {
			return content.UncertaintyReason, true
		}
	}
	return "", false
}
