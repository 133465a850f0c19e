package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

const (
	fieldTemperature   = 0.2
	fieldExampleLimit  = 100
	FieldSampleRecords = 5
)

// FieldDetector asks the judge which table columns hold the values a review needs.
type FieldDetector struct {
	MaxTokens int
}

func NewFieldDetector(cfg *config.EnvConfig) *FieldDetector {
	return &FieldDetector{MaxTokens: cfg.Review.DefaultJudgmentTokens}
}

func (d *FieldDetector) Detect(ctx context.Context, records []infra.Record, judge Judge) (entity.FieldMappings, error) {
	if len(records) == 0 {
		return entity.FieldMappings{}, ErrNoSampleRecords
	}

	examples := fieldExamples(records)
	prompt, err := renderPrompt(fieldPrompt, map[string]interface{}{"Examples": examples})
	if err != nil {
		return entity.FieldMappings{}, fmt.Errorf("failed to build field prompt: %w", err)
	}

	answer, err := judge.Invoke(ctx, infra.JudgmentRequest{
		StepName:    "Field Detection",
		Prompt:      prompt,
		MaxTokens:   d.MaxTokens,
		Temperature: fieldTemperature,
	})
	if err != nil {
		return entity.FieldMappings{}, err
	}

	var raw map[string]interface{}
	if err := decodeAnswer(answer, &raw); err != nil {
		return entity.FieldMappings{}, err
	}

	pick := func(key string) string {
		name, ok := raw[key].(string)
		if !ok {
			return ""
		}
		if _, exists := examples[name]; !exists {
			return ""
		}
		return name
	}

	mappings := entity.FieldMappings{
		CodeURL:          pick("code_url"),
		PlayableURL:      pick("playable_url"),
		HackatimeHours:   pick("hackatime_hours"),
		AutoReviewNotes:  pick("auto_review_notes"),
		AutoUserFeedback: pick("auto_user_feedback"),
		AutoReviewTag:    pick("auto_review_tag"),
	}
	return mappings.Normalize(), nil
}

// fieldExamples collects every field name seen in the sample with its first non-empty value.
func fieldExamples(records []infra.Record) map[string]interface{} {
	examples := map[string]interface{}{}
	for _, record := range records {
		names := make([]string, 0, len(record.Fields))
		for name := range record.Fields {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if existing, ok := examples[name]; ok && existing != nil && existing != "" {
				continue
			}
			examples[name] = exampleValue(record.Fields[name])
		}
	}
	return examples
}

func exampleValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if len([]rune(v)) > fieldExampleLimit {
			return truncate(v, fieldExampleLimit) + "..."
		}
		return v
	case []interface{}, map[string]interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return truncate(string(data), fieldExampleLimit)
	default:
		return v
	}
}
