package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/tnqbao/gau-review-orchestrator/infra"
)

// Judge answers a prompt. infra.JudgmentService is the production implementation.
type Judge interface {
	Invoke(ctx context.Context, req infra.JudgmentRequest) (string, error)
}

func decodeAnswer(answer string, dest interface{}) error {
	if err := json.Unmarshal([]byte(infra.ExtractJSONPayload(answer)), dest); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
	}
	return nil
}

func roundScore(v float64) int {
	return int(math.Round(v))
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
