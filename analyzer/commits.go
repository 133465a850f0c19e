package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

const (
	commitTemperature = 0.3
	// RateLimitedNote marks commit signals substituted because the host refused to answer.
	RateLimitedNote = "Rate limited - data unavailable"
)

type CommitSource interface {
	ListCommits(ctx context.Context, owner, repo string, perPage int) ([]infra.GitHubCommit, error)
	GetCommitStats(ctx context.Context, owner, repo, sha string) (*infra.CommitStats, error)
}

// CommitAnalyzer inspects the recent history of a repository and asks the judge
// how well it matches the claimed effort.
type CommitAnalyzer struct {
	source     CommitSource
	Attempts   int
	RetryDelay time.Duration
	Window     int
	MaxTokens  int
}

func NewCommitAnalyzer(source CommitSource, cfg *config.EnvConfig) *CommitAnalyzer {
	return &CommitAnalyzer{
		source:     source,
		Attempts:   cfg.Review.VCSAttempts,
		RetryDelay: cfg.Review.VCSRetryDelay,
		Window:     cfg.Review.CommitWindow,
		MaxTokens:  cfg.Review.DefaultJudgmentTokens,
	}
}

type commitRecord struct {
	Message      string `json:"message"`
	Date         string `json:"date"`
	Author       string `json:"author"`
	Additions    int    `json:"additions,omitempty"`
	Deletions    int    `json:"deletions,omitempty"`
	TotalChanges int    `json:"total_changes,omitempty"`
}

type commitAnswer struct {
	CommitsMatchHours     bool     `json:"commits_match_hours"`
	CommitPattern         string   `json:"commit_pattern"`
	CommitQualityScore    float64  `json:"commit_quality_score"`
	CodeVolumeAppropriate bool     `json:"code_volume_appropriate"`
	AIInvolvement         string   `json:"ai_involvement"`
	EstimatedActualHours  float64  `json:"estimated_actual_hours"`
	RedFlags              []string `json:"red_flags"`
	Assessment            string   `json:"assessment"`
	NeedsHumanReview      bool     `json:"needs_human_review"`
	UncertaintyReason     string   `json:"uncertainty_reason"`
}

// RateLimitedCommitSignals is the neutral result used when history is unavailable.
// It assumes nothing: hours match and no AI involvement.
func RateLimitedCommitSignals(claimedHours float64) *entity.CommitSignals {
	return &entity.CommitSignals{
		CommitsMatchHours:     true,
		CommitPattern:         "normal",
		CommitQualityScore:    7,
		CodeVolumeAppropriate: true,
		AIInvolvement:         entity.AIInvolvementNone,
		EstimatedActualHours:  claimedHours,
		RedFlags:              []string{},
		Assessment:            "GitHub API rate limit exceeded - commit analysis skipped. Will rely on project testing for review.",
		Metadata: &entity.CommitMetadata{
			TotalAuthors: 1,
			Note:         RateLimitedNote,
		},
	}
}

// FailedCommitSignals is the negative placeholder used when the analysis could not finish.
func FailedCommitSignals(err error) *entity.CommitSignals {
	return &entity.CommitSignals{
		CommitsMatchHours: false,
		CommitPattern:     "error",
		Assessment:        fmt.Sprintf("Error: %v", err),
	}
}

func (a *CommitAnalyzer) Analyze(ctx context.Context, repoURL string, claimedHours float64, judge Judge) (*entity.CommitSignals, error) {
	owner, repo, err := SplitRepository(repoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", infra.ErrRepositoryUnavailable, err)
	}

	commits, err := a.listWithRetry(ctx, owner, repo)
	if err != nil {
		if errors.Is(err, infra.ErrVCSRateLimited) {
			return RateLimitedCommitSignals(claimedHours), nil
		}
		return nil, err
	}

	if a.Window > 0 && len(commits) > a.Window {
		commits = commits[:a.Window]
	}
	if len(commits) == 0 {
		return nil, ErrNoCommits
	}

	records := make([]commitRecord, 0, len(commits))
	authorSet := map[string]struct{}{}
	var earliest, latest time.Time
	var additions, deletions int

	for i, c := range commits {
		author := c.Commit.Author.Name
		date := c.Commit.Author.Date
		authorSet[author] = struct{}{}
		if i == 0 || date.Before(earliest) {
			earliest = date
		}
		if i == 0 || date.After(latest) {
			latest = date
		}

		record := commitRecord{
			Message: c.Commit.Message,
			Date:    date.UTC().Format(time.RFC3339),
			Author:  author,
		}
		if stats, err := a.source.GetCommitStats(ctx, owner, repo, c.SHA); err == nil && stats != nil {
			record.Additions = stats.Additions
			record.Deletions = stats.Deletions
			record.TotalChanges = stats.Total
			additions += stats.Additions
			deletions += stats.Deletions
		}
		records = append(records, record)
	}

	authors := make([]string, 0, len(authorSet))
	for name := range authorSet {
		authors = append(authors, name)
	}
	sort.Strings(authors)

	metadata := &entity.CommitMetadata{
		TotalCommits:   len(records),
		TimeSpanDays:   int(latest.Sub(earliest).Hours() / 24),
		TotalAdditions: additions,
		TotalDeletions: deletions,
		TotalAuthors:   len(authors),
	}

	prompt, err := renderPrompt(commitPrompt, map[string]interface{}{
		"TotalCommits": metadata.TotalCommits,
		"TimeSpanDays": metadata.TimeSpanDays,
		"Additions":    additions,
		"Deletions":    deletions,
		"Authors":      authors,
		"ClaimedHours": claimedHours,
		"Commits":      records,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build commit prompt: %w", err)
	}

	answer, err := judge.Invoke(ctx, infra.JudgmentRequest{
		StepName:    "Commit Review",
		Prompt:      prompt,
		MaxTokens:   a.MaxTokens,
		Temperature: commitTemperature,
	})
	if err != nil {
		return nil, err
	}

	var decoded commitAnswer
	if err := decodeAnswer(answer, &decoded); err != nil {
		return nil, err
	}

	signals := &entity.CommitSignals{
		CommitsMatchHours:     decoded.CommitsMatchHours,
		CommitPattern:         decoded.CommitPattern,
		CommitQualityScore:    roundScore(decoded.CommitQualityScore),
		CodeVolumeAppropriate: decoded.CodeVolumeAppropriate,
		AIInvolvement:         normalizeAIInvolvement(decoded.AIInvolvement),
		EstimatedActualHours:  decoded.EstimatedActualHours,
		RedFlags:              decoded.RedFlags,
		Assessment:            decoded.Assessment,
		NeedsHumanReview:      decoded.NeedsHumanReview,
		UncertaintyReason:     decoded.UncertaintyReason,
		Metadata:              metadata,
	}
	signals.ClampScores()
	return signals, nil
}

// listWithRetry retries transport failures; any HTTP status answer is final.
func (a *CommitAnalyzer) listWithRetry(ctx context.Context, owner, repo string) ([]infra.GitHubCommit, error) {
	attempts := a.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		commits, err := a.source.ListCommits(ctx, owner, repo, a.Window)
		if err == nil {
			return commits, nil
		}

		var statusErr *infra.StatusError
		if errors.As(err, &statusErr) {
			return nil, err
		}
		lastErr = err

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.RetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("%w: unable to access GitHub repository after %d attempts, the repository may be private, deleted, or GitHub API is down: %v",
		ErrTargetUnreachable, attempts, lastErr)
}

func normalizeAIInvolvement(level string) string {
	return strings.ToLower(strings.TrimSpace(level))
}
