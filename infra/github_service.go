package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tnqbao/gau-review-orchestrator/config"
)

type GitHubCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

type CommitStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Total     int `json:"total"`
}

type GitHubService struct {
	APIURL        string
	Token         string
	ListTimeout   time.Duration
	DetailTimeout time.Duration
	client        *http.Client
}

func InitGitHubService(cfg *config.EnvConfig) *GitHubService {
	return &GitHubService{
		APIURL:        strings.TrimRight(cfg.ExternalService.GitHubAPIURL, "/"),
		Token:         cfg.ExternalService.GitHubToken,
		ListTimeout:   cfg.Review.VCSListTimeout,
		DetailTimeout: cfg.Review.VCSDetailTimeout,
		client:        &http.Client{},
	}
}

func (s *GitHubService) get(ctx context.Context, path string, timeout time.Duration, dest interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.APIURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call GitHub: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read GitHub response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnavailableForLegalReasons:
		return &StatusError{Service: "github", StatusCode: resp.StatusCode, Body: truncateBody(body), Err: ErrRepositoryUnavailable}
	case resp.StatusCode == http.StatusTooManyRequests || isRateLimited(resp, body):
		return &StatusError{Service: "github", StatusCode: resp.StatusCode, Body: truncateBody(body), Err: ErrVCSRateLimited}
	case resp.StatusCode == http.StatusForbidden:
		return &StatusError{Service: "github", StatusCode: resp.StatusCode, Body: truncateBody(body), Err: ErrRepositoryUnavailable}
	default:
		return &StatusError{Service: "github", StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode GitHub response: %w", err)
	}
	return nil
}

// isRateLimited tells a quota 403 apart from a blocked or private repository.
func isRateLimited(resp *http.Response, body []byte) bool {
	if resp.StatusCode != http.StatusForbidden {
		return false
	}
	if resp.Header.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	return strings.Contains(strings.ToLower(string(body)), "rate limit")
}

// ListCommits returns the most recent commits of owner/repo, newest first.
func (s *GitHubService) ListCommits(ctx context.Context, owner, repo string, perPage int) ([]GitHubCommit, error) {
	path := fmt.Sprintf("/repos/%s/%s/commits", owner, repo)
	if perPage > 0 {
		path += "?per_page=" + strconv.Itoa(perPage)
	}

	var commits []GitHubCommit
	if err := s.get(ctx, path, s.ListTimeout, &commits); err != nil {
		return nil, err
	}
	return commits, nil
}

func (s *GitHubService) GetCommitStats(ctx context.Context, owner, repo, sha string) (*CommitStats, error) {
	var detail struct {
		Stats CommitStats `json:"stats"`
	}
	if err := s.get(ctx, fmt.Sprintf("/repos/%s/%s/commits/%s", owner, repo, sha), s.DetailTimeout, &detail); err != nil {
		return nil, err
	}
	return &detail.Stats, nil
}
