package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tnqbao/gau-review-orchestrator/config"
)

const authorizationTimeout = 5 * time.Second

// AuthorizationService asks the shared auth service whether an access token is still live.
type AuthorizationService struct {
	AuthorizationServiceURL string
	PrivateKey              string
	client                  *http.Client
}

// InitAuthorizationService returns nil when no auth service is configured; tokens are then
// only checked locally against the JWT secret.
func InitAuthorizationService(cfg *config.EnvConfig) *AuthorizationService {
	if cfg.ExternalService.AuthorizationServiceURL == "" {
		return nil
	}
	if cfg.PrivateKey == "" {
		panic("Private key is not configured")
	}
	return NewAuthorizationService(cfg.ExternalService.AuthorizationServiceURL, cfg.PrivateKey)
}

func NewAuthorizationService(baseURL, privateKey string) *AuthorizationService {
	return &AuthorizationService{
		AuthorizationServiceURL: baseURL,
		PrivateKey:              privateKey,
		client:                  &http.Client{Timeout: authorizationTimeout},
	}
}

func (s *AuthorizationService) CheckAccessToken(ctx context.Context, token string) error {
	target := fmt.Sprintf("%s/api/v2/authorization/token/validate?token=%s", s.AuthorizationServiceURL, url.QueryEscape(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Private-Key", s.PrivateKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Service: "authorization", StatusCode: resp.StatusCode, Body: truncateBody(raw)}
	}
	return nil
}
