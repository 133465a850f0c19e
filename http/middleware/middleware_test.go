package middlewares

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/utils"
)

func testConfig() *config.EnvConfig {
	cfg := &config.EnvConfig{}
	cfg.JWT.SecretKey = "jwt-secret"
	cfg.PrivateKey = "shared-key"
	cfg.CORS.AllowDomains = "https://review.example.com, https://admin.example.com/"
	cfg.CORS.GlobalDomain = "gauas.dev"
	return cfg
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

type revokedTokens map[string]bool

func (r revokedTokens) CheckAccessToken(ctx context.Context, token string) error {
	if r[token] {
		return errors.New("revoked")
	}
	return nil
}

func echoOwner(c *gin.Context) {
	c.String(http.StatusOK, c.GetString("user_id"))
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	owner := uuid.New().String()
	valid := signToken(t, cfg.JWT.SecretKey, jwt.MapClaims{"user_id": owner, "exp": time.Now().Add(time.Hour).Unix()})
	revoked := signToken(t, cfg.JWT.SecretKey, jwt.MapClaims{"user_id": owner, "permission": "member"})

	tests := []struct {
		name       string
		checker    TokenChecker
		prepare    func(r *http.Request)
		wantStatus int
	}{
		{"bearer header", nil, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) }, http.StatusOK},
		{"cookie", nil, func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: valid}) }, http.StatusOK},
		{"query", nil, func(r *http.Request) { r.URL.RawQuery = "access_token=" + valid }, http.StatusOK},
		{"missing", nil, func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong secret", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, "other", jwt.MapClaims{"user_id": owner}))
		}, http.StatusUnauthorized},
		{"expired", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, cfg.JWT.SecretKey, jwt.MapClaims{"user_id": owner, "exp": time.Now().Add(-time.Hour).Unix()}))
		}, http.StatusUnauthorized},
		{"user id not a uuid", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, cfg.JWT.SecretKey, jwt.MapClaims{"user_id": "42"}))
		}, http.StatusUnauthorized},
		{"revoked remotely", revokedTokens{revoked: true}, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+revoked) }, http.StatusUnauthorized},
		{"live remotely", revokedTokens{revoked: true}, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) }, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/me", AuthMiddleware(tt.checker, cfg), echoOwner)

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK && w.Body.String() != owner {
				t.Errorf("owner = %q, want %q", w.Body.String(), owner)
			}
		})
	}
}

func TestSignedMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	owner := uuid.New().String()
	body := []byte(`{"base_id":"app1","table_name":"Projects","record_id":"rec1"}`)
	const path = "/api/v1/review/hooks/jobs"
	now := time.Now().Unix()
	good := utils.SignRequest(cfg.PrivateKey, http.MethodPost, path, owner, now, body)
	otherOwner := uuid.New().String()

	tests := []struct {
		name       string
		auth       string
		timestamp  string
		body       []byte
		wantStatus int
	}{
		{"valid", "HMAC " + owner + ":" + good, strconv.FormatInt(now, 10), body, http.StatusOK},
		{"bearer instead", "Bearer " + good, strconv.FormatInt(now, 10), body, http.StatusUnauthorized},
		{"no separator", "HMAC " + owner, strconv.FormatInt(now, 10), body, http.StatusUnauthorized},
		{"owner swapped", "HMAC " + otherOwner + ":" + good, strconv.FormatInt(now, 10), body, http.StatusUnauthorized},
		{"owner not a uuid", "HMAC bob:" + good, strconv.FormatInt(now, 10), body, http.StatusUnauthorized},
		{"missing timestamp", "HMAC " + owner + ":" + good, "", body, http.StatusUnauthorized},
		{"tampered body", "HMAC " + owner + ":" + good, strconv.FormatInt(now, 10), []byte(`{"record_id":"rec2"}`), http.StatusUnauthorized},
		{"replayed", "HMAC " + owner + ":" + good, strconv.FormatInt(now-3600, 10), body, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST(path, SignedMiddleware(cfg), func(c *gin.Context) {
				raw, _ := io.ReadAll(c.Request.Body)
				if !bytes.Equal(raw, tt.body) {
					t.Errorf("handler saw body %q", raw)
				}
				echoOwner(c)
			})

			req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(tt.body))
			req.Header.Set("Authorization", tt.auth)
			if tt.timestamp != "" {
				req.Header.Set("X-Timestamp", tt.timestamp)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK && w.Body.String() != owner {
				t.Errorf("owner = %q", w.Body.String())
			}
		})
	}
}

func TestSignedMiddlewareDisabledWithoutKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.PrivateKey = ""

	r := gin.New()
	r.POST("/hook", SignedMiddleware(cfg), echoOwner)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hook", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(testConfig()))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://review.example.com", true},
		{"https://admin.example.com", true},
		{"https://app.gauas.dev", true},
		{"https://gauas.dev", true},
		{"https://evilgauas.dev", false},
		{"https://other.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("Access-Control-Allow-Origin") == tt.origin
			if got != tt.allowed {
				t.Errorf("allowed = %t, want %t (status %d)", got, tt.allowed, w.Code)
			}
		})
	}
}
