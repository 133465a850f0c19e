package middlewares

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/utils"
)

// SignedMiddleware authenticates record-store automations.
// Header format: Authorization: HMAC <owner_id>:<signature>, plus X-Timestamp.
// The signature covers METHOD\nPATH\nOWNER\nTIMESTAMP\nSHA256(body) keyed with PRIVATE_KEY,
// OWNER being the canonical form of owner_id.
func SignedMiddleware(cfg *config.EnvConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.PrivateKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Signed triggers are disabled"})
			c.Abort()
			return
		}

		value, found := strings.CutPrefix(c.GetHeader("Authorization"), "HMAC ")
		if !found {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Expected: HMAC <owner_id>:<signature>"})
			c.Abort()
			return
		}
		ownerStr, signature, found := strings.Cut(value, ":")
		if !found || signature == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid HMAC authorization format"})
			c.Abort()
			return
		}
		ownerID, err := uuid.Parse(ownerStr)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid owner id"})
			c.Abort()
			return
		}

		timestamp, err := strconv.ParseInt(c.GetHeader("X-Timestamp"), 10, 64)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "X-Timestamp header is required"})
			c.Abort()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
				c.Abort()
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		if err := utils.VerifySignature(cfg.PrivateKey, c.Request.Method, c.Request.URL.Path, ownerID.String(), timestamp, body, signature, time.Now()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
			c.Abort()
			return
		}

		c.Set("user_id", ownerID.String())
		c.Set("auth_method", "hmac")
		c.Next()
	}
}
