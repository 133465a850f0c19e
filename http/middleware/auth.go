package middlewares

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/utils"
)

// TokenChecker confirms with the auth service that a token has not been revoked.
type TokenChecker interface {
	CheckAccessToken(ctx context.Context, token string) error
}

// AuthMiddleware accepts a JWT from the access_token cookie, a Bearer header or the
// access_token query parameter. checker may be nil, in which case only the signature is checked.
func AuthMiddleware(checker TokenChecker, cfg *config.EnvConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := utils.ExtractToken(c)
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token is required"})
			c.Abort()
			return
		}

		if checker != nil {
			if err := checker.CheckAccessToken(c.Request.Context(), token); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				c.Abort()
				return
			}
		}

		parsedToken, err := utils.ParseToken(token, cfg)
		if err != nil || !parsedToken.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		claims, ok := parsedToken.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}
		if err := utils.InjectClaimsToContext(c, claims); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid claims"})
			c.Abort()
			return
		}

		c.Next()
	}
}
