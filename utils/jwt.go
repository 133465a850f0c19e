package utils

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-review-orchestrator/config"
)

var ErrInvalidOwner = errors.New("invalid user_id")

// ExtractToken reads the access token from the cookie first, then from a Bearer header.
func ExtractToken(c *gin.Context) string {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func ParseToken(tokenString string, cfg *config.EnvConfig) (*jwt.Token, error) {
	secret := []byte(cfg.JWT.SecretKey)
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
}

// InjectClaimsToContext stores the reviewer identity. Every job and base is scoped to it.
func InjectClaimsToContext(c *gin.Context, claims jwt.MapClaims) error {
	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return ErrInvalidOwner
	}
	if _, err := uuid.Parse(userIDStr); err != nil {
		return ErrInvalidOwner
	}
	c.Set("user_id", userIDStr)

	permission, _ := claims["permission"].(string)
	c.Set("permission", permission)
	return nil
}

func GetUserIDFromContext(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get("user_id")
	if !exists || raw == nil {
		return uuid.Nil, errors.New("user_id is missing from context")
	}

	switch v := raw.(type) {
	case string:
		parsed, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, ErrInvalidOwner
		}
		return parsed, nil
	case uuid.UUID:
		return v, nil
	default:
		return uuid.Nil, errors.New("invalid user_id type in context")
	}
}
