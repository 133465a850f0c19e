package middlewares

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-review-orchestrator/config"
)

// CORSMiddleware admits the origins in ALLOWED_DOMAINS and any subdomain of GLOBAL_DOMAIN.
func CORSMiddleware(cfg *config.EnvConfig) gin.HandlerFunc {
	allowed := make(map[string]bool)
	for _, origin := range strings.Split(cfg.CORS.AllowDomains, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[strings.TrimSuffix(origin, "/")] = true
		}
	}
	global := strings.TrimPrefix(strings.TrimSpace(cfg.CORS.GlobalDomain), ".")

	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if allowed[origin] {
				return true
			}
			return global != "" && matchesDomain(origin, global)
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Timestamp"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func matchesDomain(origin, domain string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == domain || strings.HasSuffix(host, "."+domain)
}
