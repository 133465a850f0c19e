package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type EnvConfig struct {
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
	}
	JWT struct {
		SecretKey string
		Algorithm string
		Expire    int
	}
	CORS struct {
		AllowDomains string
		GlobalDomain string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
		Prefetch int
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
		AuditBucket  string
		UseSSL       bool
	}
	ExternalService struct {
		AuthorizationServiceURL string
		JudgmentServiceURL      string
		JudgmentServiceKey      string
		JudgmentModel           string
		RecordStoreURL          string
		RecordStoreToken        string
		GitHubAPIURL            string
		GitHubToken             string
	}
	Review struct {
		JudgmentMaxAttempts   int
		JudgmentRetryDelay    time.Duration
		JudgmentTimeout       time.Duration
		FetchAttempts         int
		FetchRetryDelay       time.Duration
		FetchTimeout          time.Duration
		CrawlPageLimit        int
		CrawlTimeout          time.Duration
		CommitWindow          int
		VCSAttempts           int
		VCSRetryDelay         time.Duration
		VCSListTimeout        time.Duration
		VCSDetailTimeout      time.Duration
		WriteBackTimeout      time.Duration
		BulkLimit             int
		HistoryLimit          int
		DispatchMode          string // "queue" or "local"
		CorpusBaseID          string
		CorpusTable           string
		CorpusCacheTTL        time.Duration
		SupportedVCSHost      string
		DefaultJudgmentTokens int
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}
	PrivateKey string

	Environment struct {
		Mode  string
		Group string
	}
	DomainName string
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = os.Getenv("PGPOOL_PORT")
	if config.Postgres.Port == "" {
		config.Postgres.Port = "5432"
	}

	// JWT
	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")
	config.JWT.Algorithm = os.Getenv("JWT_ALGORITHM")

	if val := os.Getenv("JWT_EXPIRE"); val != "" {
		fmt.Sscanf(val, "%d", &config.JWT.Expire)
	} else {
		config.JWT.Expire = 3600 * 24 * 7
	}

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")
	config.CORS.GlobalDomain = os.Getenv("GLOBAL_DOMAIN")

	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = os.Getenv("REDIS_HOST")
	if config.Redis.RedisHost == "" {
		config.Redis.RedisHost = "localhost"
	}
	config.Redis.RedisPort = os.Getenv("REDIS_PORT")
	if config.Redis.RedisPort == "" {
		config.Redis.RedisPort = "6379"
	}

	// RabbitMQ
	config.RabbitMQ.Host = os.Getenv("RABBITMQ_HOST")
	if config.RabbitMQ.Host == "" {
		config.RabbitMQ.Host = "localhost"
	}
	config.RabbitMQ.Port = os.Getenv("RABBITMQ_PORT")
	if config.RabbitMQ.Port == "" {
		config.RabbitMQ.Port = "5672"
	}
	config.RabbitMQ.Username = os.Getenv("RABBITMQ_USER")
	if config.RabbitMQ.Username == "" {
		config.RabbitMQ.Username = "guest"
	}
	config.RabbitMQ.Password = os.Getenv("RABBITMQ_PASSWORD")
	if config.RabbitMQ.Password == "" {
		config.RabbitMQ.Password = "guest"
	}
	config.RabbitMQ.Prefetch = intFromEnv("RABBITMQ_PREFETCH", 20)

	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")
	config.Minio.AuditBucket = os.Getenv("MINIO_AUDIT_BUCKET")
	if config.Minio.AuditBucket == "" {
		config.Minio.AuditBucket = "review-audit"
	}
	config.Minio.UseSSL = os.Getenv("MINIO_USE_SSL") == "true"

	config.PrivateKey = os.Getenv("PRIVATE_KEY")

	config.ExternalService.AuthorizationServiceURL = os.Getenv("AUTHORIZATION_SERVICE_URL")
	if config.ExternalService.AuthorizationServiceURL == "" {
		config.ExternalService.AuthorizationServiceURL = "http://localhost:8080"
	}
	config.ExternalService.JudgmentServiceURL = os.Getenv("JUDGMENT_SERVICE_URL")
	if config.ExternalService.JudgmentServiceURL == "" {
		config.ExternalService.JudgmentServiceURL = "https://api.shuttleai.app/v1/chat/completions"
	}
	config.ExternalService.JudgmentServiceKey = os.Getenv("JUDGMENT_SERVICE_KEY")
	config.ExternalService.JudgmentModel = os.Getenv("JUDGMENT_MODEL")
	if config.ExternalService.JudgmentModel == "" {
		config.ExternalService.JudgmentModel = "anthropic/claude-sonnet-4-20250514"
	}
	config.ExternalService.RecordStoreURL = os.Getenv("RECORD_STORE_URL")
	if config.ExternalService.RecordStoreURL == "" {
		config.ExternalService.RecordStoreURL = "https://api.airtable.com/v0"
	}
	config.ExternalService.RecordStoreToken = os.Getenv("RECORD_STORE_TOKEN")
	config.ExternalService.GitHubAPIURL = os.Getenv("GITHUB_API_URL")
	if config.ExternalService.GitHubAPIURL == "" {
		config.ExternalService.GitHubAPIURL = "https://api.github.com"
	}
	config.ExternalService.GitHubToken = os.Getenv("GITHUB_TOKEN")

	// Review pipeline tunables
	config.Review.JudgmentMaxAttempts = intFromEnv("REVIEW_JUDGMENT_MAX_ATTEMPTS", 30)
	config.Review.JudgmentRetryDelay = durationFromEnv("REVIEW_JUDGMENT_RETRY_DELAY", 30*time.Second)
	config.Review.JudgmentTimeout = durationFromEnv("REVIEW_JUDGMENT_TIMEOUT", 90*time.Second)
	config.Review.DefaultJudgmentTokens = intFromEnv("REVIEW_JUDGMENT_MAX_TOKENS", 8000)
	config.Review.FetchAttempts = intFromEnv("REVIEW_FETCH_ATTEMPTS", 3)
	config.Review.FetchRetryDelay = durationFromEnv("REVIEW_FETCH_RETRY_DELAY", 5*time.Second)
	config.Review.FetchTimeout = durationFromEnv("REVIEW_FETCH_TIMEOUT", 10*time.Second)
	config.Review.CrawlPageLimit = intFromEnv("REVIEW_CRAWL_PAGE_LIMIT", 10)
	config.Review.CrawlTimeout = durationFromEnv("REVIEW_CRAWL_TIMEOUT", 3*time.Second)
	config.Review.CommitWindow = intFromEnv("REVIEW_COMMIT_WINDOW", 30)
	config.Review.VCSAttempts = intFromEnv("REVIEW_VCS_ATTEMPTS", 3)
	config.Review.VCSRetryDelay = durationFromEnv("REVIEW_VCS_RETRY_DELAY", 5*time.Second)
	config.Review.VCSListTimeout = durationFromEnv("REVIEW_VCS_LIST_TIMEOUT", 8*time.Second)
	config.Review.VCSDetailTimeout = durationFromEnv("REVIEW_VCS_DETAIL_TIMEOUT", 5*time.Second)
	config.Review.WriteBackTimeout = durationFromEnv("REVIEW_WRITE_BACK_TIMEOUT", 15*time.Second)
	config.Review.BulkLimit = intFromEnv("REVIEW_BULK_LIMIT", 100)
	config.Review.HistoryLimit = intFromEnv("REVIEW_HISTORY_LIMIT", 100)

	config.Review.DispatchMode = os.Getenv("REVIEW_DISPATCH_MODE")
	if config.Review.DispatchMode == "" {
		config.Review.DispatchMode = "queue"
	}
	config.Review.CorpusBaseID = os.Getenv("REVIEW_CORPUS_BASE_ID")
	config.Review.CorpusTable = os.Getenv("REVIEW_CORPUS_TABLE")
	if config.Review.CorpusTable == "" {
		config.Review.CorpusTable = "Approved Projects"
	}
	config.Review.CorpusCacheTTL = durationFromEnv("REVIEW_CORPUS_CACHE_TTL", 10*time.Minute)
	config.Review.SupportedVCSHost = os.Getenv("REVIEW_SUPPORTED_VCS_HOST")
	if config.Review.SupportedVCSHost == "" {
		config.Review.SupportedVCSHost = "github.com"
	}

	// Grafana/OpenTelemetry
	grafanaEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	// Remove protocol for OpenTelemetry client to avoid duplicate protocols
	if strings.HasPrefix(grafanaEndpoint, "https://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "https://")
	} else if strings.HasPrefix(grafanaEndpoint, "http://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "http://")
	} else {
		config.Grafana.OTLPEndpoint = grafanaEndpoint
	}
	config.Grafana.ServiceName = os.Getenv("SERVICE_NAME")
	if config.Grafana.ServiceName == "" {
		config.Grafana.ServiceName = "gau-review-orchestrator"
	}

	config.Environment.Mode = os.Getenv("DEPLOY_ENV")
	if config.Environment.Mode == "" {
		config.Environment.Mode = "development"
	}

	config.Environment.Group = os.Getenv("GROUP_NAME")
	if config.Environment.Group == "" {
		config.Environment.Group = "local"
	}

	config.DomainName = os.Getenv("DOMAIN_NAME")
	if config.DomainName == "" {
		config.DomainName = "localhost:8080"
	}

	return &config
}

func intFromEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// durationFromEnv accepts Go durations ("30s") or plain seconds ("30").
func durationFromEnv(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
