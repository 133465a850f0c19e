package infra

import (
	"log"

	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/infra/produce"
)

type Infra struct {
	Redis         *RedisClient
	Authorization *AuthorizationService
	Postgres      *PostgresClient
	Logger        *LoggerClient
	Telemetry     *Telemetry
	RabbitMQ      *RabbitMQClient
	Produce       *produce.Produce
	Minio         *MinioClient
	Judgment      *JudgmentService
	RecordStore   *RecordStoreService
	GitHub        *GitHubService
	WebFetcher    *WebFetcher
	ApprovedProjs *CachedCorpus
}

// InitInfra wires every backend the review service and worker need.
// RabbitMQ is skipped when jobs are dispatched in-process.
func InitInfra(cfg *config.Config) *Infra {
	env := cfg.EnvConfig

	logger := InitLoggerClient(env)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	telemetry := InitTelemetry(env)

	redis := InitRedisClient(env)
	if redis == nil {
		panic("Failed to initialize Redis service")
	}

	postgres := InitPostgresClient(env)
	if postgres == nil {
		panic("Failed to initialize Postgres service")
	}

	var rabbitMQ *RabbitMQClient
	var produceService *produce.Produce
	if env.Review.DispatchMode != "local" {
		rabbitMQ = InitRabbitMQClient(env)
		if rabbitMQ == nil {
			panic("Failed to initialize RabbitMQ service")
		}
		produceService = produce.InitProduce(rabbitMQ.Channel)
	}

	// The audit archive is optional, reviews still run without it
	minio, err := NewMinioClient(env)
	if err != nil {
		log.Printf("Warning: Failed to initialize MinIO audit archive: %v (job snapshots will not be archived)", err)
		minio = nil
	}

	authorization := InitAuthorizationService(env)
	if authorization == nil {
		log.Println("Warning: AUTHORIZATION_SERVICE_URL not set, access tokens are only verified against the JWT secret")
	}

	judgment := InitJudgmentService(env, logger)
	recordStore := InitRecordStoreService(env)
	github := InitGitHubService(env)

	corpus := NewCachedCorpus(
		NewRecordCorpus(recordStore, env.Review.CorpusBaseID, env.Review.CorpusTable),
		redis,
		env.Review.CorpusCacheTTL,
	)

	return &Infra{
		Redis:         redis,
		Authorization: authorization,
		Postgres:      postgres,
		Logger:        logger,
		Telemetry:     telemetry,
		RabbitMQ:      rabbitMQ,
		Produce:       produceService,
		Minio:         minio,
		Judgment:      judgment,
		RecordStore:   recordStore,
		GitHub:        github,
		WebFetcher:    NewWebFetcher(),
		ApprovedProjs: corpus,
	}
}
