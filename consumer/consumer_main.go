package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/consumer/worker"
	infraPkg "github.com/tnqbao/gau-review-orchestrator/infra"
	"github.com/tnqbao/gau-review-orchestrator/pipeline"
	"github.com/tnqbao/gau-review-orchestrator/repository"
)

const drainTimeout = 2 * time.Minute

func main() {
	err := godotenv.Load("staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	if infra.RabbitMQ == nil {
		log.Fatalf("Review worker needs RabbitMQ, but REVIEW_DISPATCH_MODE is %q", cfg.EnvConfig.Review.DispatchMode)
	}
	repo := repository.InitRepository(infra.Postgres.DB)

	// Initialize context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if infra.Minio != nil {
		if err := infra.Minio.EnsureAuditBucket(ctx); err != nil {
			infra.Logger.WarningWithContextf(ctx, "[Review Worker] Audit bucket unavailable: %v", err)
		}
	}

	registry := pipeline.NewTokenRegistry()
	orchestrator := pipeline.NewInfraOrchestrator(infra, repo.ReviewJobRepo, registry, cfg.EnvConfig)

	// Cancel requests arrive from the API process
	err = infra.Redis.SubscribeCancel(ctx, func(jobID uint64) {
		if registry.Cancel(jobID) {
			infra.Logger.InfoWithContextf(ctx, "[Review Worker] Cancel signalled for job #%d", jobID)
		}
	})
	if err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to subscribe to cancel requests: %v", err)
		log.Fatalf("Failed to subscribe to cancel requests: %v", err)
	}

	reviewConsumer := worker.NewReviewConsumer(infra.RabbitMQ.Channel, infra.Logger, orchestrator, cfg.EnvConfig.RabbitMQ.Prefetch)
	if err := reviewConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start Review consumer: %v", err)
		log.Fatalf("Failed to start Review consumer: %v", err)
	}

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel()

	drained := make(chan struct{})
	go func() {
		reviewConsumer.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		infra.Logger.WarningWithContextf(context.Background(), "[Review Worker] %d jobs still running after %s", registry.Running(), drainTimeout)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	infra.RabbitMQ.Close()
	_ = infra.Redis.Close()
	if infra.Telemetry != nil {
		_ = infra.Telemetry.Shutdown(shutdownCtx)
	}
	infra.Logger.InfoWithContextf(shutdownCtx, "Consumer exited properly")
	_ = infra.Logger.Shutdown(shutdownCtx)
}
