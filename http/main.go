package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/http/controller"
	routes "github.com/tnqbao/gau-review-orchestrator/http/route"
	infraPkg "github.com/tnqbao/gau-review-orchestrator/infra"
	"github.com/tnqbao/gau-review-orchestrator/pipeline"
	"github.com/tnqbao/gau-review-orchestrator/repository"
	"github.com/tnqbao/gau-review-orchestrator/service"
)

func main() {
	err := godotenv.Load("staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra.Postgres.DB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := pipeline.NewTokenRegistry()

	var dispatcher service.Dispatcher
	var local *service.LocalDispatcher
	if cfg.EnvConfig.Review.DispatchMode == "local" {
		// Jobs run inside this process
		orchestrator := pipeline.NewInfraOrchestrator(infra, repo.ReviewJobRepo, registry, cfg.EnvConfig)
		local = service.NewLocalDispatcher(orchestrator, infra.Logger)
		dispatcher = local

		if infra.Minio != nil {
			if err := infra.Minio.EnsureAuditBucket(ctx); err != nil {
				infra.Logger.WarningWithContextf(ctx, "[Review API] Audit bucket unavailable: %v", err)
			}
		}
		// Other replicas may receive the cancel request
		if err := infra.Redis.SubscribeCancel(ctx, func(jobID uint64) { registry.Cancel(jobID) }); err != nil {
			log.Fatalf("Failed to subscribe to cancel requests: %v", err)
		}
	} else {
		dispatcher = service.NewQueueDispatcher(infra.Produce.ReviewService)
	}

	svc := service.InitReviewService(infra, repo, dispatcher, registry, cfg.EnvConfig)
	ctrl := controller.NewController(cfg, infra, repo, svc)
	router := routes.SetupRouter(ctrl)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: router,
	}

	go func() {
		log.Printf("HTTP Server started on :8080 (dispatch: %s)", cfg.EnvConfig.Review.DispatchMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		infra.Logger.ErrorWithContextf(shutdownCtx, err, "Server forced to shutdown: %v", err)
	}
	if local != nil {
		local.Wait()
	}

	if infra.RabbitMQ != nil {
		infra.RabbitMQ.Close()
	}
	_ = infra.Redis.Close()
	if infra.Telemetry != nil {
		_ = infra.Telemetry.Shutdown(shutdownCtx)
	}
	infra.Logger.InfoWithContextf(shutdownCtx, "Server exited properly")
	_ = infra.Logger.Shutdown(shutdownCtx)
}
