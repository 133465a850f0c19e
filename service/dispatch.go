package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

// JobPublisher puts a job on the work queue.
type JobPublisher interface {
	PublishReviewJob(ctx context.Context, jobID uint64, ownerID uuid.UUID) error
}

// QueueDispatcher sends jobs to the review workers through RabbitMQ.
type QueueDispatcher struct {
	publisher JobPublisher
}

func NewQueueDispatcher(publisher JobPublisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job *entity.ReviewJob) error {
	return d.publisher.PublishReviewJob(ctx, job.ID, job.OwnerID)
}

type JobRunner interface {
	Run(ctx context.Context, jobID uint64) error
}

// LocalDispatcher runs every job on its own goroutine in this process.
type LocalDispatcher struct {
	runner JobRunner
	logger *infra.LoggerClient
	wg     sync.WaitGroup
}

func NewLocalDispatcher(runner JobRunner, logger *infra.LoggerClient) *LocalDispatcher {
	return &LocalDispatcher{runner: runner, logger: logger}
}

// Dispatch returns at once. The job outlives the request that started it.
func (d *LocalDispatcher) Dispatch(ctx context.Context, job *entity.ReviewJob) error {
	runCtx := context.WithoutCancel(ctx)
	jobID := job.ID

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.runner.Run(runCtx, jobID); err != nil {
			d.logger.ErrorWithContextf(runCtx, err, "[Review] Job #%d stopped with error: %v", jobID, err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched job has returned.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}
