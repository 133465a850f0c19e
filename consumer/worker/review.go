package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-review-orchestrator/infra"
	"github.com/tnqbao/gau-review-orchestrator/infra/produce"
)

// JobRunner executes one stored job to its terminal state.
type JobRunner interface {
	Run(ctx context.Context, jobID uint64) error
}

type ReviewConsumer struct {
	channel  *amqp.Channel
	logger   *infra.LoggerClient
	runner   JobRunner
	prefetch int
	wg       sync.WaitGroup
}

func NewReviewConsumer(channel *amqp.Channel, logger *infra.LoggerClient, runner JobRunner, prefetch int) *ReviewConsumer {
	return &ReviewConsumer{
		channel:  channel,
		logger:   logger,
		runner:   runner,
		prefetch: prefetch,
	}
}

// Start consumes review jobs until ctx is done. Up to prefetch jobs run at the same time,
// each on its own goroutine.
func (c *ReviewConsumer) Start(ctx context.Context) error {
	if c.prefetch > 0 {
		if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set review consumer prefetch: %w", err)
		}
	}

	msgs, err := c.channel.Consume(
		produce.ReviewJobQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register review job consumer: %w", err)
	}

	c.logger.InfoWithContextf(ctx, "[Review Worker] Started listening for review jobs on queue: %s (prefetch %d)", produce.ReviewJobQueue, c.prefetch)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.InfoWithContextf(ctx, "[Review Worker] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.WarningWithContextf(ctx, "[Review Worker] Channel closed")
					return
				}
				c.wg.Add(1)
				go func(msg amqp.Delivery) {
					defer c.wg.Done()
					c.handle(context.WithoutCancel(ctx), msg)
				}(msg)
			}
		}
	}()

	return nil
}

// Wait blocks until the jobs already picked up have finished.
func (c *ReviewConsumer) Wait() {
	c.wg.Wait()
}

func (c *ReviewConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	payload, err := decodeReviewJob(msg.Body)
	if err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Review Worker] Dropping message %s: %v", msg.MessageId, err)
		_ = msg.Nack(false, false)
		return
	}

	c.logger.InfoWithContextf(ctx, "[Review Worker] Running job #%d for owner %s", payload.JobID, payload.OwnerID)
	if err := c.runner.Run(ctx, payload.JobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logger.WarningWithContextf(ctx, "[Review Worker] Job #%d no longer exists, dropping message", payload.JobID)
			_ = msg.Nack(false, false)
			return
		}
		c.logger.ErrorWithContextf(ctx, err, "[Review Worker] Job #%d could not run, requeueing: %v", payload.JobID, err)
		_ = msg.Nack(false, true)
		return
	}

	c.logger.InfoWithContextf(ctx, "[Review Worker] Job #%d done", payload.JobID)
	_ = msg.Ack(false)
}

func decodeReviewJob(body []byte) (*produce.ReviewJobMessage, error) {
	var payload produce.ReviewJobMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal review job: %w", err)
	}
	if payload.JobID == 0 {
		return nil, errors.New("review job message without job id")
	}
	return &payload, nil
}
