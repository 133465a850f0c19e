package produce

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ReviewExchange   = "review.exchange"
	ReviewJobQueue   = "review.jobs"
	ReviewRoutingKey = "review.job.start"
)

// ReviewJobMessage only points at the stored job; the worker reloads everything else.
type ReviewJobMessage struct {
	MessageID string `json:"message_id"`
	JobID     uint64 `json:"job_id"`
	OwnerID   string `json:"owner_id"`
	Timestamp int64  `json:"timestamp"`
}

type ReviewProduceService struct {
	channel *amqp.Channel
}

func InitReviewProduceService(channel *amqp.Channel) *ReviewProduceService {
	service := &ReviewProduceService{
		channel: channel,
	}

	err := channel.ExchangeDeclare(
		ReviewExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Review exchange: " + err.Error())
	}

	_, err = channel.QueueDeclare(
		ReviewJobQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		panic("Failed to declare Review job queue: " + err.Error())
	}

	err = channel.QueueBind(
		ReviewJobQueue,
		ReviewRoutingKey,
		ReviewExchange,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to bind Review job queue: " + err.Error())
	}

	return service
}

func (s *ReviewProduceService) PublishReviewJob(ctx context.Context, jobID uint64, ownerID uuid.UUID) error {
	msg := ReviewJobMessage{
		MessageID: uuid.NewString(),
		JobID:     jobID,
		OwnerID:   ownerID.String(),
		Timestamp: time.Now().Unix(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return s.channel.PublishWithContext(
		ctx,
		ReviewExchange,
		ReviewRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.MessageID,
		},
	)
}
