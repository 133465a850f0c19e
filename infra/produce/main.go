package produce

import amqp "github.com/rabbitmq/amqp091-go"

type Produce struct {
	ReviewService *ReviewProduceService
}

func InitProduce(channel *amqp.Channel) *Produce {
	reviewService := InitReviewProduceService(channel)
	if reviewService == nil {
		panic("Failed to initialize Review produce service")
	}

	return &Produce{
		ReviewService: reviewService,
	}
}
