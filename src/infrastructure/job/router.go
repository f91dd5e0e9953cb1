package job

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// RetryConfig controls redelivery of failed jobs inside the worker.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
}

var DefaultRetry = RetryConfig{MaxRetries: 3, InitialInterval: time.Second}

// NewAMQPPublisher publishes to durable AMQP queues.
func NewAMQPPublisher(url string, logger watermill.LoggerAdapter) (*amqp.Publisher, error) {
	return amqp.NewPublisher(amqp.NewDurableQueueConfig(url), logger)
}

// NewAMQPSubscriber consumes durable AMQP queues; failed messages are not requeued after retries.
func NewAMQPSubscriber(url string, logger watermill.LoggerAdapter) (*amqp.Subscriber, error) {
	cfg := amqp.NewDurableQueueConfig(url)
	cfg.Consume.NoRequeueOnNack = true
	return amqp.NewSubscriber(cfg, logger)
}

// NewRouter builds the worker router that feeds messages of the service topic to ProcessJobMessage.
func NewRouter(logger watermill.LoggerAdapter, subscriber message.Subscriber, svc *JobService, retry RetryConfig) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, err
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:      retry.MaxRetries,
			InitialInterval: retry.InitialInterval,
			Logger:          logger,
		}.Middleware,
	)

	router.AddNoPublisherHandler(
		"job_processor",
		svc.Topic(),
		subscriber,
		svc.ProcessJobMessage,
	)
	return router, nil
}
