package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/DioGolang/Zoned/pkg/logger"
	"github.com/DioGolang/Zoned/pkg/metrics"
	carrier "github.com/DioGolang/Zoned/pkg/otel"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Consumer struct {
	Conn     *amqp.Connection
	Logger   logger.Logger
	Metrics  metrics.Metrics
	Prefetch int
}

func NewConsumer(conn *amqp.Connection, l logger.Logger, m metrics.Metrics) *Consumer {
	return &Consumer{
		Conn:     conn,
		Logger:   l,
		Metrics:  m,
		Prefetch: 10,
	}
}

// Start consumes queueName, bound to routingKey on the direct exchange, until
// ctx is canceled or the broker closes the channel.
func (c *Consumer) Start(ctx context.Context, queueName, routingKey string, handler MessageHandler) error {
	ch, err := c.Conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := c.setupTopology(ch, queueName, routingKey); err != nil {
		return fmt.Errorf("error when configuring topology: %w", err)
	}

	msgs, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	c.Logger.Info(ctx, "[*] Waiting for messages", logger.String("queue", queueName))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			c.handleDelivery(ctx, queueName, d, handler)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, queueName string, d amqp.Delivery, handler MessageHandler) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier.AMQPHeadersCarrier(d.Headers))

	tracer := otel.GetTracerProvider().Tracer("worker-tracer")
	ctx, span := tracer.Start(ctx, "Consume "+d.RoutingKey, trace.WithAttributes(
		attribute.String("queue.name", queueName),
		attribute.String("messaging.message_id", d.MessageId),
	))
	defer span.End()

	c.Logger.Debug(ctx, "Received message from queue", logger.String("queue", queueName))

	err := handler(ctx, d.Body, d.Headers)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.Logger.Error(ctx, "Failed to ack message", logger.WithError(ackErr))
		}
		c.Metrics.IncEventsConsumed(queueName, "success")
	case errors.Is(err, ErrPoisonMessage):
		span.RecordError(err)
		span.SetStatus(codes.Error, "poison message")
		c.Logger.Error(ctx, "Dropping poison message", logger.WithError(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.Logger.Error(ctx, "Failed to nack message", logger.WithError(nackErr))
		}
		c.Metrics.IncEventsConsumed(queueName, "dropped")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.Logger.Warn(ctx, "Handler failed, requeueing message", logger.WithError(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.Logger.Error(ctx, "Failed to nack message", logger.WithError(nackErr))
		}
		c.Metrics.IncEventsConsumed(queueName, "requeued")
	}
}

func (c *Consumer) setupTopology(ch *amqp.Channel, queueName, routingKey string) error {
	if err := ch.Qos(c.Prefetch, 0, false); err != nil {
		return err
	}
	_, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}
	return ch.QueueBind(queueName, routingKey, Exchange, false, nil)
}
