package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DioGolang/Zoned/pkg/events"
	carrier "github.com/DioGolang/Zoned/pkg/otel"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

// ChannelPublisher is the part of *amqp.Channel the dispatcher needs.
type ChannelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Dispatcher struct {
	channel  ChannelPublisher
	exchange string
}

var _ events.EventDispatcher = (*Dispatcher)(nil)

func NewDispatcher(ch ChannelPublisher) *Dispatcher {
	return &Dispatcher{channel: ch, exchange: Exchange}
}

// Dispatch publishes the event payload as JSON, routed by the event name.
func (ed *Dispatcher) Dispatch(ctx context.Context, event events.Event) error {
	headers := make(amqp.Table)
	otel.GetTextMapPropagator().Inject(ctx, carrier.AMQPHeadersCarrier(headers))
	headers[HeaderEventID] = event.GetID()

	payload, err := json.Marshal(event.GetPayload())
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event.GetName(), err)
	}

	return ed.channel.PublishWithContext(
		ctx,
		ed.exchange,
		event.GetName(),
		false,
		false,
		amqp.Publishing{
			Headers:      headers,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.GetID(),
			Timestamp:    time.Now(),
			Body:         payload,
		})
}
