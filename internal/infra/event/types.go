package event

import (
	"context"
	"errors"
	"time"
)

const (
	Exchange = "amq.direct"

	LocationUpdated = "locations.updated"

	HeaderEventID = "x-event-id"
)

// ErrPoisonMessage marks deliveries that can never succeed. They are dropped
// instead of requeued.
var ErrPoisonMessage = errors.New("poison message")

type MessageHandler func(ctx context.Context, msg []byte, headers map[string]interface{}) error

type LocationUpdatedPayload struct {
	UserID     string            `json:"user_id"`
	Lat        float64           `json:"lat"`
	Lng        float64           `json:"lng"`
	Attributes map[string]string `json:"attributes,omitempty"`
	ObservedAt time.Time         `json:"observed_at"`
}
