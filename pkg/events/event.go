package events

import (
	"time"

	"github.com/google/uuid"
)

// Base is the default Event implementation; each instance gets a fresh id,
// which the broker side uses as the idempotency key.
type Base struct {
	id       string
	name     string
	dateTime time.Time
	payload  interface{}
}

func New(name string, payload interface{}) *Base {
	return &Base{
		id:       uuid.NewString(),
		name:     name,
		dateTime: time.Now().UTC(),
		payload:  payload,
	}
}

func (e *Base) GetID() string                  { return e.id }
func (e *Base) GetName() string                { return e.name }
func (e *Base) GetDateTime() time.Time         { return e.dateTime }
func (e *Base) GetPayload() interface{}        { return e.payload }
func (e *Base) SetPayload(payload interface{}) { e.payload = payload }
