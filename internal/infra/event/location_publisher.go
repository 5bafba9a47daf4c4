package event

import (
	"context"
	"time"

	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/domain/entity"
	"github.com/DioGolang/Zoned/pkg/events"
)

// LocationPublisher turns own-position pushes into locations.updated events.
type LocationPublisher struct {
	dispatcher events.EventDispatcher
	now        func() time.Time
}

var _ outbound.LocationPublisher = (*LocationPublisher)(nil)

func NewLocationPublisher(d events.EventDispatcher) *LocationPublisher {
	return &LocationPublisher{dispatcher: d, now: time.Now}
}

func (p *LocationPublisher) Publish(ctx context.Context, user entity.User) error {
	return p.dispatcher.Dispatch(ctx, events.New(LocationUpdated, NewLocationUpdatedPayload(user, p.now())))
}

func NewLocationUpdatedPayload(user entity.User, observedAt time.Time) LocationUpdatedPayload {
	return LocationUpdatedPayload{
		UserID:     user.ID(),
		Lat:        user.Position().Latitude(),
		Lng:        user.Position().Longitude(),
		Attributes: user.Attributes(),
		ObservedAt: observedAt.UTC(),
	}
}
