package outbound

import (
	"context"
	"time"

	"github.com/DioGolang/Zoned/internal/domain/entity"
)

type FixPolicy struct {
	HighAccuracy bool
	// Zero means no timeout.
	Timeout time.Duration
}

// GeolocationSource resolves the device position. It blocks until a fix, a
// failure (entity.ErrLocationUnavailable, entity.ErrPermissionDenied,
// entity.ErrFixTimeout) or the cancellation of ctx.
type GeolocationSource interface {
	GetCurrentPosition(ctx context.Context, policy FixPolicy) (entity.Position, error)
}
