package outbound

import (
	"context"
	"time"

	"github.com/DioGolang/Zoned/internal/domain/entity"
)

// LocationRepository is the user directory: who is where.
type LocationRepository interface {
	GetNearbyUsers(ctx context.Context, origin entity.Position, radiusFeet float64) ([]entity.User, error)
	// UpdateLocation stores a sample observed at observedAt. Samples older than
	// the stored one fail with entity.ErrStaleLocation and change nothing.
	UpdateLocation(ctx context.Context, user entity.User, observedAt time.Time) error
}
