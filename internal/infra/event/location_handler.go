package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/domain/entity"
	"github.com/DioGolang/Zoned/pkg/logger"
)

// NewLocationUpdatedHandler applies locations.updated events to the
// directory. Undecodable or invalid payloads are poison. Samples older than
// the stored one are acknowledged and dropped; a payload without observed_at
// counts as observed on arrival.
func NewLocationUpdatedHandler(repo outbound.LocationRepository, log logger.Logger) MessageHandler {
	return func(ctx context.Context, msg []byte, _ map[string]interface{}) error {
		var payload LocationUpdatedPayload
		if err := json.Unmarshal(msg, &payload); err != nil {
			return fmt.Errorf("%w: decode: %v", ErrPoisonMessage, err)
		}

		pos, err := entity.NewPosition(payload.Lat, payload.Lng)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPoisonMessage, err)
		}
		user, err := entity.NewUser(payload.UserID, pos, payload.Attributes)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPoisonMessage, err)
		}

		observedAt := payload.ObservedAt
		if observedAt.IsZero() {
			observedAt = time.Now()
		}
		err = repo.UpdateLocation(ctx, user, observedAt)
		if errors.Is(err, entity.ErrStaleLocation) {
			log.Debug(ctx, "Stale location dropped",
				logger.String("user_id", user.ID()),
				logger.String("observed_at", observedAt.UTC().Format(time.RFC3339Nano)),
			)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to update location: %w", err)
		}
		log.Debug(ctx, "Location applied",
			logger.String("user_id", user.ID()),
			logger.Float64("lat", pos.Latitude()),
			logger.Float64("lng", pos.Longitude()),
		)
		return nil
	}
}
