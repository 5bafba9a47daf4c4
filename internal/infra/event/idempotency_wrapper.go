package event

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/DioGolang/Zoned/pkg/logger"
)

type IdempotencyStore interface {
	// Claim returns false when the key is already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// WrapIdempotency drops deliveries whose event id was already handled. The
// body hash stands in for a missing x-event-id header. The store being down
// fails the delivery so it gets requeued.
func WrapIdempotency(
	log logger.Logger,
	store IdempotencyStore,
	handlerName string,
	ttl time.Duration,
	next MessageHandler,
) MessageHandler {

	return func(ctx context.Context, msg []byte, headers map[string]interface{}) error {
		key := fmt.Sprintf("dedup:%s:%s", handlerName, eventID(msg, headers))

		claimed, err := store.Claim(ctx, key, ttl)
		if err != nil {
			log.Error(ctx, "Idempotency store unavailable", logger.WithError(err))
			return fmt.Errorf("idempotency store unavailable: %w", err)
		}

		if !claimed {
			log.Info(ctx, "Duplicate event dropped",
				logger.String("handler", handlerName),
				logger.String("key", key),
			)
			return nil
		}

		err = next(ctx, msg, headers)
		if err != nil {
			log.Warn(ctx, "Handler failed, releasing idempotency key",
				logger.String("key", key),
				logger.WithError(err),
			)
			if relErr := store.Release(ctx, key); relErr != nil {
				log.Error(ctx, "Failed to release idempotency key",
					logger.String("key", key),
					logger.WithError(relErr),
				)
			}
		}

		return err
	}
}

func eventID(msg []byte, headers map[string]interface{}) string {
	if v, ok := headers[HeaderEventID]; ok {
		if id := fmt.Sprintf("%v", v); id != "" {
			return id
		}
	}
	return fmt.Sprintf("hash:%x", sha256.Sum256(msg))
}
