package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DioGolang/Zoned/internal/domain/entity"
	"github.com/DioGolang/Zoned/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	usersGeoKey        = "zoned:users:geo"
	userAttrsPrefix    = "zoned:users:attrs:"
	userObservedPrefix = "zoned:users:observed:"

	defaultSearchCount = 200
	maxUpdateAttempts  = 3
)

// RedisLocationRepository keeps user positions in a GEO set and their
// attributes in one hash per user.
type RedisLocationRepository struct {
	client *redis.Client
	logger logger.Logger
	count  int
}

func NewRedisLocationRepository(client *redis.Client, log logger.Logger) *RedisLocationRepository {
	return &RedisLocationRepository{client: client, logger: log, count: defaultSearchCount}
}

func attrsKey(userID string) string {
	return userAttrsPrefix + userID
}

func observedKey(userID string) string {
	return userObservedPrefix + userID
}

// GetNearbyUsers returns the users inside the square of side 2*radiusFeet
// centered on origin, closest first.
func (r *RedisLocationRepository) GetNearbyUsers(ctx context.Context, origin entity.Position, radiusFeet float64) ([]entity.User, error) {
	r.logger.Debug(ctx, "Redis GeoSearch query",
		logger.Float64("lat", origin.Latitude()),
		logger.Float64("lng", origin.Longitude()),
		logger.Float64("radius_ft", radiusFeet),
	)
	if radiusFeet <= 0 {
		return []entity.User{}, nil
	}

	results, err := r.client.GeoSearchLocation(ctx, usersGeoKey,
		&redis.GeoSearchLocationQuery{
			GeoSearchQuery: redis.GeoSearchQuery{
				Latitude:  origin.Latitude(),
				Longitude: origin.Longitude(),
				BoxWidth:  2 * radiusFeet,
				BoxHeight: 2 * radiusFeet,
				BoxUnit:   "ft",
				Sort:      "ASC",
				Count:     r.count,
			},
			WithCoord: true,
		},
	).Result()
	if err != nil {
		r.logger.Error(ctx, "Redis command failed", logger.WithError(err))
		return nil, fmt.Errorf("redis geo search error: %w", err)
	}
	if len(results) == 0 {
		return []entity.User{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(results))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, res := range results {
			cmds[i] = pipe.HGetAll(ctx, attrsKey(res.Name))
		}
		return nil
	})
	if err != nil {
		r.logger.Error(ctx, "Redis attributes pipeline failed", logger.WithError(err))
		return nil, fmt.Errorf("redis attributes error: %w", err)
	}

	attrs := make([]map[string]string, len(cmds))
	for i, cmd := range cmds {
		attrs[i] = cmd.Val()
	}
	return r.toUsers(ctx, results, attrs), nil
}

// toUsers skips members whose stored coordinates no longer validate.
func (r *RedisLocationRepository) toUsers(ctx context.Context, results []redis.GeoLocation, attrs []map[string]string) []entity.User {
	users := make([]entity.User, 0, len(results))
	for i, res := range results {
		pos, err := entity.NewPosition(res.Latitude, res.Longitude)
		if err != nil {
			r.logger.Warn(ctx, "skipping directory member with invalid coordinates",
				logger.String("user_id", res.Name),
				logger.WithError(err),
			)
			continue
		}
		var a map[string]string
		if i < len(attrs) {
			a = attrs[i]
		}
		u, err := entity.NewUser(res.Name, pos, a)
		if err != nil {
			continue
		}
		users = append(users, u)
	}
	return users
}

// UpdateLocation stores the position, replaces the attributes and records
// observedAt in one MULTI. The per-user stamp key is WATCHed so that a
// concurrent writer forces a re-check instead of interleaving.
func (r *RedisLocationRepository) UpdateLocation(ctx context.Context, user entity.User, observedAt time.Time) error {
	pos := user.Position()
	r.logger.Debug(ctx, "Redis GeoAdd",
		logger.String("user_id", user.ID()),
		logger.Float64("lat", pos.Latitude()),
		logger.Float64("lng", pos.Longitude()),
	)

	stamp := observedAt.UnixMilli()
	stampKey := observedKey(user.ID())
	attrs := user.Attributes()

	apply := func(tx *redis.Tx) error {
		last, err := tx.Get(ctx, stampKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil && last > stamp {
			return entity.ErrStaleLocation
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.GeoAdd(ctx, usersGeoKey, &redis.GeoLocation{
				Name:      user.ID(),
				Longitude: pos.Longitude(),
				Latitude:  pos.Latitude(),
			})
			pipe.Del(ctx, attrsKey(user.ID()))
			if len(attrs) > 0 {
				values := make(map[string]interface{}, len(attrs))
				for k, v := range attrs {
					values[k] = v
				}
				pipe.HSet(ctx, attrsKey(user.ID()), values)
			}
			pipe.Set(ctx, stampKey, stamp, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, apply, stampKey)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, entity.ErrStaleLocation):
			return err
		default:
			r.logger.Error(ctx, "Redis GeoAdd failed", logger.WithError(err))
			return err
		}
	}
	r.logger.Warn(ctx, "Redis location update kept conflicting",
		logger.String("user_id", user.ID()),
		logger.Int("attempts", maxUpdateAttempts),
	)
	return fmt.Errorf("update location %s: %w", user.ID(), redis.TxFailedErr)
}
