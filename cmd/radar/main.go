// Command radar runs one radar session against a simulated walk and the
// dummy directory, logging every snapshot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DioGolang/Zoned/configs"
	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/application/usecase/radar"
	"github.com/DioGolang/Zoned/internal/domain/entity"
	"github.com/DioGolang/Zoned/internal/infra/directory"
	"github.com/DioGolang/Zoned/internal/infra/geolocation"
	"github.com/DioGolang/Zoned/pkg/logger"
)

func main() {
	config, err := configs.LoadConfig(".")
	if err != nil {
		panic(err)
	}
	log := logger.NewLogger(config.ServiceName+"-radar", config.IsProd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start, err := entity.NewPosition(config.GeoFallbackLat, config.GeoFallbackLng)
	if err != nil {
		log.Error(ctx, "Invalid fallback position", logger.WithError(err))
		os.Exit(1)
	}

	watch := config.WatchInterval()
	if watch == 0 {
		watch = time.Second
	}
	// ~3.6 ft north per step
	walk := geolocation.NewWalkProvider(start, 0.00001, 0, 30, 0)
	source := geolocation.NewSource(walk, geolocation.WithLogger(log))

	tracker := radar.NewTracker(directory.NewDummyProvider(), radar.TrackerConfig{
		Policy: outbound.FixPolicy{
			HighAccuracy: config.GeoHighAccuracy,
			Timeout:      config.GeoTimeout(),
		},
		InitialRadius: config.DefaultRadiusFeet,
		WatchInterval: watch,
	},
		radar.WithGeolocationSource(source),
		radar.WithTrackerLogger(log),
		radar.WithListener(func(s radar.Snapshot) {
			out := radar.SnapshotFromTracker(s)
			log.Info(ctx, "radar snapshot",
				logger.Any("sequence", out.Sequence),
				logger.String("state", out.State),
				logger.Any("position", out.Position),
				logger.Float64("radius_ft", out.RadiusFeet),
				logger.Int("nearby", len(out.Nearby)),
				logger.Any("users", out.Nearby),
				logger.String("error", out.Error),
			)
		}),
	)

	go sweepRadius(ctx, tracker, 3*time.Second)

	if err := tracker.Run(ctx); err != nil {
		log.Error(ctx, "Radar stopped with error", logger.WithError(err))
		os.Exit(1)
	}
}

// sweepRadius moves the radius like a user dragging the slider, so the dummy
// users drop in and out of range.
func sweepRadius(ctx context.Context, tracker *radar.Tracker, every time.Duration) {
	steps := []float64{entity.DefaultRadiusFeet, 37, entity.MaxRadiusFeet, entity.MinRadiusFeet}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for i := 1; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := tracker.OnRadiusChanged(steps[i%len(steps)]); err != nil {
				return
			}
		}
	}
}
