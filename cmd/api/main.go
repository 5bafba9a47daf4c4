package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DioGolang/Zoned/configs"
	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/application/usecase/radar"
	"github.com/DioGolang/Zoned/internal/infra/database"
	"github.com/DioGolang/Zoned/internal/infra/directory"
	"github.com/DioGolang/Zoned/internal/infra/event"
	"github.com/DioGolang/Zoned/internal/infra/web"
	"github.com/DioGolang/Zoned/internal/infra/web/handler"
	"github.com/DioGolang/Zoned/internal/infra/web/middleware"
	"github.com/DioGolang/Zoned/internal/infra/web/ws"
	"github.com/DioGolang/Zoned/pkg/logger"
	"github.com/DioGolang/Zoned/pkg/metrics"
	"github.com/DioGolang/Zoned/pkg/otel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	version = "1.0.0"

	relayBacklogLimit = 10000
)

func main() {
	config, err := configs.LoadConfig(".")
	if err != nil {
		panic(err)
	}

	serviceName := config.ServiceName + "-api"
	log := logger.NewLogger(serviceName, config.IsProd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := otel.InitProvider(ctx, serviceName, config.Env, config.OtelCollector)
	if err != nil {
		log.Error(ctx, "Failed to init tracer", logger.WithError(err))
		os.Exit(1)
	}
	defer shutdownTracer()

	reg := prometheus.NewRegistry()
	m := metrics.NewPrometheusMetrics(reg, serviceName)

	g, gCtx := errgroup.WithContext(ctx)

	var (
		provider   outbound.EntityProvider
		publisher  outbound.LocationPublisher
		healthOpts []handler.HealthOption
	)
	if config.UsesRedis() {
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr()})
		defer rdb.Close()

		repo := database.NewRedisLocationRepository(rdb, log)
		redisProvider := directory.NewRepositoryProvider(repo, config.SearchRadiusFeet)
		if config.IsProd() {
			provider = redisProvider
		} else {
			provider = directory.NewCompositeProvider(redisProvider, directory.NewDummyProvider())
		}
		healthOpts = append(healthOpts, handler.WithRedis(rdb))

		var next outbound.LocationPublisher
		if config.DirectoryMode == configs.DirectoryRedisDirect {
			next = directory.NewRepositoryPublisher(repo)
		} else {
			conn, err := amqp.Dial(config.AMQPURL)
			if err != nil {
				log.Error(ctx, "Failed to connect to RabbitMQ", logger.WithError(err))
				os.Exit(1)
			}
			defer conn.Close()
			ch, err := conn.Channel()
			if err != nil {
				log.Error(ctx, "Failed to open RabbitMQ channel", logger.WithError(err))
				os.Exit(1)
			}
			defer ch.Close()

			next = event.NewLocationPublisher(event.NewDispatcher(ch))
			healthOpts = append(healthOpts, handler.WithRabbitMQ(config.AMQPURL))
		}

		relay := event.NewRelay(next, log, 100*time.Millisecond)
		g.Go(func() error {
			relay.Run(gCtx)
			return nil
		})
		publisher = relay
		healthOpts = append(healthOpts, handler.WithCheck("location-relay", time.Second, relay.HealthCheck(relayBacklogLimit)))
	} else {
		provider = directory.NewDummyProvider()
		publisher = directory.DiscardPublisher{}
	}

	compute := &radar.ComputeNearbyMetricsDecorator{Next: radar.NewComputeNearbyUseCase(), Metrics: m}
	nearby := &radar.DirectoryNearbyMetricsDecorator{Next: radar.NewDirectoryNearbyUseCase(provider), Metrics: m}
	update := &radar.UpdateLocationMetricsDecorator{Next: radar.NewUpdateLocationUseCase(publisher), Metrics: m}

	sessions := ws.NewRadarHandler(provider, ws.SessionConfig{
		DefaultRadius:   config.DefaultRadiusFeet,
		PublishInterval: config.PublishInterval(),
		FetchTimeout:    2 * time.Second,
	}, ws.WithPublisher(publisher), ws.WithLogger(log), ws.WithMetrics(m))

	router := web.NewRouter(web.RouterConfig{
		ServiceName: serviceName,
		Logger:      log,
		Metrics:     m,
		RateLimiter: middleware.NewRateLimiter(gCtx, middleware.RateLimiterConfig{
			RequestsPerSecond: config.RateLimitRPS,
			Burst:             config.RateLimitBurst,
		}),
		Radar:          handler.NewRadarHandler(compute, nearby, log),
		Location:       handler.NewLocationHandler(update, log),
		Session:        sessions,
		Health:         handler.NewHealthHandler(serviceName, version, healthOpts...),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:              ":" + config.WebServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Info(ctx, "Server running", logger.String("port", config.WebServerPort), logger.String("directory", config.DirectoryMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		sessions.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error(ctx, "Server stopped with error", logger.WithError(err))
		os.Exit(1)
	}
	log.Info(context.Background(), "Server stopped")
}
