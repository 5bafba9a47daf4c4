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
	"github.com/DioGolang/Zoned/internal/infra/database"
	"github.com/DioGolang/Zoned/internal/infra/event"
	"github.com/DioGolang/Zoned/internal/infra/storage"
	"github.com/DioGolang/Zoned/internal/infra/web/handler"
	"github.com/DioGolang/Zoned/pkg/logger"
	"github.com/DioGolang/Zoned/pkg/metrics"
	"github.com/DioGolang/Zoned/pkg/otel"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	queueName   = "zoned.locations.updated"
	handlerName = "location_updated"
)

func main() {
	config, err := configs.LoadConfig(".")
	if err != nil {
		panic(err)
	}

	serviceName := config.ServiceName + "-worker"
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

	rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr()})
	defer rdb.Close()

	conn, err := amqp.Dial(config.AMQPURL)
	if err != nil {
		log.Error(ctx, "Failed to connect to RabbitMQ", logger.WithError(err))
		os.Exit(1)
	}
	defer conn.Close()

	repo := database.NewRedisLocationRepository(rdb, log)
	store := storage.NewRedisIdempotencyStore(rdb, config.ServiceName)

	h := event.NewLocationUpdatedHandler(repo, log)
	h = event.WrapResilientConsumer(m, handlerName, 5*time.Second, event.NewBreaker(handlerName, 30*time.Second), h)
	h = event.WrapExponentialBackoff(log, m, handlerName, 3, 200*time.Millisecond, h)
	h = event.WrapIdempotency(log, store, handlerName, 10*time.Minute, h)

	consumer := event.NewConsumer(conn, log, m)

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Handle("/health", handler.NewHealthHandler(serviceName, "1.0.0",
		handler.WithRedis(rdb),
		handler.WithRabbitMQ(config.AMQPURL),
	))
	srv := &http.Server{Addr: ":" + config.WorkerPort, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Start(gCtx, queueName, event.LocationUpdated, h)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info(ctx, "Worker started", logger.String("queue", queueName))
	if err := g.Wait(); err != nil {
		log.Error(ctx, "Worker stopped with error", logger.WithError(err))
		os.Exit(1)
	}
	log.Info(context.Background(), "Worker stopped")
}
