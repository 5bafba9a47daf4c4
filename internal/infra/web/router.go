package web

import (
	"net/http"

	"github.com/DioGolang/Zoned/internal/infra/web/handler"
	mw "github.com/DioGolang/Zoned/internal/infra/web/middleware"
	"github.com/DioGolang/Zoned/pkg/logger"
	"github.com/DioGolang/Zoned/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
)

type RouterConfig struct {
	ServiceName string
	Logger      logger.Logger
	Metrics     metrics.Metrics
	RateLimiter *mw.IPRateLimiter

	Radar    *handler.Radar
	Location *handler.Location
	Session  http.Handler
	Health   http.Handler
	// Exposition handler for /metrics; nil leaves the route out.
	MetricsHandler http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(otelchi.Middleware(cfg.ServiceName, otelchi.WithChiRoutes(r)))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(cfg.Logger))
	r.Use(mw.MetricsWrapper(cfg.Metrics))
	r.Use(middleware.Recoverer)

	if cfg.Health != nil {
		r.Handle("/health", cfg.Health)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Handler(cfg.Logger))
		}
		r.Post("/radar/nearby", cfg.Radar.Nearby)
		r.Get("/radar/directory", cfg.Radar.Directory)
		r.Put("/locations/{userID}", cfg.Location.Update)
	})

	if cfg.Session != nil {
		r.Get("/ws/radar", cfg.Session.ServeHTTP)
	}

	return r
}
