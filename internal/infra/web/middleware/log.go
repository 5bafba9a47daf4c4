package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/DioGolang/Zoned/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs one line per request. WebSocket upgrades are logged when
// the session ends, with the session length as latency.
func RequestLogger(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			upgrade := strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info(r.Context(), "http request processed",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", ww.Status()),
				logger.Int("bytes", ww.BytesWritten()),
				logger.Bool("websocket", upgrade),
				logger.Duration("latency", time.Since(start)),
			)
		})
	}
}
