package event

import (
	"context"
	"errors"
	"time"

	"github.com/DioGolang/Zoned/pkg/metrics"
	"github.com/sony/gobreaker"
)

// WrapResilientConsumer bounds each call by timeout and runs it through the
// circuit breaker. While the breaker is open the handler is not called and
// gobreaker.ErrOpenState is returned.
func WrapResilientConsumer(
	m metrics.Metrics,
	handlerName string,
	timeout time.Duration,
	cb *gobreaker.CircuitBreaker,
	next MessageHandler,
) MessageHandler {
	return func(ctx context.Context, msg []byte, headers map[string]interface{}) error {
		start := time.Now()

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		_, err := cb.Execute(func() (interface{}, error) {
			return nil, next(ctx, msg, headers)
		})

		m.RecordUseCaseExecution(handlerName, err == nil, time.Since(start))
		return err
	}
}

// NewBreaker trips after five consecutive failures. Poison messages count as
// successes: they say nothing about the downstream health.
func NewBreaker(name string, openTimeout time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPoisonMessage)
		},
	})
}
