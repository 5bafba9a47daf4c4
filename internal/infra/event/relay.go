package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/domain/entity"
	"github.com/DioGolang/Zoned/pkg/logger"
	"golang.org/x/sync/errgroup"
)

var ErrRelayBacklog = errors.New("location relay backlog")

// Relay coalesces own-position pushes. Publish only records the latest
// position per user; Run flushes the pending set on every tick, so a user
// moving faster than the flush interval costs one message per interval.
type Relay struct {
	next     outbound.LocationPublisher
	logger   logger.Logger
	interval time.Duration
	workers  int

	mu      sync.Mutex
	pending map[string]entity.User
}

var _ outbound.LocationPublisher = (*Relay)(nil)

func NewRelay(next outbound.LocationPublisher, log logger.Logger, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Relay{
		next:     next,
		logger:   log,
		interval: interval,
		workers:  10,
		pending:  make(map[string]entity.User),
	}
}

func (r *Relay) Publish(_ context.Context, user entity.User) error {
	r.mu.Lock()
	r.pending[user.ID()] = user
	r.mu.Unlock()
	return nil
}

// Run flushes until ctx is canceled, then makes a last flush bounded by
// the flush interval.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.interval)
			r.Flush(drainCtx)
			cancel()
			return
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Flush publishes the pending batch. Users whose publish failed go back to
// the pending set unless a newer position arrived meanwhile.
func (r *Relay) Flush(ctx context.Context) {
	r.mu.Lock()
	batch := r.pending
	r.pending = make(map[string]entity.User, len(batch))
	r.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	var failedMu sync.Mutex
	var failed []entity.User

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, u := range batch {
		g.Go(func() error {
			if err := r.next.Publish(gCtx, u); err != nil {
				r.logger.Warn(ctx, "Failed to publish location",
					logger.String("user_id", u.ID()),
					logger.WithError(err))
				failedMu.Lock()
				failed = append(failed, u)
				failedMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) == 0 {
		return
	}
	r.mu.Lock()
	for _, u := range failed {
		if _, newer := r.pending[u.ID()]; !newer {
			r.pending[u.ID()] = u
		}
	}
	r.mu.Unlock()
}

// Pending reports how many users wait for the next flush.
func (r *Relay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// HealthCheck fails while more than limit users wait for a flush, which means
// the broker is not keeping up.
func (r *Relay) HealthCheck(limit int) func(context.Context) error {
	return func(context.Context) error {
		if n := r.Pending(); n > limit {
			return fmt.Errorf("%w: %d pending, limit %d", ErrRelayBacklog, n, limit)
		}
		return nil
	}
}
