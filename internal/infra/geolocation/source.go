package geolocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/domain/entity"
	"github.com/DioGolang/Zoned/pkg/logger"
)

// Permission reports whether position access is granted.
type Permission func(ctx context.Context) bool

func Granted(context.Context) bool { return true }
func Denied(context.Context) bool  { return false }

type Option func(*Source)

func WithPermission(p Permission) Option {
	return func(s *Source) { s.permission = p }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// Source applies the fix policy on top of a Provider. A nil provider means the
// platform has no positioning capability.
type Source struct {
	provider   Provider
	permission Permission
	logger     logger.Logger
}

var _ outbound.GeolocationSource = (*Source)(nil)

func NewSource(provider Provider, opts ...Option) *Source {
	s := &Source{
		provider:   provider,
		permission: Granted,
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type locateResult struct {
	position entity.Position
	err      error
}

// GetCurrentPosition blocks until the provider answers, the policy timeout
// elapses (entity.ErrFixTimeout) or ctx is canceled. Failures are never
// retried here.
func (s *Source) GetCurrentPosition(ctx context.Context, policy outbound.FixPolicy) (entity.Position, error) {
	if s.provider == nil {
		return entity.Position{}, entity.ErrLocationUnavailable
	}
	if !s.permission(ctx) {
		return entity.Position{}, entity.ErrPermissionDenied
	}

	var (
		reqCtx context.Context
		cancel context.CancelFunc
	)
	if policy.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
	} else {
		reqCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	results := make(chan locateResult, 1)
	go func() {
		p, err := s.provider.Locate(reqCtx, policy.HighAccuracy)
		results <- locateResult{position: p, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			return entity.Position{}, s.classify(ctx, reqCtx, r.err)
		}
		if err := r.position.Validate(); err != nil {
			return entity.Position{}, fmt.Errorf("%w: provider returned %s: %v", entity.ErrLocationUnavailable, r.position, err)
		}
		s.logger.Debug(ctx, "geolocation fix resolved",
			logger.Float64("lat", r.position.Latitude()),
			logger.Float64("lng", r.position.Longitude()),
			logger.Bool("high_accuracy", policy.HighAccuracy),
		)
		return r.position, nil
	case <-reqCtx.Done():
		return entity.Position{}, s.classify(ctx, reqCtx, reqCtx.Err())
	}
}

// classify separates our own policy deadline from the caller giving up.
func (s *Source) classify(parent, req context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("geolocation request canceled: %w", parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) && req.Err() != nil {
		return entity.ErrFixTimeout
	}
	if errors.Is(err, entity.ErrPermissionDenied) || errors.Is(err, entity.ErrLocationUnavailable) || errors.Is(err, entity.ErrFixTimeout) {
		return err
	}
	return fmt.Errorf("%w: %v", entity.ErrLocationUnavailable, err)
}
