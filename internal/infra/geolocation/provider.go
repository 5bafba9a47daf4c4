package geolocation

import (
	"context"
	"sync"
	"time"

	"github.com/DioGolang/Zoned/internal/domain/entity"
)

// Provider is the platform positioning capability behind a Source.
type Provider interface {
	Locate(ctx context.Context, highAccuracy bool) (entity.Position, error)
}

// StaticProvider always reports the same position.
type StaticProvider struct {
	position entity.Position
}

func NewStaticProvider(p entity.Position) *StaticProvider {
	return &StaticProvider{position: p}
}

func (s *StaticProvider) Locate(ctx context.Context, _ bool) (entity.Position, error) {
	if err := ctx.Err(); err != nil {
		return entity.Position{}, err
	}
	return s.position, nil
}

// Sample is one scripted fix: Delay elapses before Position (or Err) is
// reported.
type Sample struct {
	Position entity.Position
	Err      error
	Delay    time.Duration
}

// ReplayProvider reports scripted samples in order and starts over after the
// last one. It simulates a moving device.
type ReplayProvider struct {
	mu      sync.Mutex
	samples []Sample
	next    int
}

func NewReplayProvider(samples ...Sample) *ReplayProvider {
	return &ReplayProvider{samples: samples}
}

// NewWalkProvider replays a straight walk of n steps from start, each step
// offset by (dLat, dLng) degrees and taking interval.
func NewWalkProvider(start entity.Position, dLat, dLng float64, n int, interval time.Duration) *ReplayProvider {
	samples := make([]Sample, 0, n)
	p := start
	for i := 0; i < n; i++ {
		samples = append(samples, Sample{Position: p, Delay: interval})
		p = p.Offset(dLat, dLng)
	}
	return NewReplayProvider(samples...)
}

func (r *ReplayProvider) Locate(ctx context.Context, _ bool) (entity.Position, error) {
	r.mu.Lock()
	if len(r.samples) == 0 {
		r.mu.Unlock()
		return entity.Position{}, entity.ErrLocationUnavailable
	}
	s := r.samples[r.next]
	r.next = (r.next + 1) % len(r.samples)
	r.mu.Unlock()

	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return entity.Position{}, ctx.Err()
		}
	}
	if s.Err != nil {
		return entity.Position{}, s.Err
	}
	return s.Position, nil
}
