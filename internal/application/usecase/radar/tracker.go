package radar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/domain/entity"
	"github.com/DioGolang/Zoned/internal/domain/proximity"
	"github.com/DioGolang/Zoned/pkg/logger"
	"github.com/DioGolang/Zoned/pkg/metrics"
)

var (
	ErrTrackerStopped = errors.New("tracker stopped")
	ErrTrackerRunning = errors.New("tracker already running")
)

// Snapshot is the state published to presenters after every change. Nearby
// is shared between listeners and must be treated as read-only.
type Snapshot struct {
	Sequence   uint64
	State      string
	Position   entity.Position
	HasFix     bool
	RadiusFeet float64
	Nearby     []entity.User
	Err        error
}

type ResultListener func(Snapshot)

type TrackerConfig struct {
	// SelfID identifies the local user in the directory. Users with this id
	// are never reported as nearby.
	SelfID         string
	SelfAttributes map[string]string
	Policy         outbound.FixPolicy
	InitialRadius  float64
	// WatchInterval re-requests a fix periodically; zero means a single
	// request when Run starts.
	WatchInterval time.Duration
	// PublishInterval pushes the own position to the directory; zero disables
	// periodic pushes. Fixes keep pushing until one push succeeds.
	PublishInterval time.Duration
	// FetchTimeout bounds provider and publisher calls.
	FetchTimeout time.Duration
}

type TrackerOption func(*Tracker)

// WithGeolocationSource makes the tracker request fixes itself. Without a
// source, positions only arrive through OnPositionChanged.
func WithGeolocationSource(src outbound.GeolocationSource) TrackerOption {
	return func(t *Tracker) { t.source = src }
}

func WithPublisher(p outbound.LocationPublisher) TrackerOption {
	return func(t *Tracker) { t.publisher = p }
}

func WithListener(l ResultListener) TrackerOption {
	return func(t *Tracker) { t.listener = l }
}

func WithTrackerLogger(l logger.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

func WithTrackerMetrics(m metrics.Metrics) TrackerOption {
	return func(t *Tracker) { t.metrics = m }
}

type eventKind int

const (
	eventFix eventKind = iota
	eventRadius
)

type trackerEvent struct {
	kind      eventKind
	position  entity.Position
	radius    float64
	err       error
	requested bool
}

// Tracker is the radar update loop. All state is owned by the goroutine
// running Run; the On* methods only enqueue events, which are applied in
// delivery order, so the most recently delivered position always wins.
type Tracker struct {
	source    outbound.GeolocationSource
	provider  outbound.EntityProvider
	publisher outbound.LocationPublisher
	listener  ResultListener
	logger    logger.Logger
	metrics   metrics.Metrics
	cfg       TrackerConfig

	events  chan trackerEvent
	done    chan struct{}
	started atomic.Bool
	current atomic.Pointer[Snapshot]
	fixes   sync.WaitGroup

	// owned by Run
	radar     *entity.Radar
	users     []entity.User
	fetchErr  error
	seq       uint64
	fixing    bool
	published bool
}

func NewTracker(provider outbound.EntityProvider, cfg TrackerConfig, opts ...TrackerOption) *Tracker {
	if cfg.InitialRadius == 0 {
		cfg.InitialRadius = entity.DefaultRadiusFeet
	}
	t := &Tracker{
		provider: provider,
		cfg:      cfg,
		logger:   logger.NewNop(),
		metrics:  metrics.Nop{},
		events:   make(chan trackerEvent, 64),
		done:     make(chan struct{}),
		radar:    entity.NewRadar(cfg.InitialRadius),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.current.Store(&Snapshot{
		State:      t.radar.StateName(),
		RadiusFeet: t.radar.RadiusFeet(),
		Nearby:     []entity.User{},
	})
	return t
}

// Snapshot returns the latest published state. Safe from any goroutine.
func (t *Tracker) Snapshot() Snapshot {
	return *t.current.Load()
}

// Done is closed once Run has returned and every fix request has ended.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

func (t *Tracker) OnPositionChanged(p entity.Position) error {
	return t.send(trackerEvent{kind: eventFix, position: p})
}

func (t *Tracker) OnRadiusChanged(feet float64) error {
	return t.send(trackerEvent{kind: eventRadius, radius: feet})
}

// OnFixFailed records a geolocation failure reported by the platform.
func (t *Tracker) OnFixFailed(err error) error {
	return t.send(trackerEvent{kind: eventFix, err: err})
}

func (t *Tracker) send(ev trackerEvent) error {
	select {
	case <-t.done:
		return ErrTrackerStopped
	default:
	}
	select {
	case t.events <- ev:
		return nil
	case <-t.done:
		return ErrTrackerStopped
	}
}

// Run drives the loop until ctx is canceled. In-flight fix requests are
// canceled with it and awaited before Run returns.
func (t *Tracker) Run(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return ErrTrackerRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		t.fixes.Wait()
		close(t.done)
	}()

	t.emit()
	t.requestFix(ctx)

	var watch <-chan time.Time
	if t.source != nil && t.cfg.WatchInterval > 0 {
		ticker := time.NewTicker(t.cfg.WatchInterval)
		defer ticker.Stop()
		watch = ticker.C
	}
	var publish <-chan time.Time
	if t.publisher != nil && t.cfg.PublishInterval > 0 {
		ticker := time.NewTicker(t.cfg.PublishInterval)
		defer ticker.Stop()
		publish = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug(ctx, "radar tracker stopped", logger.String("self_id", t.cfg.SelfID))
			return nil
		case ev := <-t.events:
			t.handle(ctx, ev)
		case <-watch:
			t.requestFix(ctx)
		case <-publish:
			t.publishSelf(ctx)
		}
	}
}

func (t *Tracker) requestFix(ctx context.Context) {
	if t.source == nil || t.fixing {
		return
	}
	t.fixing = true
	t.fixes.Add(1)
	go func() {
		defer t.fixes.Done()
		pos, err := t.source.GetCurrentPosition(ctx, t.cfg.Policy)
		select {
		case t.events <- trackerEvent{kind: eventFix, position: pos, err: err, requested: true}:
		case <-ctx.Done():
		}
	}()
}

func (t *Tracker) handle(ctx context.Context, ev trackerEvent) {
	switch ev.kind {
	case eventFix:
		if ev.requested {
			t.fixing = false
		}
		if ev.err != nil {
			t.radar.ApplyFailure(ev.err)
			t.metrics.RecordFixFailure(entity.FixFailureReason(ev.err))
			t.logger.Warn(ctx, "geolocation fix failed",
				logger.String("state", t.radar.StateName()),
				logger.WithError(ev.err),
			)
			if _, ok := t.radar.Origin(); ok {
				t.recompute("failure")
				return
			}
			t.emit()
			return
		}
		t.radar.ApplyFix(ev.position)
		t.refresh(ctx, ev.position)
		t.recompute("position")
		if !t.published {
			t.publishSelf(ctx)
		}
	case eventRadius:
		radius := t.radar.SetRadius(ev.radius)
		t.logger.Debug(ctx, "radar radius changed", logger.Float64("radius_ft", radius))
		if _, ok := t.radar.Origin(); !ok {
			t.emit()
			return
		}
		t.recompute("radius")
	}
}

// refresh replaces the candidate set. On provider failure the previous set is
// kept and the error is surfaced in the snapshot.
func (t *Tracker) refresh(ctx context.Context, origin entity.Position) {
	fetchCtx, cancel := t.boundedContext(ctx)
	defer cancel()

	users, err := t.provider.FetchNearby(fetchCtx, origin)
	if err != nil {
		t.fetchErr = err
		t.logger.Warn(ctx, "entity provider failed, keeping previous candidates",
			logger.Int("candidates", len(t.users)),
			logger.WithError(err),
		)
		return
	}
	t.fetchErr = nil
	t.users = t.users[:0:0]
	for _, u := range users {
		if t.cfg.SelfID != "" && u.ID() == t.cfg.SelfID {
			continue
		}
		t.users = append(t.users, u)
	}
}

func (t *Tracker) recompute(trigger string) {
	origin, _ := t.radar.Origin()
	nearby := proximity.ComputeNearby(origin, t.radar.RadiusFeet(), t.users)
	t.metrics.RecordRadarComputation(trigger, len(nearby))
	t.emitNearby(nearby)
}

func (t *Tracker) emit() {
	t.emitNearby([]entity.User{})
}

func (t *Tracker) emitNearby(nearby []entity.User) {
	t.seq++
	origin, ok := t.radar.Origin()
	snap := Snapshot{
		Sequence:   t.seq,
		State:      t.radar.StateName(),
		Position:   origin,
		HasFix:     ok,
		RadiusFeet: t.radar.RadiusFeet(),
		Nearby:     nearby,
		Err:        errors.Join(t.radar.LastError(), t.fetchErr),
	}
	t.current.Store(&snap)
	if t.listener != nil {
		t.listener(snap)
	}
}

func (t *Tracker) publishSelf(ctx context.Context) {
	origin, ok := t.radar.Origin()
	if !ok || t.publisher == nil || t.cfg.SelfID == "" {
		return
	}
	self, err := entity.NewUser(t.cfg.SelfID, origin, t.cfg.SelfAttributes)
	if err != nil {
		t.logger.Error(ctx, "invalid self user", logger.WithError(err))
		return
	}

	pubCtx, cancel := t.boundedContext(ctx)
	defer cancel()

	if err := t.publisher.Publish(pubCtx, self); err != nil {
		t.metrics.RecordLocationPublished("failure")
		t.logger.Warn(ctx, "failed to publish own location", logger.WithError(err))
		return
	}
	t.published = true
	t.metrics.RecordLocationPublished("success")
}

func (t *Tracker) boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.cfg.FetchTimeout > 0 {
		return context.WithTimeout(ctx, t.cfg.FetchTimeout)
	}
	return context.WithCancel(ctx)
}
