package radar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixResult struct {
	pos entity.Position
	err error
}

type fakeSource struct {
	results  chan fixResult
	canceled chan struct{}
	once     sync.Once
	mu       sync.Mutex
	calls    int
}

func newFakeSource() *fakeSource {
	return &fakeSource{results: make(chan fixResult, 8), canceled: make(chan struct{})}
}

func (f *fakeSource) GetCurrentPosition(ctx context.Context, _ outbound.FixPolicy) (entity.Position, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	select {
	case r := <-f.results:
		return r.pos, r.err
	case <-ctx.Done():
		f.once.Do(func() { close(f.canceled) })
		return entity.Position{}, ctx.Err()
	}
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// aroundProvider fabricates two users 0.0001° away from the origin on both
// axes, matching the dummy directory.
type aroundProvider struct {
	mu    sync.Mutex
	calls int
	extra []entity.User
	fail  error
}

func (p *aroundProvider) FetchNearby(_ context.Context, origin entity.Position) ([]entity.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail != nil {
		return nil, p.fail
	}
	a, _ := entity.NewUser("1", origin.Offset(0.0001, 0.0001), map[string]string{entity.AttrInstagram: "user1_insta"})
	b, _ := entity.NewUser("2", origin.Offset(-0.0001, -0.0001), map[string]string{entity.AttrInstagram: "user2_insta"})
	return append([]entity.User{a, b}, p.extra...), nil
}

func (p *aroundProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *aroundProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

type recordingPublisher struct {
	published chan entity.User
}

func (r *recordingPublisher) Publish(_ context.Context, u entity.User) error {
	select {
	case r.published <- u:
	default:
	}
	return nil
}

type flakyPublisher struct {
	mu        sync.Mutex
	failures  int
	attempts  int
	published chan entity.User
}

func (f *flakyPublisher) Publish(_ context.Context, u entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("directory unreachable")
	}
	f.published <- u
	return nil
}

func (f *flakyPublisher) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

var miami, _ = entity.NewPosition(25.7617, -80.1918)

func startTracker(t *testing.T, provider outbound.EntityProvider, cfg TrackerConfig, opts ...TrackerOption) (*Tracker, <-chan Snapshot, context.CancelFunc) {
	t.Helper()
	snaps := make(chan Snapshot, 100)
	opts = append(opts, WithListener(func(s Snapshot) {
		select {
		case snaps <- s:
		default:
		}
	}))
	tr := NewTracker(provider, cfg, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = tr.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-tr.Done()
	})
	return tr, snaps, cancel
}

func waitSnapshot(t *testing.T, snaps <-chan Snapshot, match func(Snapshot) bool) Snapshot {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-snaps:
			if match(s) {
				return s
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
			return Snapshot{}
		}
	}
}

func isActive(s Snapshot) bool { return s.State == entity.StateActive }

func nearbyIDs(s Snapshot) []string {
	out := make([]string, len(s.Nearby))
	for i, u := range s.Nearby {
		out[i] = u.ID()
	}
	return out
}

func TestTracker_StartsAwaitingFix(t *testing.T) {
	_, snaps, _ := startTracker(t, &aroundProvider{}, TrackerConfig{})

	s := waitSnapshot(t, snaps, func(Snapshot) bool { return true })

	assert.Equal(t, entity.StateAwaitingFix, s.State)
	assert.False(t, s.HasFix)
	assert.Equal(t, entity.DefaultRadiusFeet, s.RadiusFeet)
	assert.Empty(t, s.Nearby)
}

func TestTracker_FirstFixActivatesAndComputes(t *testing.T) {
	src := newFakeSource()
	src.results <- fixResult{pos: miami}

	tr, snaps, _ := startTracker(t, &aroundProvider{}, TrackerConfig{InitialRadius: 37}, WithGeolocationSource(src))

	s := waitSnapshot(t, snaps, isActive)
	assert.True(t, s.HasFix)
	assert.Equal(t, miami, s.Position)
	assert.Equal(t, []string{"1", "2"}, nearbyIDs(s))
	assert.NoError(t, s.Err)
	assert.Equal(t, s.Sequence, tr.Snapshot().Sequence)
}

func TestTracker_DefaultRadiusExcludesDummyUsers(t *testing.T) {
	tr, snaps, _ := startTracker(t, &aroundProvider{}, TrackerConfig{})

	require.NoError(t, tr.OnPositionChanged(miami))

	s := waitSnapshot(t, snaps, isActive)
	assert.Empty(t, s.Nearby)
}

func TestTracker_RadiusChangeRecomputesWithoutRefetch(t *testing.T) {
	provider := &aroundProvider{}
	tr, snaps, _ := startTracker(t, provider, TrackerConfig{InitialRadius: 20})

	require.NoError(t, tr.OnPositionChanged(miami))
	waitSnapshot(t, snaps, isActive)

	require.NoError(t, tr.OnRadiusChanged(37))
	s := waitSnapshot(t, snaps, func(s Snapshot) bool { return s.RadiusFeet == 37 })

	assert.Equal(t, []string{"1", "2"}, nearbyIDs(s))
	assert.Equal(t, 1, provider.Calls())
}

func TestTracker_RadiusIsClampedWhileAwaiting(t *testing.T) {
	tr, snaps, _ := startTracker(t, &aroundProvider{}, TrackerConfig{})

	require.NoError(t, tr.OnRadiusChanged(1000))

	s := waitSnapshot(t, snaps, func(s Snapshot) bool { return s.RadiusFeet == entity.MaxRadiusFeet })
	assert.Equal(t, entity.StateAwaitingFix, s.State)
}

func TestTracker_FixFailureLeavesAwaitingFix(t *testing.T) {
	src := newFakeSource()
	src.results <- fixResult{err: entity.ErrPermissionDenied}

	_, snaps, _ := startTracker(t, &aroundProvider{}, TrackerConfig{}, WithGeolocationSource(src))

	s := waitSnapshot(t, snaps, func(s Snapshot) bool { return s.Err != nil })
	assert.Equal(t, entity.StateAwaitingFix, s.State)
	assert.ErrorIs(t, s.Err, entity.ErrPermissionDenied)
}

func TestTracker_PlatformFailureWhileActiveKeepsPosition(t *testing.T) {
	provider := &aroundProvider{}
	tr, snaps, _ := startTracker(t, provider, TrackerConfig{InitialRadius: 37})

	require.NoError(t, tr.OnPositionChanged(miami))
	before := waitSnapshot(t, snaps, isActive)
	require.Equal(t, []string{"1", "2"}, nearbyIDs(before))
	require.NoError(t, tr.OnFixFailed(entity.ErrFixTimeout))

	s := waitSnapshot(t, snaps, func(s Snapshot) bool { return s.Err != nil })
	assert.Equal(t, entity.StateActive, s.State)
	assert.True(t, s.HasFix)
	assert.Equal(t, miami, s.Position)
	assert.Equal(t, []string{"1", "2"}, nearbyIDs(s))
	assert.ErrorIs(t, s.Err, entity.ErrFixTimeout)
	assert.Equal(t, 1, provider.Calls())
}

func TestTracker_FailedFirstPublishIsRetriedOnNextFix(t *testing.T) {
	pub := &flakyPublisher{failures: 1, published: make(chan entity.User, 4)}
	tr, snaps, _ := startTracker(t, &aroundProvider{}, TrackerConfig{SelfID: "me"}, WithPublisher(pub))

	require.NoError(t, tr.OnPositionChanged(miami))
	waitSnapshot(t, snaps, isActive)
	moved := miami.Offset(0.001, 0)
	require.NoError(t, tr.OnPositionChanged(moved))

	select {
	case u := <-pub.published:
		assert.Equal(t, moved, u.Position())
	case <-time.After(2 * time.Second):
		t.Fatal("own position was not pushed after the failed attempt")
	}
	assert.Equal(t, 2, pub.Attempts())
}

func TestTracker_LaterSampleWins(t *testing.T) {
	tr, snaps, _ := startTracker(t, &aroundProvider{}, TrackerConfig{})
	second := miami.Offset(0.01, 0.01)

	require.NoError(t, tr.OnPositionChanged(miami))
	require.NoError(t, tr.OnPositionChanged(second))

	waitSnapshot(t, snaps, func(s Snapshot) bool { return s.Position == second })
	assert.Equal(t, second, tr.Snapshot().Position)
}

func TestTracker_WatchIntervalRequestsNewFixes(t *testing.T) {
	src := newFakeSource()
	src.results <- fixResult{pos: miami}
	moved := miami.Offset(0.001, 0)

	_, snaps, _ := startTracker(t, &aroundProvider{}, TrackerConfig{WatchInterval: 5 * time.Millisecond}, WithGeolocationSource(src))

	waitSnapshot(t, snaps, isActive)
	src.results <- fixResult{pos: moved}
	waitSnapshot(t, snaps, func(s Snapshot) bool { return s.Position == moved })
	assert.GreaterOrEqual(t, src.Calls(), 2)
}

func TestTracker_CancelsInFlightFixOnTeardown(t *testing.T) {
	src := newFakeSource()
	tr, _, cancel := startTracker(t, &aroundProvider{}, TrackerConfig{}, WithGeolocationSource(src))

	assert.Eventually(t, func() bool { return src.Calls() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("tracker did not stop")
	}
	select {
	case <-src.canceled:
	default:
		t.Fatal("in-flight fix request was not canceled")
	}
	assert.ErrorIs(t, tr.OnPositionChanged(miami), ErrTrackerStopped)
}

func TestTracker_RunTwiceFails(t *testing.T) {
	tr, snaps, _ := startTracker(t, &aroundProvider{}, TrackerConfig{})
	waitSnapshot(t, snaps, func(Snapshot) bool { return true })

	assert.ErrorIs(t, tr.Run(context.Background()), ErrTrackerRunning)
}

func TestTracker_PublishesOwnPosition(t *testing.T) {
	pub := &recordingPublisher{published: make(chan entity.User, 16)}
	tr, _, _ := startTracker(t, &aroundProvider{}, TrackerConfig{
		SelfID:          "me",
		SelfAttributes:  map[string]string{entity.AttrSnapchat: "me_snap"},
		PublishInterval: 5 * time.Millisecond,
	}, WithPublisher(pub))

	require.NoError(t, tr.OnPositionChanged(miami))

	for i := 0; i < 2; i++ {
		select {
		case u := <-pub.published:
			assert.Equal(t, "me", u.ID())
			assert.Equal(t, miami, u.Position())
			handle, _ := u.Attribute(entity.AttrSnapchat)
			assert.Equal(t, "me_snap", handle)
		case <-time.After(2 * time.Second):
			t.Fatalf("publish %d not observed", i+1)
		}
	}
}

func TestTracker_ExcludesSelfFromNearby(t *testing.T) {
	self, _ := entity.NewUser("me", miami, nil)
	tr, snaps, _ := startTracker(t, &aroundProvider{extra: []entity.User{self}}, TrackerConfig{SelfID: "me", InitialRadius: 150})

	require.NoError(t, tr.OnPositionChanged(miami))

	s := waitSnapshot(t, snaps, isActive)
	assert.Equal(t, []string{"1", "2"}, nearbyIDs(s))
}

func TestTracker_ProviderFailureKeepsPreviousCandidates(t *testing.T) {
	provider := &aroundProvider{}
	tr, snaps, _ := startTracker(t, provider, TrackerConfig{InitialRadius: 37})

	require.NoError(t, tr.OnPositionChanged(miami))
	waitSnapshot(t, snaps, isActive)

	failure := errors.New("directory down")
	provider.FailWith(failure)
	require.NoError(t, tr.OnPositionChanged(miami))

	s := waitSnapshot(t, snaps, func(s Snapshot) bool { return s.Err != nil })
	assert.ErrorIs(t, s.Err, failure)
	assert.Equal(t, []string{"1", "2"}, nearbyIDs(s))
}
