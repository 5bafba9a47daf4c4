package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DioGolang/Zoned/internal/domain/entity"
	"github.com/DioGolang/Zoned/pkg/events"
	"github.com/DioGolang/Zoned/pkg/logger"
	"github.com/DioGolang/Zoned/pkg/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var miami, _ = entity.NewPosition(25.7617, -80.1918)

type MockEventDispatcher struct {
	mock.Mock
}

func (m *MockEventDispatcher) Dispatch(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockLocationRepository struct {
	mock.Mock
}

func (m *MockLocationRepository) GetNearbyUsers(ctx context.Context, origin entity.Position, radiusFeet float64) ([]entity.User, error) {
	args := m.Called(ctx, origin, radiusFeet)
	return args.Get(0).([]entity.User), args.Error(1)
}

func (m *MockLocationRepository) UpdateLocation(ctx context.Context, user entity.User, observedAt time.Time) error {
	args := m.Called(ctx, user, observedAt)
	return args.Error(0)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type publishCall struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	calls []publishCall
	err   error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.calls = append(f.calls, publishCall{exchange: exchange, key: key, msg: msg})
	return f.err
}

type fakeAcknowledger struct {
	acked, nacked, requeued bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func newUser(t *testing.T, id string, p entity.Position) entity.User {
	t.Helper()
	u, err := entity.NewUser(id, p, map[string]string{entity.AttrSnapchat: id + "_snap"})
	require.NoError(t, err)
	return u
}

func TestDispatcher_PublishesJSONRoutedByName(t *testing.T) {
	ch := &fakeChannel{}
	evt := events.New(LocationUpdated, LocationUpdatedPayload{UserID: "u1", Lat: 1, Lng: 2})

	require.NoError(t, NewDispatcher(ch).Dispatch(context.Background(), evt))

	require.Len(t, ch.calls, 1)
	call := ch.calls[0]
	assert.Equal(t, "amq.direct", call.exchange)
	assert.Equal(t, LocationUpdated, call.key)
	assert.Equal(t, evt.GetID(), call.msg.Headers[HeaderEventID])
	assert.Equal(t, evt.GetID(), call.msg.MessageId)
	assert.Equal(t, "application/json", call.msg.ContentType)

	var decoded LocationUpdatedPayload
	require.NoError(t, json.Unmarshal(call.msg.Body, &decoded))
	assert.Equal(t, "u1", decoded.UserID)
}

func TestDispatcher_PropagatesBrokerError(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}

	err := NewDispatcher(ch).Dispatch(context.Background(), events.New(LocationUpdated, struct{}{}))

	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestLocationPublisher_BuildsEvent(t *testing.T) {
	d := new(MockEventDispatcher)
	observed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pub := NewLocationPublisher(d)
	pub.now = func() time.Time { return observed }

	d.On("Dispatch", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		p, ok := e.GetPayload().(LocationUpdatedPayload)
		return ok && e.GetName() == LocationUpdated &&
			p.UserID == "me" && p.Lat == miami.Latitude() && p.Lng == miami.Longitude() &&
			p.Attributes[entity.AttrSnapchat] == "me_snap" && p.ObservedAt.Equal(observed)
	})).Return(nil)

	require.NoError(t, pub.Publish(context.Background(), newUser(t, "me", miami)))
	d.AssertExpectations(t)
}

func TestLocationUpdatedHandler(t *testing.T) {
	valid, _ := json.Marshal(LocationUpdatedPayload{UserID: "u1", Lat: 25.7617, Lng: -80.1918})
	badLat, _ := json.Marshal(LocationUpdatedPayload{UserID: "u1", Lat: 120, Lng: 0})
	noID, _ := json.Marshal(LocationUpdatedPayload{Lat: 1, Lng: 1})
	observed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stamped, _ := json.Marshal(LocationUpdatedPayload{UserID: "u1", Lat: 25.7617, Lng: -80.1918, ObservedAt: observed})

	t.Run("applies valid payload", func(t *testing.T) {
		repo := new(MockLocationRepository)
		repo.On("UpdateLocation", mock.Anything, mock.MatchedBy(func(u entity.User) bool {
			return u.ID() == "u1" && u.Position() == miami
		}), mock.MatchedBy(func(at time.Time) bool { return !at.IsZero() })).Return(nil)

		err := NewLocationUpdatedHandler(repo, logger.NewNop())(context.Background(), valid, nil)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("passes the observation time", func(t *testing.T) {
		repo := new(MockLocationRepository)
		repo.On("UpdateLocation", mock.Anything, mock.Anything, mock.MatchedBy(func(at time.Time) bool {
			return at.Equal(observed)
		})).Return(nil)

		err := NewLocationUpdatedHandler(repo, logger.NewNop())(context.Background(), stamped, nil)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("stale sample is acknowledged", func(t *testing.T) {
		repo := new(MockLocationRepository)
		repo.On("UpdateLocation", mock.Anything, mock.Anything, mock.Anything).Return(entity.ErrStaleLocation)

		err := NewLocationUpdatedHandler(repo, logger.NewNop())(context.Background(), stamped, nil)

		assert.NoError(t, err)
	})

	for name, body := range map[string][]byte{
		"garbage":      []byte("{not json"),
		"bad latitude": badLat,
		"missing id":   noID,
	} {
		t.Run("poison "+name, func(t *testing.T) {
			repo := new(MockLocationRepository)

			err := NewLocationUpdatedHandler(repo, logger.NewNop())(context.Background(), body, nil)

			assert.ErrorIs(t, err, ErrPoisonMessage)
			repo.AssertNotCalled(t, "UpdateLocation", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("repository failure is transient", func(t *testing.T) {
		repo := new(MockLocationRepository)
		repo.On("UpdateLocation", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

		err := NewLocationUpdatedHandler(repo, logger.NewNop())(context.Background(), valid, nil)

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrPoisonMessage)
	})
}

func TestConsumer_HandleDeliveryAcknowledges(t *testing.T) {
	c := &Consumer{Logger: logger.NewNop(), Metrics: metrics.Nop{}}

	tests := []struct {
		name         string
		handlerErr   error
		wantAck      bool
		wantRequeued bool
	}{
		{name: "success acks", wantAck: true},
		{name: "poison is dropped", handlerErr: ErrPoisonMessage},
		{name: "transient is requeued", handlerErr: errors.New("timeout"), wantRequeued: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			d := amqp.Delivery{Acknowledger: ack, RoutingKey: LocationUpdated, Headers: amqp.Table{HeaderEventID: "e1"}}
			var gotHeaders map[string]interface{}

			c.handleDelivery(context.Background(), "q", d, func(_ context.Context, _ []byte, h map[string]interface{}) error {
				gotHeaders = h
				return tt.handlerErr
			})

			assert.Equal(t, "e1", gotHeaders[HeaderEventID])
			assert.Equal(t, tt.wantAck, ack.acked)
			assert.Equal(t, !tt.wantAck, ack.nacked)
			assert.Equal(t, tt.wantRequeued, ack.requeued)
		})
	}
}

func TestWrapIdempotency(t *testing.T) {
	ttl := time.Hour
	headers := map[string]interface{}{HeaderEventID: "evt-1"}

	t.Run("first delivery runs handler", func(t *testing.T) {
		store := new(MockIdempotencyStore)
		store.On("Claim", mock.Anything, "dedup:loc:evt-1", ttl).Return(true, nil)
		calls := 0

		h := WrapIdempotency(logger.NewNop(), store, "loc", ttl, func(context.Context, []byte, map[string]interface{}) error {
			calls++
			return nil
		})

		require.NoError(t, h(context.Background(), []byte("{}"), headers))
		assert.Equal(t, 1, calls)
		store.AssertExpectations(t)
	})

	t.Run("duplicate is dropped", func(t *testing.T) {
		store := new(MockIdempotencyStore)
		store.On("Claim", mock.Anything, "dedup:loc:evt-1", ttl).Return(false, nil)

		h := WrapIdempotency(logger.NewNop(), store, "loc", ttl, func(context.Context, []byte, map[string]interface{}) error {
			t.Fatal("handler must not run for duplicates")
			return nil
		})

		assert.NoError(t, h(context.Background(), []byte("{}"), headers))
	})

	t.Run("failure releases key", func(t *testing.T) {
		store := new(MockIdempotencyStore)
		store.On("Claim", mock.Anything, mock.Anything, ttl).Return(true, nil)
		store.On("Release", mock.Anything, "dedup:loc:evt-1").Return(nil)
		failure := errors.New("boom")

		h := WrapIdempotency(logger.NewNop(), store, "loc", ttl, func(context.Context, []byte, map[string]interface{}) error {
			return failure
		})

		assert.ErrorIs(t, h(context.Background(), []byte("{}"), headers), failure)
		store.AssertExpectations(t)
	})

	t.Run("store down fails the delivery", func(t *testing.T) {
		store := new(MockIdempotencyStore)
		store.On("Claim", mock.Anything, mock.Anything, ttl).Return(false, errors.New("conn refused"))

		h := WrapIdempotency(logger.NewNop(), store, "loc", ttl, func(context.Context, []byte, map[string]interface{}) error {
			return nil
		})

		assert.Error(t, h(context.Background(), []byte("{}"), headers))
	})
}

func TestEventID_FallsBackToBodyHash(t *testing.T) {
	a := eventID([]byte("a"), nil)
	assert.Equal(t, a, eventID([]byte("a"), map[string]interface{}{}))
	assert.NotEqual(t, a, eventID([]byte("b"), nil))
	assert.Contains(t, a, "hash:")
}

func TestWrapExponentialBackoff(t *testing.T) {
	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		h := WrapExponentialBackoff(logger.NewNop(), metrics.Nop{}, "loc", 3, time.Millisecond,
			func(context.Context, []byte, map[string]interface{}) error {
				calls++
				if calls < 3 {
					return errors.New("transient")
				}
				return nil
			})

		require.NoError(t, h(context.Background(), nil, nil))
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		h := WrapExponentialBackoff(logger.NewNop(), metrics.Nop{}, "loc", 2, time.Millisecond,
			func(context.Context, []byte, map[string]interface{}) error {
				calls++
				return errors.New("transient")
			})

		assert.Error(t, h(context.Background(), nil, nil))
		assert.Equal(t, 3, calls)
	})

	t.Run("poison is not retried", func(t *testing.T) {
		calls := 0
		h := WrapExponentialBackoff(logger.NewNop(), metrics.Nop{}, "loc", 5, time.Millisecond,
			func(context.Context, []byte, map[string]interface{}) error {
				calls++
				return ErrPoisonMessage
			})

		assert.ErrorIs(t, h(context.Background(), nil, nil), ErrPoisonMessage)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops waiting on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		h := WrapExponentialBackoff(logger.NewNop(), metrics.Nop{}, "loc", 5, time.Hour,
			func(context.Context, []byte, map[string]interface{}) error {
				cancel()
				return errors.New("transient")
			})

		assert.ErrorIs(t, h(ctx, nil, nil), context.Canceled)
	})
}

func TestWrapResilientConsumer_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewBreaker("loc", time.Minute)
	calls := 0
	h := WrapResilientConsumer(metrics.Nop{}, "loc", time.Second, cb,
		func(context.Context, []byte, map[string]interface{}) error {
			calls++
			return errors.New("redis down")
		})

	for i := 0; i < 5; i++ {
		require.Error(t, h(context.Background(), nil, nil))
	}
	assert.ErrorIs(t, h(context.Background(), nil, nil), gobreaker.ErrOpenState)
	assert.Equal(t, 5, calls)
}

func TestWrapResilientConsumer_PoisonDoesNotTrip(t *testing.T) {
	cb := NewBreaker("loc", time.Minute)
	h := WrapResilientConsumer(metrics.Nop{}, "loc", time.Second, cb,
		func(context.Context, []byte, map[string]interface{}) error {
			return ErrPoisonMessage
		})

	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, h(context.Background(), nil, nil), ErrPoisonMessage)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

type collectingPublisher struct {
	mu   sync.Mutex
	got  []entity.User
	fail map[string]bool
}

func (c *collectingPublisher) Publish(_ context.Context, u entity.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail[u.ID()] {
		return errors.New("broker down")
	}
	c.got = append(c.got, u)
	return nil
}

func TestRelay_CoalescesLatestPositionPerUser(t *testing.T) {
	next := &collectingPublisher{}
	relay := NewRelay(next, logger.NewNop(), time.Hour)
	later := miami.Offset(0.001, 0)

	require.NoError(t, relay.Publish(context.Background(), newUser(t, "a", miami)))
	require.NoError(t, relay.Publish(context.Background(), newUser(t, "a", later)))
	require.NoError(t, relay.Publish(context.Background(), newUser(t, "b", miami)))
	assert.Equal(t, 2, relay.Pending())

	relay.Flush(context.Background())

	require.Len(t, next.got, 2)
	for _, u := range next.got {
		if u.ID() == "a" {
			assert.Equal(t, later, u.Position())
		}
	}
	assert.Zero(t, relay.Pending())
}

func TestRelay_KeepsFailedUsersForNextFlush(t *testing.T) {
	next := &collectingPublisher{fail: map[string]bool{"a": true}}
	relay := NewRelay(next, logger.NewNop(), time.Hour)

	require.NoError(t, relay.Publish(context.Background(), newUser(t, "a", miami)))
	relay.Flush(context.Background())

	assert.Equal(t, 1, relay.Pending())
	assert.Empty(t, next.got)
}

func TestRelay_HealthCheckReportsBacklog(t *testing.T) {
	next := &collectingPublisher{fail: map[string]bool{"a": true, "b": true}}
	relay := NewRelay(next, logger.NewNop(), time.Hour)
	check := relay.HealthCheck(1)

	require.NoError(t, relay.Publish(context.Background(), newUser(t, "a", miami)))
	assert.NoError(t, check(context.Background()))

	require.NoError(t, relay.Publish(context.Background(), newUser(t, "b", miami)))
	relay.Flush(context.Background())

	assert.ErrorIs(t, check(context.Background()), ErrRelayBacklog)
}

func TestRelay_RunFlushesOnShutdown(t *testing.T) {
	next := &collectingPublisher{}
	relay := NewRelay(next, logger.NewNop(), time.Hour)
	require.NoError(t, relay.Publish(context.Background(), newUser(t, "a", miami)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
	assert.Len(t, next.got, 1)
}
