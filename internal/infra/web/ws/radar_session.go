package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/application/usecase/radar"
	"github.com/DioGolang/Zoned/internal/domain/entity"
	"github.com/DioGolang/Zoned/pkg/logger"
	"github.com/DioGolang/Zoned/pkg/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client messages.
const (
	TypePositionUpdate = "POSITION_UPDATE"
	TypeRadiusUpdate   = "RADIUS_UPDATE"
	TypeRecenter       = "RECENTER"
)

// Server messages.
const (
	TypeRadarSnapshot = "RADAR_SNAPSHOT"
	TypeError         = "ERROR"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outgoing struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type radiusPayload struct {
	RadiusFeet float64 `json:"radius_ft"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type SessionConfig struct {
	DefaultRadius   float64
	PublishInterval time.Duration
	FetchTimeout    time.Duration
	// AllowedOrigins empty means any origin is accepted.
	AllowedOrigins []string
}

// RadarHandler serves one radar session per WebSocket connection. The client
// streams its own positions and radius; the server answers with snapshots.
type RadarHandler struct {
	provider  outbound.EntityProvider
	publisher outbound.LocationPublisher
	logger    logger.Logger
	metrics   metrics.Metrics
	cfg       SessionConfig
	upgrader  websocket.Upgrader

	root     context.Context
	stop     context.CancelFunc
	active   atomic.Int64
	sessions sync.WaitGroup
}

type Option func(*RadarHandler)

// WithPublisher makes sessions opened with a user_id push their position to
// the directory.
func WithPublisher(p outbound.LocationPublisher) Option {
	return func(h *RadarHandler) { h.publisher = p }
}

func WithLogger(l logger.Logger) Option {
	return func(h *RadarHandler) { h.logger = l }
}

func WithMetrics(m metrics.Metrics) Option {
	return func(h *RadarHandler) { h.metrics = m }
}

func NewRadarHandler(provider outbound.EntityProvider, cfg SessionConfig, opts ...Option) *RadarHandler {
	root, stop := context.WithCancel(context.Background())
	h := &RadarHandler{
		provider: provider,
		logger:   logger.NewNop(),
		metrics:  metrics.Nop{},
		cfg:      cfg,
		root:     root,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *RadarHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	h.logger.Warn(r.Context(), "WebSocket origin rejected", logger.String("origin", origin))
	return false
}

// Close ends every open session and waits for them to finish.
func (h *RadarHandler) Close() {
	h.stop()
	h.sessions.Wait()
}

func (h *RadarHandler) ActiveSessions() int {
	return int(h.active.Load())
}

func (h *RadarHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.root.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	cfg, err := h.trackerConfig(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "WebSocket upgrade failed", logger.WithError(err))
		return
	}

	h.sessions.Add(1)
	defer h.sessions.Done()
	h.metrics.SetActiveSessions(int(h.active.Add(1)))
	defer func() { h.metrics.SetActiveSessions(int(h.active.Add(-1))) }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stopOnClose := context.AfterFunc(h.root, cancel)
	defer stopOnClose()

	s := newSession(conn, h.logger.With(logger.String("session_id", uuid.NewString())))
	s.run(ctx, h.newTracker(cfg, s))
}

func (h *RadarHandler) trackerConfig(r *http.Request) (radar.TrackerConfig, error) {
	q := r.URL.Query()
	cfg := radar.TrackerConfig{
		SelfID:          q.Get("user_id"),
		InitialRadius:   h.cfg.DefaultRadius,
		PublishInterval: h.cfg.PublishInterval,
		FetchTimeout:    h.cfg.FetchTimeout,
	}
	if raw := q.Get("radius_ft"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid radius_ft: %w", err)
		}
		cfg.InitialRadius = v
	}
	attrs := map[string]string{}
	for _, key := range []string{entity.AttrInstagram, entity.AttrSnapchat} {
		if v := q.Get(key); v != "" {
			attrs[key] = v
		}
	}
	cfg.SelfAttributes = attrs
	return cfg, nil
}

func (h *RadarHandler) newTracker(cfg radar.TrackerConfig, s *session) *radar.Tracker {
	opts := []radar.TrackerOption{
		radar.WithListener(s.offer),
		radar.WithTrackerLogger(s.logger),
		radar.WithTrackerMetrics(h.metrics),
	}
	if h.publisher != nil && cfg.SelfID != "" {
		opts = append(opts, radar.WithPublisher(h.publisher))
	}
	return radar.NewTracker(h.provider, cfg, opts...)
}

type session struct {
	conn   *websocket.Conn
	logger logger.Logger

	// latest undelivered snapshot; older ones are dropped
	snapshots chan radar.Snapshot
	recenter  chan struct{}
	notices   chan outgoing
}

func newSession(conn *websocket.Conn, log logger.Logger) *session {
	return &session{
		conn:      conn,
		logger:    log,
		snapshots: make(chan radar.Snapshot, 1),
		recenter:  make(chan struct{}, 1),
		notices:   make(chan outgoing, 8),
	}
}

// offer is the tracker listener. Only the tracker goroutine calls it.
func (s *session) offer(snap radar.Snapshot) {
	for {
		select {
		case s.snapshots <- snap:
			return
		default:
		}
		select {
		case <-s.snapshots:
		default:
		}
	}
}

func (s *session) run(ctx context.Context, tracker *radar.Tracker) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() { _ = tracker.Run(ctx) }()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		s.writeLoop(ctx, tracker)
	}()

	// Unblocks ReadMessage on shutdown.
	go func() {
		<-ctx.Done()
		_ = s.conn.SetReadDeadline(time.Now())
	}()

	s.readLoop(ctx, tracker)
	cancel()
	<-writerDone
	<-tracker.Done()

	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	_ = s.conn.Close()
	s.logger.Debug(ctx, "radar session closed")
}

func (s *session) readLoop(ctx context.Context, tracker *radar.Tracker) {
	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn(ctx, "radar session read failed", logger.WithError(err))
			}
			return
		}
		if err := s.dispatch(msg, tracker); err != nil {
			s.notify(outgoing{Type: TypeError, Payload: errorPayload{Message: err.Error()}})
		}
	}
}

func (s *session) dispatch(msg Message, tracker *radar.Tracker) error {
	switch msg.Type {
	case TypePositionUpdate:
		var p radar.PositionDTO
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid %s payload: %w", msg.Type, err)
		}
		pos, err := p.ToEntity()
		if err != nil {
			return err
		}
		return tracker.OnPositionChanged(pos)
	case TypeRadiusUpdate:
		var p radiusPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid %s payload: %w", msg.Type, err)
		}
		return tracker.OnRadiusChanged(p.RadiusFeet)
	case TypeRecenter:
		select {
		case s.recenter <- struct{}{}:
		default:
		}
		return nil
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (s *session) notify(msg outgoing) {
	select {
	case s.notices <- msg:
	default:
	}
}

// writeLoop is the only writer of data frames on the connection.
func (s *session) writeLoop(ctx context.Context, tracker *radar.Tracker) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case snap := <-s.snapshots:
			err = s.write(outgoing{Type: TypeRadarSnapshot, Payload: radar.SnapshotFromTracker(snap)})
		case <-s.recenter:
			err = s.write(outgoing{Type: TypeRadarSnapshot, Payload: radar.SnapshotFromTracker(tracker.Snapshot())})
		case n := <-s.notices:
			err = s.write(n)
		case <-ticker.C:
			err = s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn(ctx, "radar session write failed", logger.WithError(err))
			}
			return
		}
	}
}

func (s *session) write(msg outgoing) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}
