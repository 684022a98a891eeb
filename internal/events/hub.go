// Package events fans session events out to websocket subscribers.
package events

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-puzzle/internal/puzzle"
	"github.com/park285/cheese-puzzle/pkg/puzzledto"
)

// AllSessions subscribes to every session.
const AllSessions = "*"

const (
	defaultBuffer       = 32
	defaultWriteTimeout = 5 * time.Second
	defaultPingInterval = 30 * time.Second
)

type subscriber struct {
	session string
	ch      chan puzzledto.Event
	// dropped is closed when the hub gives up on a slow subscriber.
	dropped  chan struct{}
	dropOnce sync.Once
}

func (s *subscriber) drop() { s.dropOnce.Do(func() { close(s.dropped) }) }

// Hub is an http.Handler upgrading to websocket at ?session=<id>.
type Hub struct {
	logger *zap.Logger

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool

	buffer       int
	writeTimeout time.Duration
	pingInterval time.Duration
	origins      []string

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type HubOption func(*Hub)

func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func WithPingInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithOriginPatterns allows cross-origin browser subscribers.
func WithOriginPatterns(patterns ...string) HubOption {
	return func(h *Hub) { h.origins = append(h.origins, patterns...) }
}

func NewHub(logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		logger:       logger,
		subs:         make(map[*subscriber]struct{}),
		buffer:       defaultBuffer,
		writeTimeout: defaultWriteTimeout,
		pingInterval: defaultPingInterval,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FromSession converts a session event to its wire form.
func FromSession(ev puzzle.Event) puzzledto.Event {
	out := puzzledto.Event{
		Type:      string(ev.Kind),
		SessionID: ev.SessionID,
		Step:      ev.Step,
		State:     ev.State.String(),
		FEN:       ev.FEN,
		At:        ev.At,
	}
	if ev.Move.From.Valid() && ev.Move.To.Valid() {
		out.Move = ev.Move.String()
	}
	return out
}

// Publish delivers ev to subscribers of its session and to AllSessions
// subscribers. It never blocks; a subscriber whose buffer is full is dropped.
func (h *Hub) Publish(ev puzzle.Event) {
	h.Broadcast(FromSession(ev))
}

func (h *Hub) Broadcast(msg puzzledto.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for s := range h.subs {
		if s.session != AllSessions && s.session != msg.SessionID {
			continue
		}
		select {
		case s.ch <- msg:
		default:
			h.logger.Warn("events_subscriber_dropped", zap.String("session_id", s.session))
			s.drop()
		}
	}
}

// Subscribers counts live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session := strings.TrimSpace(r.URL.Query().Get("session"))
	if session == "" {
		http.Error(w, "session query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		OriginPatterns:  h.origins,
	})
	if err != nil {
		h.logger.Warn("events_accept_failed", zap.Error(err))
		return
	}

	sub := &subscriber{session: session, ch: make(chan puzzledto.Event, h.buffer), dropped: make(chan struct{})}
	if !h.add(sub) {
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.remove(sub)

	// Subscribers never send; CloseRead handles control frames and cancels
	// ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	h.logger.Debug("events_subscribed", zap.String("session_id", session))
	h.pump(ctx, conn, sub)
}

func (h *Hub) pump(ctx context.Context, conn *websocket.Conn, sub *subscriber) {
	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-h.stopCh:
			_ = conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-sub.dropped:
			_ = conn.Close(websocket.StatusTryAgainLater, "subscriber too slow")
			return
		case msg := <-sub.ch:
			wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := wsjson.Write(wctx, conn, msg)
			cancel()
			if err != nil {
				h.logger.Debug("events_write_failed", zap.String("session_id", sub.session), zap.Error(err))
				_ = conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[s] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	h.wg.Done()
}

// Close disconnects every subscriber and waits for their handlers to return.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.stopOnce.Do(func() { close(h.stopCh) })

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
