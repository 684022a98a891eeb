package events

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-puzzle/pkg/puzzledto"
)

// Watcher follows one session's event stream, reconnecting with backoff.
type Watcher struct {
	url                  string
	maxReconnectAttempts int
	reconnectDelay       time.Duration
	logger               *zap.Logger
}

// NewWatcher builds a watcher for session on the hub at baseURL
// (ws:// or wss://).
func NewWatcher(baseURL, session string, maxReconnectAttempts int, reconnectDelay time.Duration, logger *zap.Logger) (*Watcher, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse events url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("unsupported events url scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("session", session)
	u.RawQuery = q.Encode()
	if logger == nil {
		logger = zap.NewNop()
	}
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	return &Watcher{
		url:                  u.String(),
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		logger:               logger,
	}, nil
}

// Run delivers events to fn until ctx ends or reconnects are exhausted.
func (w *Watcher) Run(ctx context.Context, fn func(puzzledto.Event)) error {
	attempts := 0
	for {
		err := w.once(ctx, fn, func() { attempts = 0 })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var ce websocket.CloseError
		if errors.As(err, &ce) && ce.Code == websocket.StatusNormalClosure {
			return nil
		}
		attempts++
		if attempts > w.maxReconnectAttempts {
			return err
		}
		w.logger.Info("events_reconnect", zap.Int("attempt", attempts), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.backoff(attempts)):
		}
	}
}

func (w *Watcher) once(ctx context.Context, fn func(puzzledto.Event), connected func()) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, w.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	cancel()
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
	connected()

	for {
		var msg puzzledto.Event
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		fn(msg)
	}
}

func (w *Watcher) backoff(attempt int) time.Duration {
	d := w.reconnectDelay * time.Duration(1<<uint(attempt-1))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
