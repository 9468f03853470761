package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure   = errors.New("backpressure")
	ErrClosed         = errors.New("connection closed")
	ErrClosedByServer = errors.New("closed by server")
)

type Config struct {
	URL        string
	ReadLimit  int64
	PingPeriod time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func (c Config) withDefaults() Config {
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = 30 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 5 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 32
	}
	return c
}

// WsSignalConn is the client side of the signaling channel. It is single use:
// one Dial, then Close.
type WsSignalConn struct {
	cfg    Config
	dialer *websocket.Dialer

	conn   *websocket.Conn
	send   chan core.Frame
	frames chan core.Frame
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	err    error
}

func NewWsSignalConn(cfg Config) *WsSignalConn {
	cfg = cfg.withDefaults()
	return &WsSignalConn{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		send:   make(chan core.Frame, cfg.SendBuffer),
		frames: make(chan core.Frame, cfg.SendBuffer),
		done:   make(chan struct{}),
	}
}

// Dial connects to the signaling endpoint for sessionID, authenticated with a bearer token.
func (c *WsSignalConn) Dial(ctx context.Context, sessionID domain.SessionID, token string) error {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("signal url: %w", err)
	}
	q := u.Query()
	q.Set("session", string(sessionID))
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("signal dial: %w: %s", domain.ErrPermissionDenied, resp.Status)
		}
		return fmt.Errorf("signal dial: %w", err)
	}

	ws.SetReadLimit(c.cfg.ReadLimit)
	pongWait := c.cfg.PingPeriod * 2
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.mu.Lock()
	c.conn = ws
	c.mu.Unlock()

	log.Info().Str("module", "signal").Str("session", string(sessionID)).Msg("signaling connected")
	go c.writePump()
	go c.readPump(pongWait)
	return nil
}

// TrySend queues a frame without blocking.
func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Frames() <-chan core.Frame { return c.frames }
func (c *WsSignalConn) Done() <-chan struct{}     { return c.done }

func (c *WsSignalConn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *WsSignalConn) Close() { c.closeWith(nil) }

// closeWith records the first failure and stops the pumps once. The write
// pump owns the socket and closes it on its way out.
func (c *WsSignalConn) closeWith(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.err = cause
	close(c.send)
	close(c.done)
	c.mu.Unlock()
}
