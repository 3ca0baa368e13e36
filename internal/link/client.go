// Package link mantiene un socket TCP hacia socket-tcp-proxy y publica
// eventos NDJSON (uno por línea).
package link

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"simfleet-svr/internal/observability"
)

var ErrNotConnected = errors.New("link: not connected")

// Client es seguro para uso concurrente. Un *Client nil descarta los eventos.
type Client struct {
	addr   string
	logger *slog.Logger

	// OnLine recibe cada línea que llega del proxy.
	OnLine func(line []byte)

	DialRetry      time.Duration
	ReconnectDelay time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// New con addr == "" deja el link deshabilitado (devuelve nil).
func New(addr string, lg *slog.Logger) *Client {
	if addr == "" {
		lg.Info("link: disabled (no proxy address configured)")
		return nil
	}
	return &Client{
		addr:           addr,
		logger:         lg.With("component", "link"),
		DialRetry:      5 * time.Second,
		ReconnectDelay: 2 * time.Second,
	}
}

// Run conecta y reconecta hasta que ctx se cancele.
func (c *Client) Run(ctx context.Context) {
	if c == nil {
		return
	}
	go func() {
		<-ctx.Done()
		if conn := c.getConn(); conn != nil {
			_ = conn.Close()
		}
	}()

	var d net.Dialer
	for ctx.Err() == nil {
		conn, err := d.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			c.logger.Error("link: dial failed", "addr", c.addr, "err", err)
			if !sleep(ctx, c.DialRetry) {
				return
			}
			continue
		}

		c.setConn(conn)
		c.logger.Info("link: connected", "remote", conn.RemoteAddr().String())

		c.readLoop(conn)

		c.clearConn(conn)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("link: connection closed, reconnecting...")
		if !sleep(ctx, c.ReconnectDelay) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Client) clearConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) getConn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Connected indica si hay socket abierto ahora mismo.
func (c *Client) Connected() bool {
	return c != nil && c.getConn() != nil
}

func (c *Client) readLoop(conn net.Conn) {
	r := bufio.NewScanner(conn)
	for r.Scan() {
		line := r.Bytes()
		if c.OnLine != nil {
			c.OnLine(append([]byte(nil), line...))
		} else {
			c.logger.Info("link: incoming line", "line", string(line))
		}
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		c.logger.Warn("link: read error", "err", err)
	}
}

func (c *Client) sendNDJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	// la escritura va bajo el lock para que dos eventos no se mezclen
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	_, err = c.conn.Write(append(b, '\n'))
	return err
}

func (c *Client) send(kind string, v any) {
	if c == nil {
		return
	}
	if err := c.sendNDJSON(v); err != nil {
		observability.LinkSendErrors.Inc()
		c.logger.Warn("link: send failed", "event", kind, "err", err)
	}
}
