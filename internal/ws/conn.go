package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrConnClosed is returned by Push once the connection has been closed.
	ErrConnClosed = errors.New("connection closed")
	// ErrBufferFull is returned by Push when the outbound buffer has no room.
	ErrBufferFull = errors.New("outbound buffer full")
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Handle is a live connection the registry can hand out to forwarders.
type Handle interface {
	ID() string
	Push(payload []byte) error
	Closed() bool
}

// Conn wraps a gorilla websocket with a buffered outbound queue drained by
// WritePump. Push never blocks.
type Conn struct {
	ws        *websocket.Conn
	info      ConnInfo
	send      chan []byte
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewConn wraps ws. Call WritePump in its own goroutine.
func NewConn(ws *websocket.Conn, info ConnInfo) *Conn {
	return &Conn{
		ws:   ws,
		info: info,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.info.ConnID }

// Info returns the connection metadata.
func (c *Conn) Info() ConnInfo { return c.info }

func (c *Conn) Closed() bool { return c.closed.Load() }

// Push enqueues payload for delivery.
func (c *Conn) Push(payload []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close marks the handle closed and closes the socket. Safe to call twice.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		if c.ws != nil {
			err = c.ws.Close()
		}
	})
	return err
}

// WritePump writes queued payloads and keepalive pings until the connection
// closes or a write fails.
func (c *Conn) WritePump() error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return nil
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				_ = c.Close()
				return err
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return err
			}
		}
	}
}

// ReadPump calls onFrame for every inbound text frame until the peer goes
// away or a read fails.
func (c *Conn) ReadPump(onFrame func([]byte)) error {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		onFrame(frame)
	}
}
