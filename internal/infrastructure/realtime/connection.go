package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second

	// DefaultSendBuffer bounds the outbound queue of a connection.
	DefaultSendBuffer = 128
)

var (
	ErrConnectionClosed = errors.New("realtime: connection closed")
	ErrBufferExceeded   = errors.New("realtime: connection buffer exceeded")
)

// Connection wraps a websocket and serializes outbound writes through a buffered
// channel drained by a single writer goroutine. It satisfies Handle.
type Connection struct {
	id string

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}

	started     bool
	closeCode   int
	closeReason string
}

// NewConnection constructs a Connection with a bounded send queue.
func NewConnection(ws *websocket.Conn, buffer int) *Connection {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Connection{
		id:    uuid.NewString(),
		ws:    ws,
		send:  make(chan []byte, buffer),
		close: make(chan struct{}),
	}
}

// ID returns the connection handle id.
func (c *Connection) ID() string { return c.id }

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	c.started = true
	go c.writeLoop()
}

// Done is closed once the connection starts shutting down.
func (c *Connection) Done() <-chan struct{} { return c.close }

// Send enqueues payload for delivery without blocking. If the client is slow and
// the buffer is full, the connection is closed to keep backpressure bounded.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.close:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		go c.Close(websocket.CloseGoingAway, "send buffer full")
		return ErrBufferExceeded
	}
}

// Close stops accepting payloads. The write loop flushes what is already
// queued, sends the close frame and releases the socket.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.close)
		if !c.started {
			c.teardown()
		}
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			c.flush()
			c.teardown()
			return
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				c.Close(websocket.CloseInternalServerErr, "write failed")
				c.teardown()
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				c.Close(websocket.CloseInternalServerErr, "ping failed")
				c.teardown()
				return
			}
		}
	}
}

func (c *Connection) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) teardown() {
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, c.closeReason), time.Now().Add(writeWait))
	_ = c.ws.Close()
}

func (c *Connection) writeMessage(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Connection) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
