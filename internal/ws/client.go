package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// errClientGone is returned by Client.Send when the client is closed or its
// send buffer is full; either way the peer is treated as gone.
var errClientGone = errors.New("client closed or send buffer full")

// Client represents one open WebSocket connection.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewClient creates a Client for the given connection and id.
func NewClient(conn *websocket.Conn, id string) *Client {
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// Send queues a message for delivery. It fails if the client is closed or
// the send buffer is full; a full buffer also closes the client, since a
// peer that stopped draining is presumed gone.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClientGone
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.closeLocked()
		return errClientGone
	}
}

// Close closes the client's send channel. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed returns true if the client is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ID returns the client id assigned at connect time.
func (c *Client) ID() string {
	return c.id
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// SendChan returns the outbound channel drained by the write pump.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}
