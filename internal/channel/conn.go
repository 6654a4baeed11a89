package channel

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the minimal surface the supervisor needs from one channel.
type Conn interface {
	// ReadMessage blocks until the next inbound frame or a transport
	// error, including the error produced by a local Close.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens one channel to a session endpoint.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials channels over websocket.
type WebSocketDialer struct {
	WriteTimeout time.Duration
}

func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return &wsConn{conn: conn, writeTimeout: d.WriteTimeout}, nil
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
		deadline,
	)
	return c.conn.Close()
}
