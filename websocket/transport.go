package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame
	writeWait = 10 * time.Second

	// Maximum inbound frame size
	maxMessageSize = 512 * 1024
)

// Conn is one open transport connection. ReadMessage is called from a
// single reader goroutine while WriteMessage and Close are called from
// the session loop.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a transport connection for a room
type Dialer interface {
	Dial(ctx context.Context, roomID int64) (Conn, error)
}

// GorillaDialer dials {URL}/{roomID} with gorilla/websocket
type GorillaDialer struct {
	URL         string
	Header      http.Header
	IdleTimeout time.Duration // 0 disables the read deadline
	dialer      *websocket.Dialer
}

// NewGorillaDialer creates a dialer for the chat websocket endpoint
func NewGorillaDialer(url string, header http.Header, idleTimeout time.Duration) *GorillaDialer {
	return &GorillaDialer{
		URL:         strings.TrimRight(url, "/"),
		Header:      header,
		IdleTimeout: idleTimeout,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 45 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// Dial opens the room connection. The handshake is bounded by ctx.
func (d *GorillaDialer) Dial(ctx context.Context, roomID int64) (Conn, error) {
	url := fmt.Sprintf("%s/%d", d.URL, roomID)
	conn, resp, err := d.dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}

	conn.SetReadLimit(maxMessageSize)
	c := &gorillaConn{conn: conn, idleTimeout: d.IdleTimeout}
	if d.IdleTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(d.IdleTimeout))
		conn.SetPingHandler(c.handlePing)
	}
	return c, nil
}

type gorillaConn struct {
	conn        *websocket.Conn
	idleTimeout time.Duration
}

// handlePing extends the read deadline and answers with a pong
func (c *gorillaConn) handlePing(appData string) error {
	c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	err := c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return nil
	}
	return err
}

func (c *gorillaConn) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if c.idleTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *gorillaConn) WriteMessage(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal close frame before tearing the connection down
func (c *gorillaConn) Close() error {
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

// isUnexpectedClose reports whether a read error deserves a log line
func isUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure)
}
