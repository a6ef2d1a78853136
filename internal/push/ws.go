package push

import (
	"context"

	"github.com/coder/websocket"
)

// wsConn adapts a coder/websocket.Conn to the registry's Conn interface.
type wsConn struct {
	conn *websocket.Conn
}

// WrapWebsocket wraps an accepted WebSocket connection for registration.
func WrapWebsocket(c *websocket.Conn) Conn {
	return &wsConn{conn: c}
}

func (c *wsConn) Write(ctx context.Context, p []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, p)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
