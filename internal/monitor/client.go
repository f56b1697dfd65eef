// ABOUTME: WebSocket client for following a renderer's monitor stream
// ABOUTME: Handles connection, the server/hello handshake and message reads
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Sendspin/offline-render/internal/protocol"
)

const helloTimeout = 5 * time.Second

// Client is a connected monitor
type Client struct {
	conn  *websocket.Conn
	hello protocol.ServerHello
}

// Dial connects to the monitor websocket at addr (host:port) and waits for
// server/hello. An empty path uses the default monitor path.
func Dial(ctx context.Context, addr, path string) (*Client, error) {
	if path == "" {
		path = protocol.Path
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: path}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c := &Client{conn: conn}
	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}
	return c, nil
}

func (c *Client) handshake() error {
	c.conn.SetReadDeadline(time.Now().Add(helloTimeout))
	env, err := c.Next()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	if env.Type != protocol.TypeServerHello {
		return fmt.Errorf("expected %s, got %s", protocol.TypeServerHello, env.Type)
	}
	if err := env.Decode(&c.hello); err != nil {
		return err
	}
	if c.hello.Version != protocol.Version {
		return fmt.Errorf("unsupported protocol version %d", c.hello.Version)
	}
	return nil
}

// Hello returns the server's greeting
func (c *Client) Hello() protocol.ServerHello {
	return c.hello
}

// Next blocks for the next message
func (c *Client) Next() (protocol.Envelope, error) {
	var env protocol.Envelope
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("failed to parse message: %w", err)
	}
	return env, nil
}

// Follow passes messages to handle until a session ends, ctx is cancelled
// or the connection drops. It returns nil after a terminal message.
func (c *Client) Follow(ctx context.Context, handle func(protocol.Envelope)) error {
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	for {
		env, err := c.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		handle(env)
		if protocol.Terminal(env.Type) {
			return nil
		}
	}
}

// Close sends a close frame and closes the connection
func (c *Client) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
