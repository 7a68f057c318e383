package console

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/climanode/internal/gateway"
)

const (
	dialTimeout  = 10 * time.Second
	writeWait    = 5 * time.Second
	inboundQueue = 32
)

// Transport is the message stream the console model drives.
type Transport interface {
	Messages() <-chan gateway.UIMessage
	Err() error
	Send(page string, value any) error
	Close() error
}

// Conn is a WebSocket connection to a node's /ws endpoint.
type Conn struct {
	ws       *websocket.Conn
	messages chan gateway.UIMessage

	writeMu sync.Mutex
	errMu   sync.Mutex
	err     error
}

// Dial connects to url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	c := &Conn{ws: ws, messages: make(chan gateway.UIMessage, inboundQueue)}
	go c.readLoop()
	return c, nil
}

// Messages is closed when the connection ends. Err then reports why.
func (c *Conn) Messages() <-chan gateway.UIMessage {
	return c.messages
}

// Err returns the error that ended the read loop.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) readLoop() {
	defer close(c.messages)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.errMu.Lock()
				c.err = err
				c.errMu.Unlock()
			}
			return
		}
		var msg gateway.UIMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.messages <- msg
	}
}

// Send writes one page.
func (c *Conn) Send(page string, value any) error {
	data, err := gateway.EncodeUI(page, value)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the socket.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return c.ws.Close()
}
