package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/logging"
	"github.com/muurk/climanode/internal/state"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBuffer = 32
)

// SettingsFunc persists settings accepted from the UI.
type SettingsFunc func(SettingValue) error

// UI is the WebSocket adapter. It tracks connected clients, turns their
// messages into commands and broadcasts results and sensor updates.
type UI struct {
	cfg        AdapterConfig
	upgrader   websocket.Upgrader
	onSettings SettingsFunc
	log        *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	ui     *UI
	conn   *websocket.Conn
	send   chan []byte
	remote string
	once   sync.Once
}

// NewUI returns a UI adapter. checkOrigin may be nil to accept any origin.
func NewUI(cfg AdapterConfig, checkOrigin func(*http.Request) bool) *UI {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &UI{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log:     logging.Named("gateway.ui"),
		clients: make(map[*client]struct{}),
	}
}

// OnSettings registers the hook called after a setting page updated the
// store.
func (u *UI) OnSettings(fn SettingsFunc) {
	u.onSettings = fn
}

// Run broadcasts every dispatched result until ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	sub := u.cfg.Hub.Subscribe("ui", 0)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-sub.C():
			msg, err := EncodeUI(PageDeviceUpdate, DeviceValue{
				GPIO:   u.cfg.Pins.Pin(res.Target),
				Status: device.StatusString(res.NewState),
			})
			if err != nil {
				u.log.Error("Failed to encode device update", zap.Error(err))
				continue
			}
			u.Broadcast(msg)
		}
	}
}

// ServeHTTP upgrades the request and serves the connection.
func (u *UI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		u.log.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	c := &client{ui: u, conn: conn, send: make(chan []byte, sendBuffer), remote: r.RemoteAddr}
	u.register(c)
	logging.LogConnection(c.remote, "websocket_upgraded")

	go c.writePump()
	c.readPump(r.Context())
}

func (u *UI) register(c *client) {
	u.mu.Lock()
	u.clients[c] = struct{}{}
	n := len(u.clients)
	u.mu.Unlock()
	u.cfg.Metrics.SetWebSocketClients(n)
}

func (u *UI) unregister(c *client) {
	u.mu.Lock()
	_, ok := u.clients[c]
	delete(u.clients, c)
	n := len(u.clients)
	u.mu.Unlock()
	if ok {
		c.close()
		u.cfg.Metrics.SetWebSocketClients(n)
		logging.LogConnection(c.remote, "websocket_closed")
	}
}

// Clients returns the number of connected clients.
func (u *UI) Clients() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.clients)
}

// Broadcast queues msg for every client. A client that cannot keep up is
// disconnected.
func (u *UI) Broadcast(msg []byte) {
	var slow []*client

	u.mu.Lock()
	for c := range u.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	u.mu.Unlock()

	for _, c := range slow {
		u.log.Warn("Dropping slow WebSocket client", zap.String("remote_addr", c.remote))
		u.unregister(c)
	}
}

// BroadcastSensor pushes a sensor page to every client.
func (u *UI) BroadcastSensor(r device.Reading, displayState string) error {
	msg, err := EncodeUI(PageSensor, SensorValue{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		State:       displayState,
	})
	if err != nil {
		return err
	}
	u.Broadcast(msg)
	return nil
}

// CloseAll disconnects every client.
func (u *UI) CloseAll() {
	u.mu.Lock()
	clients := make([]*client, 0, len(u.clients))
	for c := range u.clients {
		clients = append(clients, c)
	}
	u.mu.Unlock()

	for _, c := range clients {
		u.unregister(c)
	}
}

// handleMessage processes one text frame. The returned message, if any, is
// sent only to the originating client.
func (u *UI) handleMessage(ctx context.Context, remote string, data []byte) []byte {
	var msg UIMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		u.log.Warn("Malformed WebSocket message", zap.String("remote_addr", remote), zap.Error(err))
		return errorMessage(device.NewMalformedError("", err))
	}

	switch msg.Page {
	case PageDevice:
		return u.handleDevice(ctx, remote, msg.Value)
	case PageSetting:
		return u.handleSetting(remote, msg.Value)
	default:
		u.log.Warn("Unknown UI page", zap.String("remote_addr", remote), zap.String("page", msg.Page))
		return errorMessage(device.NewMalformedError("unknown page", nil))
	}
}

func (u *UI) handleDevice(ctx context.Context, remote string, raw json.RawMessage) []byte {
	var v DeviceValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return errorMessage(device.NewMalformedError("", err))
	}

	cmd, err := commandFor(u.cfg.Pins, v.GPIO, v.Status, u.cfg.AllowRelease)
	if err != nil {
		u.log.Warn("Rejected UI command", zap.String("remote_addr", remote), zap.Error(err))
		return errorMessage(err)
	}
	cmd.Origin = device.ChannelUI
	cmd.CorrelationID = "ui-" + uuid.NewString()

	if err := u.cfg.Queue.Enqueue(ctx, cmd, u.cfg.EnqueueTimeout); err != nil {
		u.cfg.Metrics.Backpressure(device.ChannelUI)
		u.log.Warn("UI command not queued", zap.String("remote_addr", remote), zap.Error(err))
		return errorMessage(err)
	}
	u.cfg.Metrics.SetQueueDepth(u.cfg.Queue.Len())
	u.log.Info("UI command queued",
		zap.String("remote_addr", remote),
		zap.String("target", cmd.Target.String()),
		zap.String("status", v.Status),
		zap.String("correlation_id", cmd.CorrelationID),
	)
	return nil
}

func (u *UI) handleSetting(remote string, raw json.RawMessage) []byte {
	var v SettingValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return errorMessage(device.NewMalformedError("", err))
	}

	updates := []struct {
		field state.Field
		value string
	}{
		{state.FieldWifiSSID, v.SSID},
		{state.FieldWifiPass, v.Password},
		{state.FieldCloudToken, v.Token},
		{state.FieldCloudServer, v.Server},
		{state.FieldCloudPort, v.Port},
	}
	for _, up := range updates {
		if up.value == "" {
			continue
		}
		if err := u.cfg.Store.SetConfigField(up.field, up.value); err != nil {
			u.cfg.Metrics.LockTimeout("gateway")
			return errorMessage(err)
		}
	}

	if u.onSettings != nil {
		if err := u.onSettings(v); err != nil {
			u.log.Error("Failed to persist settings", zap.Error(err))
			return errorMessage(device.NewMalformedError("settings not saved", err))
		}
	}
	u.log.Info("Settings updated from UI", zap.String("remote_addr", remote))
	return nil
}

func errorMessage(err error) []byte {
	msg, _ := EncodeUI(PageError, ErrorValue{Message: device.WireMessage(err)})
	return msg
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// reply queues a message for this client only.
func (c *client) reply(msg []byte) {
	c.ui.mu.Lock()
	defer c.ui.mu.Unlock()
	if _, ok := c.ui.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.ui.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.ui.log.Info("WebSocket closed unexpectedly", zap.String("remote_addr", c.remote), zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		logging.LogWebSocketMessage(c.remote, "received", data)

		if reply := c.ui.handleMessage(ctx, c.remote, data); reply != nil {
			c.reply(reply)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			logging.LogWebSocketMessage(c.remote, "sent", msg)
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
