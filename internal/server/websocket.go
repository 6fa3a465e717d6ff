package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	WS_CHANNEL_ENTITY_STATE     = "entity.state"
	WS_CHANNEL_ENTITY_FEATURES  = "entity.features"
	WS_CHANNEL_COMMAND_REJECTED = "command.rejected"

	WS_TYPE_SUBSCRIBE   = "subscribe"
	WS_TYPE_UNSUBSCRIBE = "unsubscribe"
	WS_TYPE_PING        = "ping"
	WS_TYPE_PONG        = "pong"
	WS_TYPE_EVENT       = "event"
	WS_TYPE_RESPONSE    = "response"
	WS_TYPE_ERROR       = "error"

	wsSendBufferSize = 64
	wsPingInterval   = 30 * time.Second
	wsPongWait       = 10 * time.Second
	wsMaxMessageSize = 4096
)

var wsChannels = []string{WS_CHANNEL_ENTITY_STATE, WS_CHANNEL_ENTITY_FEATURES, WS_CHANNEL_COMMAND_REJECTED}

type WSMessage struct {
	Type      string `json:"type"`
	Id        string `json:"id,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

type wsSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub relays event stream traffic to websocket clients. New clients get every
// channel until they narrow it down with an unsubscribe.
type Hub struct {
	clients        map[*wsClient]struct{}
	mu             sync.RWMutex
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	logger         *zap.Logger
}

type wsClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

func NewHub(eventStream *eventstream.EventStream, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:     map[*wsClient]struct{}{},
		eventStream: eventStream,
		logger:      logger.With(zap.String("component", "websocket")),
	}
	if eventStream != nil {
		h.eventStreamSub = eventStream.Subscribe(h.onEvent)
	}
	return h
}

func (h *Hub) onEvent(evt any) {
	switch ev := evt.(type) {
	case domain.EntityStateEvent:
		h.Broadcast(WS_CHANNEL_ENTITY_STATE, ev.Snapshot)
	case domain.EntityFeaturesEvent:
		h.Broadcast(WS_CHANNEL_ENTITY_FEATURES, map[string]any{
			"snapshot": ev.Snapshot,
			"added":    ev.Added.Names(),
			"removed":  ev.Removed.Names(),
		})
	case domain.CommandRejectedEvent:
		h.Broadcast(WS_CHANNEL_COMMAND_REJECTED, map[string]any{
			"device_id": ev.DeviceId,
			"attr":      ev.Command.Attr,
			"command":   ev.Command.Kind,
			"value":     ev.Command.Value,
			"reason":    ev.Reason,
		})
	}
}

func (h *Hub) register(client *wsClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.Int("clients", h.ClientCount()))
}

// unregister closes the send channel only if the client was still registered.
func (h *Hub) unregister(client *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", zap.Int("clients", h.ClientCount()))
}

func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WS_TYPE_EVENT,
		Channel:   channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("websocket: could not encode event", zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.isSubscribed(channel) {
			client.trySend(data)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close drops every client and stops listening to the event stream.
func (h *Hub) Close() {
	if h.eventStreamSub != nil {
		h.eventStream.Unsubscribe(h.eventStreamSub)
		h.eventStreamSub = nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, client)
	}
}

func (s *Server) WebSocketHandler(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return nil
	}
	client := &wsClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{},
	}
	for _, ch := range wsChannels {
		client.subscriptions[ch] = struct{}{}
	}
	s.hub.register(client)

	go client.writePump()
	go client.readPump()
	return nil
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
		c.handleMessage(message)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(wsPongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsPongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handleMessage(data []byte) {
	var msg struct {
		Type    string             `json:"type"`
		Id      string             `json:"id"`
		Payload wsSubscribePayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendResponse("", WS_TYPE_ERROR, map[string]string{"message": "invalid message"})
		return
	}

	switch msg.Type {
	case WS_TYPE_SUBSCRIBE:
		c.mu.Lock()
		for _, ch := range msg.Payload.Channels {
			c.subscriptions[ch] = struct{}{}
		}
		c.mu.Unlock()
		c.sendResponse(msg.Id, WS_TYPE_RESPONSE, map[string]any{"subscribed": msg.Payload.Channels})
	case WS_TYPE_UNSUBSCRIBE:
		c.mu.Lock()
		for _, ch := range msg.Payload.Channels {
			delete(c.subscriptions, ch)
		}
		c.mu.Unlock()
		c.sendResponse(msg.Id, WS_TYPE_RESPONSE, map[string]any{"unsubscribed": msg.Payload.Channels})
	case WS_TYPE_PING:
		c.sendResponse(msg.Id, WS_TYPE_PONG, nil)
	default:
		c.sendResponse(msg.Id, WS_TYPE_ERROR, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

// trySend drops the message when the client is slow or already gone.
func (c *wsClient) trySend(data []byte) {
	defer func() {
		recover()
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *wsClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *wsClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		Id:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}
