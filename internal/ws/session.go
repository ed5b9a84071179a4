package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/auth"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/metrics"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/presence"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/protocol"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/repository"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/service"
)

// PresenceMirror is the optional Redis reflection of presence state.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error
}

type Config struct {
	PingInterval   time.Duration
	WriteDeadline  time.Duration
	MaxMessageSize int64
}

// Handler drives the lifecycle of each live connection: authenticate on
// handshake, register presence, join the caller's conversation rooms, then
// dispatch inbound events until disconnect.
type Handler struct {
	hub      *Hub
	registry *presence.Registry
	convs    repository.ConversationStore
	users    repository.UserStore
	svc      *service.Messaging
	tokens   *auth.TokenManager
	mirror   PresenceMirror
	metrics  *metrics.Metrics
	log      *zap.SugaredLogger
	cfg      Config
}

func NewHandler(hub *Hub, registry *presence.Registry, convs repository.ConversationStore,
	users repository.UserStore, svc *service.Messaging, tokens *auth.TokenManager,
	mirror PresenceMirror, m *metrics.Metrics, log *zap.SugaredLogger, cfg Config) *Handler {
	h := &Handler{
		hub:      hub,
		registry: registry,
		convs:    convs,
		users:    users,
		svc:      svc,
		tokens:   tokens,
		mirror:   mirror,
		metrics:  m,
		log:      log,
		cfg:      cfg,
	}
	// every presence change pushes the fresh online snapshot to everyone
	registry.OnChange(func(online []string) {
		hub.BroadcastAll(protocol.Marshal(protocol.EventOnlineUsers, "", online))
	})
	return h
}

// Upgrade guards the websocket route; non-upgrade requests get 426.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve runs one connection from handshake to close. The read loop is the
// only reader, so a connection's own events are handled in order.
func (h *Handler) Serve(conn *websocket.Conn) {
	token := conn.Query("token")
	if token == "" {
		token = conn.Headers("Authorization")
	}
	userID, err := h.tokens.Validate(token)
	if err != nil {
		// rejected connections never reach the active state
		_ = conn.WriteMessage(websocket.TextMessage, protocol.ErrorAck("", "authentication failed"))
		_ = conn.Close()
		return
	}

	connID := uuid.NewString()
	client := NewClient(conn, connID, userID)

	h.hub.Add(client)
	h.registry.Register(userID, connID)
	if h.mirror != nil {
		if err := h.mirror.SetOnline(context.Background(), userID); err != nil {
			h.log.Warnw("presence mirror set online failed", "user", userID, "err", err)
		}
	}
	if h.metrics != nil {
		h.metrics.ConnectionsTotal.Inc()
		h.metrics.ActiveConnections.Inc()
	}

	h.joinRooms(userID, connID)

	go client.WritePump(h.cfg.PingInterval, h.cfg.WriteDeadline)

	conn.SetReadLimit(h.cfg.MaxMessageSize)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if mt != websocket.TextMessage {
			continue
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case protocol.EventSendMessage:
			h.handleSend(client, env)
		case protocol.EventTyping:
			h.handleTyping(client, env)
		case protocol.EventMarkRead:
			h.handleMarkRead(client, env)
		default:
			// unknown kinds are ignored
		}
	}

	h.hub.Remove(connID)
	h.registry.Unregister(userID, connID)
	client.Close()

	now := time.Now().UTC()
	if h.mirror != nil && !h.registry.IsOnline(userID) {
		if err := h.mirror.SetOffline(context.Background(), userID, now); err != nil {
			h.log.Warnw("presence mirror set offline failed", "user", userID, "err", err)
		}
	}
	if err := h.users.TouchLastSeen(context.Background(), userID, now); err != nil {
		h.log.Warnw("touch last_seen failed", "user", userID, "err", err)
	}
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
}

// joinRooms subscribes the connection to every conversation the user
// belongs to. A listing failure leaves the connection usable for sends.
func (h *Handler) joinRooms(userID, connID string) {
	convs, err := h.convs.ListForUser(context.Background(), userID)
	if err != nil {
		h.log.Warnw("join rooms failed", "user", userID, "err", err)
		return
	}
	for _, c := range convs {
		h.hub.Join(c.ID.Hex(), connID)
	}
}

func (h *Handler) handleSend(client *Client, env protocol.Envelope) {
	var p protocol.SendMessagePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.ConversationID == "" {
		h.hub.SendTo(client.ID, protocol.ErrorAck(env.ID, "invalid conversationId"))
		return
	}

	msg, err := h.svc.Send(context.Background(), client.UserID, p.ConversationID, p.Text, p.Attachments)
	if err != nil {
		h.hub.SendTo(client.ID, protocol.ErrorAck(env.ID, service.AckReason(err)))
		return
	}
	// broadcast already went to the room; the ack goes to the sender only
	h.hub.SendTo(client.ID, protocol.OkAck(env.ID, msg))
}

func (h *Handler) handleTyping(client *Client, env protocol.Envelope) {
	var p protocol.TypingPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.ConversationID == "" {
		return
	}
	h.hub.BroadcastExcept(p.ConversationID, protocol.Marshal(protocol.EventTyping, "",
		protocol.TypingEvent{ConversationID: p.ConversationID, UserID: client.UserID}), client.ID)
}

func (h *Handler) handleMarkRead(client *Client, env protocol.Envelope) {
	var p protocol.MarkReadPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.ConversationID == "" {
		return
	}
	if err := h.svc.MarkRead(context.Background(), client.UserID, p.ConversationID); err != nil {
		h.log.Warnw("mark_read failed", "user", client.UserID, "conversation", p.ConversationID, "err", err)
	}
}
