package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bissquit/orgstatus/internal/pkg/ctxlog"
	"github.com/bissquit/orgstatus/internal/pkg/httputil"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
	maxClientMessage    = 4096
)

// HandlerConfig configures the WebSocket transport.
type HandlerConfig struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// Handler upgrades HTTP requests to WebSocket subscriptions on the hub.
type Handler struct {
	hub      *Hub
	config   HandlerConfig
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler.
func NewHandler(hub *Hub, config HandlerConfig) *Handler {
	if config.PingInterval <= 0 {
		config.PingInterval = defaultPingInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultWriteTimeout
	}

	origins := make(map[string]bool, len(config.AllowedOrigins))
	for _, o := range config.AllowedOrigins {
		origins[o] = true
	}

	return &Handler{
		hub:    hub,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}
}

// clientMessage is sent by clients to change their channel set.
type clientMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// controlMessage acknowledges a client message.
type controlMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Message string `json:"message,omitempty"`
}

// ServeHTTP handles GET /realtime?organization={id}. When organization is
// given, the connection starts subscribed to all of its channels.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())

	var channels []string
	if orgID := r.URL.Query().Get("organization"); orgID != "" {
		if _, err := uuid.Parse(orgID); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid organization id")
			return
		}
		channels = OrganizationChannels(orgID)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("failed to upgrade websocket", "error", err)
		return
	}

	sub := h.hub.Subscribe(channels...)
	logger.Info("realtime subscriber connected",
		slog.String("subscriber_id", sub.ID()),
		slog.Int("channels", len(channels)))

	replies := make(chan controlMessage, 8)
	writerDone := make(chan struct{})
	go h.writePump(conn, sub, replies, writerDone)

	h.readPump(conn, sub, replies, writerDone)

	h.hub.Unsubscribe(sub)
	<-writerDone
	logger.Info("realtime subscriber disconnected", slog.String("subscriber_id", sub.ID()))
}

func (h *Handler) readPump(conn *websocket.Conn, sub *Subscriber, replies chan<- controlMessage, writerDone <-chan struct{}) {
	pongWait := 2 * h.config.PingInterval

	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		reply := h.handleClientMessage(sub, msg)

		select {
		case replies <- reply:
		case <-writerDone:
			return
		}
	}
}

func (h *Handler) handleClientMessage(sub *Subscriber, msg clientMessage) controlMessage {
	if _, _, err := ParseChannel(msg.Channel); err != nil {
		return controlMessage{Type: "error", Channel: msg.Channel, Message: err.Error()}
	}

	switch msg.Type {
	case "subscribe":
		h.hub.Join(sub, msg.Channel)
		return controlMessage{Type: "subscribed", Channel: msg.Channel}
	case "unsubscribe":
		h.hub.Leave(sub, msg.Channel)
		return controlMessage{Type: "unsubscribed", Channel: msg.Channel}
	default:
		return controlMessage{Type: "error", Channel: msg.Channel, Message: "unknown message type"}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, sub *Subscriber, replies <-chan controlMessage, writerDone chan<- struct{}) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(writerDone)
	}()

	for {
		select {
		case event, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "subscription closed"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}

		case reply := <-replies:
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteJSON(reply); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
