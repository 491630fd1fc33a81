package mockapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"storefront_go/internal/realtime"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // dev tool, any origin
}

type wsClient struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	userID    string
	sessionID string
}

func (c *wsClient) send(raw []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

// hub tracks connected sessions and relays updates between sessions of the
// same user. Delivery is best effort; a slow client just misses hints.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]bool
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]bool)}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// relay forwards raw to every other session of the sender's user.
func (h *hub) relay(sender *wsClient, raw []byte) {
	h.mu.Lock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		if c != sender && c.userID == sender.userID && c.userID != "" {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.send(raw); err != nil {
			slog.Debug("Relay failed", slog.String("session", c.sessionID), slog.Any("error", err))
		}
	}
}

// handleWS upgrades the connection and serves the channel protocol: an auth
// message identifies the session, sync_request is acknowledged implicitly and
// update messages are relayed to the user's other sessions.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	client := &wsClient{conn: conn}
	s.hub.add(client)
	defer func() {
		s.hub.remove(client)
		conn.Close()
		slog.Info("Session disconnected", slog.String("session", client.sessionID))
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg realtime.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("Dropping malformed frame", slog.Any("error", err))
			continue
		}

		switch msg.Type {
		case realtime.MsgAuth:
			client.userID = msg.UserID
			client.sessionID = msg.SessionID
			slog.Info("Session authenticated",
				slog.String("user", msg.UserID), slog.String("session", msg.SessionID))
		case realtime.MsgSyncRequest:
			slog.Debug("Sync requested", slog.String("session", msg.SessionID))
		case realtime.MsgUpdate:
			s.hub.relay(client, raw)
		default:
			slog.Debug("Ignoring unknown frame type", slog.String("type", msg.Type))
		}
	}
}
