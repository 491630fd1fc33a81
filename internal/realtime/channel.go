package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State of the channel connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	default:
		return "UNKNOWN"
	}
}

// Subscriber receives every inbound message; filtering is the subscriber's
// responsibility.
type Subscriber func(Message)

// Channel is the best-effort push transport for cross-session state hints.
// Delivery is at-most-once: messages may be silently dropped, and correctness
// never depends on them. The next full fetch is the consistency mechanism.
//
// One Channel object is constructed at application start and passed to
// consumers; there is no package-level socket state.
type Channel struct {
	url     string
	userID  string
	session string
	domains SyncDomains
	delay   time.Duration // fixed reconnect delay

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	timer   *time.Timer // at most one pending reconnect
	subs    map[int]Subscriber
	nextSub int

	writeMu sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewChannel creates a channel for the given user. domains selects which
// collections the initial sync request asks for.
func NewChannel(url, userID string, domains SyncDomains, reconnectDelay time.Duration) *Channel {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &Channel{
		url:     url,
		userID:  userID,
		session: uuid.NewString(),
		domains: domains,
		delay:   reconnectDelay,
		subs:    make(map[int]Subscriber),
	}
}

// Start begins the connection lifecycle.
func (c *Channel) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.connect()
}

// Stop terminates the channel and waits for the read loop to exit.
func (c *Channel) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()
	c.wg.Wait()
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a callback for every inbound message and returns an
// unsubscribe func.
func (c *Channel) Subscribe(fn Subscriber) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Publish sends an update message, fire-and-forget. Errors are logged; no
// acknowledgement or delivery guarantee exists.
func (c *Channel) Publish(action string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("Dropping unencodable update", slog.String("action", action), slog.Any("error", err))
		return
	}

	msg := Message{
		Type:      MsgUpdate,
		UserID:    c.userID,
		SessionID: c.session,
		Action:    action,
		Payload:   raw,
	}
	if err := c.write(msg); err != nil {
		slog.Debug("Update not delivered", slog.String("action", action), slog.Any("error", err))
	}
}

func (c *Channel) connect() {
	c.mu.Lock()
	// Entering Connecting cancels any stale reconnect timer.
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(c.ctx, c.url, http.Header{})
	if err != nil {
		slog.Warn("Channel dial failed", slog.Any("error", err))
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.authenticate(); err != nil {
		slog.Warn("Channel auth failed", slog.Any("error", err))
		c.handleDisconnect()
		return
	}

	c.mu.Lock()
	c.state = StateAuthenticated
	c.mu.Unlock()
	slog.Info("Channel connected", slog.String("user", c.userID))

	c.wg.Add(1)
	go c.readLoop(conn)
}

// authenticate identifies the session and asks for an initial sync of the
// configured domains.
func (c *Channel) authenticate() error {
	if err := c.write(Message{Type: MsgAuth, UserID: c.userID, SessionID: c.session}); err != nil {
		return fmt.Errorf("auth message: %w", err)
	}
	if err := c.write(Message{Type: MsgSyncRequest, UserID: c.userID, SessionID: c.session, Data: &c.domains}); err != nil {
		return fmt.Errorf("sync request: %w", err)
	}
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				slog.Warn("Channel read error", slog.Any("error", err))
				c.handleDisconnect()
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Malformed payloads never crash the channel.
			slog.Warn("Dropping malformed channel frame", slog.Any("error", err))
			continue
		}

		c.broadcast(msg)
	}
}

// broadcast delivers to every active subscriber regardless of relevance.
func (c *Channel) broadcast(msg Message) {
	c.mu.Lock()
	subs := make([]Subscriber, 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
}

// handleDisconnect tears down the connection and schedules a reconnect.
// Safe to call repeatedly; only one reconnect timer ever exists.
func (c *Channel) handleDisconnect() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	c.scheduleReconnect()
}

func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		return // one pending reconnect at a time
	}
	if c.ctx == nil || c.ctx.Err() != nil {
		return
	}

	slog.Info("Channel reconnect scheduled", slog.Duration("delay", c.delay))
	c.timer = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		c.timer = nil
		c.mu.Unlock()
		if c.ctx.Err() == nil {
			c.connect()
		}
	})
}

func (c *Channel) write(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("channel not connected")
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, raw)
}
