// Package realtime pushes notifications to connected browsers over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/uteshop/uteshop-api/internal/core"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Message is the envelope written to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	ws     *websocket.Conn
	send   chan []byte
	feeds  []string
	closed sync.Once
}

func (c *client) close() {
	c.closed.Do(func() { close(c.send) })
}

// Hub tracks open connections per feed. A feed is a user id, or the admin
// feed for admins.
type Hub struct {
	tokens   core.TokenIssuer
	revoker  core.TokenRevoker
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu    sync.RWMutex
	feeds map[string]map[*client]struct{}
	wg    sync.WaitGroup
}

// NewHub accepts upgrades only from allowedOrigins; an empty list allows any.
func NewHub(tokens core.TokenIssuer, revoker core.TokenRevoker, allowedOrigins []string, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		tokens:  tokens,
		revoker: revoker,
		log:     log.With("component", "realtime"),
		feeds:   make(map[string]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeHTTP authenticates the ?token= access token and upgrades the request.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "websocket upgrade failed", "err", err)
		return
	}

	feeds := []string{claims.UserID}
	if claims.Role == core.RoleAdmin {
		feeds = append(feeds, core.AdminRecipient)
	}
	c := &client{ws: ws, send: make(chan []byte, sendBuffer), feeds: feeds}
	h.register(c)

	h.wg.Add(2)
	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) authenticate(r *http.Request) (core.TokenClaims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return core.TokenClaims{}, core.ErrUnauthorized
	}
	claims, err := h.tokens.ParseAccess(token)
	if err != nil {
		return core.TokenClaims{}, err
	}
	if h.revoker != nil {
		revoked, err := h.revoker.IsRevoked(r.Context(), claims.JTI)
		if err != nil {
			return core.TokenClaims{}, err
		}
		if revoked {
			return core.TokenClaims{}, core.ErrUnauthorized
		}
	}
	return claims, nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, f := range c.feeds {
		if h.feeds[f] == nil {
			h.feeds[f] = make(map[*client]struct{})
		}
		h.feeds[f][c] = struct{}{}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, f := range c.feeds {
		delete(h.feeds[f], c)
		if len(h.feeds[f]) == 0 {
			delete(h.feeds, f)
		}
	}
	c.close()
}

// readLoop only services control frames; clients never send data.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer h.unregister(c)

	c.ws.SetReadLimit(512)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send writes msg to every connection on feed and returns how many got it.
// Connections too slow to keep up are dropped.
func (h *Hub) Send(feed string, msg Message) (int, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("encode %s message: %w", msg.Type, err)
	}

	h.mu.RLock()
	var slow []*client
	sent := 0
	for c := range h.feeds[feed] {
		select {
		case c.send <- b:
			sent++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow websocket client", "feed", feed)
		h.unregister(c)
	}
	return sent, nil
}

// HandleNotification is the notification.created event handler.
func (h *Hub) HandleNotification(ctx context.Context, e core.Event) error {
	var n core.Notification
	if err := e.Decode(&n); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	sent, err := h.Send(n.Recipient, Message{Type: "notification", Data: n})
	if err != nil {
		return err
	}
	if sent > 0 {
		h.log.DebugContext(ctx, "notification pushed", "recipient", n.Recipient, "connections", sent)
	}
	return nil
}

// Connections reports how many connections are open on feed.
func (h *Hub) Connections(feed string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.feeds[feed])
}

// Close disconnects every client and waits for their goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*client
	for _, cs := range h.feeds {
		for c := range cs {
			all = append(all, c)
		}
	}
	h.feeds = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.close()
	}
	h.wg.Wait()
}
