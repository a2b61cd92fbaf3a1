package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/token"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type hubFixture struct {
	hub     *Hub
	srv     *httptest.Server
	jwt     *token.JWTService
	revoker *token.MemoryRevoker
}

func newFixture(t *testing.T) *hubFixture {
	t.Helper()
	jwt := token.NewJWTService("access", "refresh", time.Hour, 24*time.Hour)
	revoker := token.NewMemoryRevoker()
	hub := NewHub(jwt, revoker, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &hubFixture{hub: hub, srv: srv, jwt: jwt, revoker: revoker}
}

func (f *hubFixture) dial(t *testing.T, u core.User) *websocket.Conn {
	t.Helper()
	tok, _, err := f.jwt.IssueAccess(u)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/?token=" + tok
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func (f *hubFixture) waitFor(t *testing.T, feed string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.hub.Connections(feed) == n }, 2*time.Second, 10*time.Millisecond)
}

func readMessage(t *testing.T, ws *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := ws.ReadMessage()
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func notificationEvent(t *testing.T, recipient, title string) core.Event {
	t.Helper()
	e, err := core.NewEvent(core.EventNotificationCreated, recipient, core.Notification{
		ID: "n1", Recipient: recipient, Title: title, Type: core.NotifyOrder,
	}, time.Now())
	require.NoError(t, err)
	return e
}

func TestHubPushesToRecipient(t *testing.T) {
	f := newFixture(t)
	alice := f.dial(t, core.User{ID: "u1", Role: core.RoleCustomer})
	admin := f.dial(t, core.User{ID: "a1", Role: core.RoleAdmin})
	f.waitFor(t, "u1", 1)
	f.waitFor(t, core.AdminRecipient, 1)

	require.NoError(t, f.hub.HandleNotification(context.Background(), notificationEvent(t, "u1", "Đơn hàng đã giao")))
	m := readMessage(t, alice)
	assert.Equal(t, "notification", m.Type)
	assert.Equal(t, "Đơn hàng đã giao", m.Data.(map[string]any)["title"])

	require.NoError(t, f.hub.HandleNotification(context.Background(), notificationEvent(t, core.AdminRecipient, "Yêu cầu hoàn trả mới")))
	m = readMessage(t, admin)
	assert.Equal(t, "Yêu cầu hoàn trả mới", m.Data.(map[string]any)["title"])
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, core.User{ID: "u2", Role: core.RoleCustomer})
	f.waitFor(t, "u2", 1)

	require.NoError(t, ws.Close())
	f.waitFor(t, "u2", 0)

	sent, err := f.hub.Send("u2", Message{Type: "ping"})
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestHubRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/"

	_, res, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	tok, claims, err := f.jwt.IssueAccess(core.User{ID: "u3", Role: core.RoleCustomer})
	require.NoError(t, err)
	require.NoError(t, f.revoker.Revoke(context.Background(), claims.JTI, time.Hour))
	_, res, err = websocket.DefaultDialer.Dial(url+"?token="+tok, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}
	assert.True(t, check(req("http://localhost:5173")))
	assert.True(t, check(req("")))
	assert.False(t, check(req("https://evil.example")))
}
