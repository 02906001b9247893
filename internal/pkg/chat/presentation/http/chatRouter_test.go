package http

import (
	"bytes"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-directchat/internal/infrastructure/auth"
	cacheAdapter "go-directchat/internal/infrastructure/cache/adapter"
	"go-directchat/internal/infrastructure/realtime"
	repoAdapter "go-directchat/internal/pkg/chat/persistence/repository/adapter"
)

func newTestEngine(t *testing.T) (*gin.Engine, *realtime.PresenceRegistry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zerolog.Nop()
	presence := realtime.NewPresenceRegistry(log)
	t.Cleanup(presence.Close)

	r := gin.New()
	g := r.Group("/api/v1", auth.Middleware(auth.InsecureVerifier{}, log))
	RegisterRoutes(g, Deps{
		Repo:        repoAdapter.NewMemoryChatRepository(),
		Cache:       cacheAdapter.NewMemoryCache(1024, time.Hour),
		CacheTTL:    time.Minute,
		Presence:    presence,
		Relay:       realtime.NewRelay(presence, log),
		SendBuffer:  16,
		ReadTimeout: 5 * time.Second,
		Log:         log,
	})
	return r, presence
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func resolve(t *testing.T, r *gin.Engine, me, peer string) string {
	t.Helper()
	w := doJSON(t, r, nethttp.MethodPost, "/api/v1/conversations", me, gin.H{"senderId": me, "receiverId": peer})
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.ID
}

func TestConversationRoutes(t *testing.T) {
	r, _ := newTestEngine(t)

	id := resolve(t, r, "alice", "bob")
	assert.Equal(t, id, resolve(t, r, "bob", "alice"), "create-or-get is order independent")

	w := doJSON(t, r, nethttp.MethodPost, "/api/v1/conversations", "alice", gin.H{"senderId": "alice", "receiverId": "alice"})
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)

	w = doJSON(t, r, nethttp.MethodPost, "/api/v1/conversations", "mallory", gin.H{"senderId": "alice", "receiverId": "bob"})
	assert.Equal(t, nethttp.StatusForbidden, w.Code)

	w = doJSON(t, r, nethttp.MethodGet, "/api/v1/conversations/user/alice", "alice", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)

	w = doJSON(t, r, nethttp.MethodGet, "/api/v1/conversations/user/alice", "bob", nil)
	assert.Equal(t, nethttp.StatusForbidden, w.Code)
}

func TestMessageRoutes(t *testing.T) {
	r, _ := newTestEngine(t)
	id := resolve(t, r, "alice", "bob")
	path := "/api/v1/conversations/" + id + "/messages"

	w := doJSON(t, r, nethttp.MethodPost, path, "alice", gin.H{"sender_id": "alice", "body": " hi "})
	require.Equal(t, nethttp.StatusCreated, w.Code, w.Body.String())
	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created["id"])
	assert.Equal(t, "hi", created["body"])
	assert.Equal(t, id, created["conversation_id"])
	assert.NotEmpty(t, created["created_at"])

	w = doJSON(t, r, nethttp.MethodPost, path, "alice", gin.H{"sender_id": "alice", "body": "   "})
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)

	w = doJSON(t, r, nethttp.MethodPost, path, "carol", gin.H{"sender_id": "carol", "body": "hi"})
	assert.Equal(t, nethttp.StatusForbidden, w.Code)

	w = doJSON(t, r, nethttp.MethodPost, path, "alice", gin.H{"sender_id": "bob", "body": "spoof"})
	assert.Equal(t, nethttp.StatusForbidden, w.Code)

	w = doJSON(t, r, nethttp.MethodPost, "/api/v1/conversations/missing/messages", "alice", gin.H{"sender_id": "alice", "body": "hi"})
	assert.Equal(t, nethttp.StatusNotFound, w.Code)

	w = doJSON(t, r, nethttp.MethodGet, path+"?limit=10&offset=0", "bob", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	var page struct {
		Messages []map[string]any `json:"messages"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, "hi", page.Messages[0]["body"])

	w = doJSON(t, r, nethttp.MethodGet, path, "carol", nil)
	assert.Equal(t, nethttp.StatusForbidden, w.Code)
}

func TestRoutesRequireAuthentication(t *testing.T) {
	r, _ := newTestEngine(t)

	w := doJSON(t, r, nethttp.MethodGet, "/api/v1/presence", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, w.Code)

	w = doJSON(t, r, nethttp.MethodGet, "/api/v1/ws", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
}

// socket test helpers

type wsPeer struct {
	t  *testing.T
	ws *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server, token string) *wsPeer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &wsPeer{t: t, ws: ws}
}

func (p *wsPeer) send(event string, data any) {
	p.t.Helper()
	payload, err := realtime.Encode(event, data)
	require.NoError(p.t, err)
	require.NoError(p.t, p.ws.WriteMessage(websocket.TextMessage, payload))
}

func (p *wsPeer) sendRaw(raw string) {
	p.t.Helper()
	require.NoError(p.t, p.ws.WriteMessage(websocket.TextMessage, []byte(raw)))
}

// next reads frames until one with event arrives.
func (p *wsPeer) next(event string) realtime.Envelope {
	p.t.Helper()
	require.NoError(p.t, p.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := p.ws.ReadMessage()
		require.NoError(p.t, err)
		env, err := realtime.Decode(data)
		require.NoError(p.t, err)
		if env.Event == event {
			return env
		}
	}
}

// waitUsers reads presence snapshots until one equals want.
func (p *wsPeer) waitUsers(want ...string) {
	p.t.Helper()
	for {
		var users []string
		require.NoError(p.t, p.next(realtime.EventGetUsers).DecodeData(&users))
		if assert.ObjectsAreEqual(want, users) {
			return
		}
	}
}

func (p *wsPeer) nextError() realtime.ErrorPayload {
	p.t.Helper()
	var e realtime.ErrorPayload
	require.NoError(p.t, p.next(realtime.EventError).DecodeData(&e))
	return e
}

func TestSocketPresenceAndRelay(t *testing.T) {
	r, presence := newTestEngine(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	alice := dial(t, srv, "alice")
	alice.send(realtime.EventAddUser, "alice")
	alice.waitUsers("alice")

	bob := dial(t, srv, "bob")
	bob.send(realtime.EventAddUser, "bob")
	bob.waitUsers("alice", "bob")
	alice.waitUsers("alice", "bob")

	bob.send(realtime.EventSendMessage, realtime.SendMessagePayload{
		SenderID: "bob", ReceiverID: "alice", Message: "hello", Timestamp: 1772366400000,
	})
	var got realtime.GetMessagePayload
	require.NoError(t, alice.next(realtime.EventGetMessage).DecodeData(&got))
	assert.Equal(t, realtime.GetMessagePayload{SenderID: "bob", Message: "hello", Timestamp: 1772366400000}, got)

	// alice leaves; bob sees the new snapshot and relays to her are dropped silently
	require.NoError(t, alice.ws.Close())
	bob.waitUsers("bob")
	assert.False(t, presence.IsOnline("alice"))

	bob.send(realtime.EventSendMessage, realtime.SendMessagePayload{SenderID: "bob", ReceiverID: "alice", Message: "anyone?"})
	bob.send(realtime.EventGetUsers, nil)
	assert.Equal(t, "unsupported_type", bob.nextError().Code, "no error for the dropped relay precedes this one")
}

func TestSocketErrorFrames(t *testing.T) {
	r, _ := newTestEngine(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	bob := dial(t, srv, "bob")
	bob.send(realtime.EventAddUser, "bob")
	bob.waitUsers("bob")

	bob.send(realtime.EventSendMessage, realtime.SendMessagePayload{SenderID: "alice", ReceiverID: "carol", Message: "spoof"})
	assert.Equal(t, "forbidden", bob.nextError().Code)

	bob.send(realtime.EventSendMessage, realtime.SendMessagePayload{SenderID: "bob", ReceiverID: "alice", Message: "  "})
	assert.Equal(t, "bad_request", bob.nextError().Code)

	bob.sendRaw("not json")
	assert.Equal(t, "bad_request", bob.nextError().Code)

	bob.send("joinRoom", "x")
	assert.Equal(t, "unsupported_type", bob.nextError().Code)
}

func TestSocketAddUserForAnotherIdentityClosesSession(t *testing.T) {
	r, presence := newTestEngine(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	mallory := dial(t, srv, "mallory")
	mallory.send(realtime.EventAddUser, "alice")
	assert.Equal(t, "unauthorized", mallory.nextError().Code)

	require.NoError(t, mallory.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := mallory.ws.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), err.Error())
			break
		}
	}
	assert.Empty(t, presence.Snapshot())
}
