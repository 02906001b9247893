package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-directchat/internal/infrastructure/auth"
	cacheAdapter "go-directchat/internal/infrastructure/cache/adapter"
	"go-directchat/internal/infrastructure/realtime"
	chat "go-directchat/internal/pkg/chat/application/domain"
	"go-directchat/internal/pkg/chat/client"
	repoAdapter "go-directchat/internal/pkg/chat/persistence/repository/adapter"
	chathttp "go-directchat/internal/pkg/chat/presentation/http"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zerolog.Nop()
	presence := realtime.NewPresenceRegistry(log)
	r := gin.New()
	g := r.Group("/api/v1", auth.Middleware(auth.InsecureVerifier{}, log))
	chathttp.RegisterRoutes(g, chathttp.Deps{
		Repo:        repoAdapter.NewMemoryChatRepository(),
		Cache:       cacheAdapter.NewMemoryCache(1024, time.Hour),
		CacheTTL:    time.Minute,
		Presence:    presence,
		Relay:       realtime.NewRelay(presence, log),
		SendBuffer:  16,
		ReadTimeout: 5 * time.Second,
		Log:         log,
	})

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		presence.Close()
		srv.Close()
	})
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
}

// peer is one logged-in user: realtime link, HTTP client and client core.
type peer struct {
	id         string
	http       *HTTPClient
	rt         *RealtimeClient
	reconciler *client.MessageReconciler
	users      chan []string
	inbound    chan chat.RelayEvent
}

func connect(t *testing.T, srv *httptest.Server, id string) *peer {
	t.Helper()
	p := &peer{
		id:      id,
		http:    NewHTTPClient(srv.URL, id, 2*time.Second),
		users:   make(chan []string, 16),
		inbound: make(chan chat.RelayEvent, 16),
	}
	rt, err := DialRealtime(context.Background(), wsURL(srv), id, id, RealtimeHandlers{
		OnUsers:   func(u []string) { p.users <- u },
		OnMessage: func(ev chat.RelayEvent) { p.inbound <- ev },
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	p.rt = rt
	p.reconciler = client.NewMessageReconciler(id, client.NewConversationStore(), p.http, rt)

	require.NoError(t, rt.AddUser())
	return p
}

func (p *peer) waitUsers(t *testing.T, want ...string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case users := <-p.users:
			if assert.ObjectsAreEqual(want, users) {
				return
			}
		case <-timeout:
			t.Fatalf("%s never saw presence %v", p.id, want)
		}
	}
}

// deliver feeds the next relayed event into the reconciler.
func (p *peer) deliver(t *testing.T) {
	t.Helper()
	select {
	case ev := <-p.inbound:
		p.reconciler.HandleInbound(ev)
	case <-time.After(2 * time.Second):
		t.Fatalf("%s received no relay event", p.id)
	}
}

func (p *peer) open(t *testing.T, other string) chat.Conversation {
	t.Helper()
	ctx := context.Background()
	conv, err := p.http.ResolveConversation(ctx, p.id, other)
	require.NoError(t, err)
	history, err := p.http.GetMessages(ctx, conv.ID, 50, 0)
	require.NoError(t, err)
	require.NoError(t, p.reconciler.Open(conv, history))
	return conv
}

func TestHTTPClientRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	c := NewHTTPClient(srv.URL, "alice", time.Second)

	conv, err := c.ResolveConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, [2]string{"alice", "bob"}, conv.Participants)

	saved, err := c.AppendMessage(ctx, conv.ID, "alice", "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	msgs, err := c.GetMessages(ctx, conv.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, saved.ID, msgs[0].ID)

	convs, err := c.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 1)

	_, err = c.AppendMessage(ctx, "missing", "alice", "hi")
	assert.ErrorIs(t, err, chat.ErrTransientDelivery)
	assert.True(t, IsStatus(err, http.StatusNotFound))

	_, err = NewHTTPClient(srv.URL, "", time.Second).Presence(ctx)
	assert.ErrorIs(t, err, chat.ErrUnauthorized)
}

func TestDialRealtimeUnauthorized(t *testing.T) {
	srv := newTestServer(t)

	_, err := DialRealtime(context.Background(), wsURL(srv), "alice", "", RealtimeHandlers{}, zerolog.Nop())
	assert.ErrorIs(t, err, chat.ErrUnauthorized)
}

// Scenario: A and B online in the same conversation. B's message reaches A
// once, and B's own store holds exactly its confirmed copy.
func TestScenarioBothOnline(t *testing.T) {
	srv := newTestServer(t)

	alice := connect(t, srv, "alice")
	alice.waitUsers(t, "alice")
	bob := connect(t, srv, "bob")
	bob.waitUsers(t, "alice", "bob")
	alice.waitUsers(t, "alice", "bob")

	conv := alice.open(t, "bob")
	assert.Equal(t, conv.ID, bob.open(t, "alice").ID)

	h, err := bob.reconciler.Send("hello")
	require.NoError(t, err)
	alice.deliver(t)

	_, err = h.Result()
	require.NoError(t, err)

	got := alice.reconciler.Store().Messages()
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].SenderID)
	assert.Equal(t, "hello", got[0].Body)
	assert.Equal(t, chat.StatusConfirmed, got[0].Status)

	mine := bob.reconciler.Store().Messages()
	require.Len(t, mine, 1, "self-suppression: no echo of bob's own message")
	assert.Equal(t, chat.StatusConfirmed, mine[0].Status)
	assert.NotEmpty(t, mine[0].ServerID)

	select {
	case ev := <-bob.inbound:
		t.Fatalf("bob got his own message relayed: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

// Scenario: A online, B offline. A's message is confirmed by persistence and
// B finds it in history when coming online.
func TestScenarioPeerOffline(t *testing.T) {
	srv := newTestServer(t)

	alice := connect(t, srv, "alice")
	alice.waitUsers(t, "alice")
	alice.open(t, "bob")

	h, err := alice.reconciler.Send("hi")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.reconciler.Store().CountByStatus(chat.StatusPending))

	msg, err := h.Result()
	require.NoError(t, err)
	assert.Equal(t, chat.StatusConfirmed, msg.Status)
	assert.NotEmpty(t, msg.ServerID)

	bob := connect(t, srv, "bob")
	bob.waitUsers(t, "alice", "bob")
	bob.open(t, "alice")
	history := bob.reconciler.Store().Messages()
	require.Len(t, history, 1)
	assert.Equal(t, msg.ServerID, history[0].ServerID)
}

// Scenario: A disconnects. B sees presence without A and relays to A are
// dropped silently.
func TestScenarioDisconnect(t *testing.T) {
	srv := newTestServer(t)

	alice := connect(t, srv, "alice")
	alice.waitUsers(t, "alice")
	bob := connect(t, srv, "bob")
	bob.waitUsers(t, "alice", "bob")

	require.NoError(t, alice.rt.Close())
	bob.waitUsers(t, "bob")

	bob.open(t, "alice")
	h, err := bob.reconciler.Send("are you there")
	require.NoError(t, err)
	msg, err := h.Result()
	require.NoError(t, err, "the offline peer never surfaces as an error")
	assert.Equal(t, chat.StatusConfirmed, msg.Status)
}
