package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"go-directchat/internal/infrastructure/realtime"
	chat "go-directchat/internal/pkg/chat/application/domain"
	"go-directchat/internal/pkg/chat/client"
)

const writeWait = 10 * time.Second

// RealtimeHandlers receive server events. They run on the read goroutine, in
// arrival order. Nil handlers are skipped.
type RealtimeHandlers struct {
	OnUsers   func(users []string)
	OnMessage func(ev chat.RelayEvent)
	OnError   func(p realtime.ErrorPayload)
}

// RealtimeClient is the client end of the websocket link. It satisfies
// client.RelayEmitter.
type RealtimeClient struct {
	ws       *websocket.Conn
	userID   string
	handlers RealtimeHandlers
	log      zerolog.Logger

	writeMu sync.Mutex
	done    chan struct{}
	errMu   sync.Mutex
	err     error
}

var _ client.RelayEmitter = (*RealtimeClient)(nil)

// DialRealtime connects to wsURL as userID, authenticated with token. A
// rejected token yields an error wrapping chat.ErrUnauthorized.
func DialRealtime(ctx context.Context, wsURL, userID, token string, handlers RealtimeHandlers, log zerolog.Logger) (*RealtimeClient, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %v", chat.ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	c := &RealtimeClient{
		ws:       ws,
		userID:   userID,
		handlers: handlers,
		log:      log.With().Str("component", "realtime_client").Str("user_id", userID).Logger(),
		done:     make(chan struct{}),
	}
	ws.SetPingHandler(func(data string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	go c.readLoop()
	return c, nil
}

// AddUser announces the local user to presence.
func (c *RealtimeClient) AddUser() error {
	return c.write(realtime.EventAddUser, c.userID)
}

// EmitMessage submits ev for relay. It does not wait for delivery.
func (c *RealtimeClient) EmitMessage(ev chat.RelayEvent) error {
	return c.write(realtime.EventSendMessage, realtime.NewSendMessagePayload(ev))
}

// Done is closed when the link is gone.
func (c *RealtimeClient) Done() <-chan struct{} { return c.done }

// Err returns why the link ended, nil on a normal close.
func (c *RealtimeClient) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close sends a close frame and releases the socket.
func (c *RealtimeClient) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return c.ws.Close()
}

func (c *RealtimeClient) write(event string, data any) error {
	payload, err := realtime.Encode(event, data)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return realtime.ErrConnectionClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *RealtimeClient) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				c.setErr(err)
			}
			return
		}
		c.dispatch(data)
	}
}

func (c *RealtimeClient) dispatch(data []byte) {
	env, err := realtime.Decode(data)
	if err != nil {
		c.log.Debug().Err(err).Msg("bad frame from server")
		return
	}

	switch env.Event {
	case realtime.EventGetUsers:
		var users []string
		if err := env.DecodeData(&users); err != nil {
			c.log.Debug().Err(err).Msg("bad presence frame")
			return
		}
		if c.handlers.OnUsers != nil {
			c.handlers.OnUsers(users)
		}
	case realtime.EventGetMessage:
		var p realtime.GetMessagePayload
		if err := env.DecodeData(&p); err != nil {
			c.log.Debug().Err(err).Msg("bad message frame")
			return
		}
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(p.RelayEvent(c.userID))
		}
	case realtime.EventError:
		var p realtime.ErrorPayload
		if err := env.DecodeData(&p); err != nil {
			return
		}
		if c.handlers.OnError != nil {
			c.handlers.OnError(p)
		}
	default:
		c.log.Debug().Str("event", env.Event).Msg("unknown event")
	}
}

func (c *RealtimeClient) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.err = err
}
