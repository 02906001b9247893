package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"go-directchat/internal/infrastructure/auth"
	"go-directchat/internal/infrastructure/realtime"
	chat "go-directchat/internal/pkg/chat/application/domain"
)

const (
	defaultReadTimeout = 60 * time.Second
	maxFrameSize       = 64 << 10
)

// ChatSocketController handles the websocket endpoint for presence and relay traffic.
type ChatSocketController struct {
	presence    *realtime.PresenceRegistry
	relay       *realtime.Relay
	sendBuffer  int
	readTimeout time.Duration
	log         zerolog.Logger
}

func NewChatSocketController(presence *realtime.PresenceRegistry, relay *realtime.Relay, sendBuffer int, readTimeout time.Duration, log zerolog.Logger) *ChatSocketController {
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	return &ChatSocketController{
		presence:    presence,
		relay:       relay,
		sendBuffer:  sendBuffer,
		readTimeout: readTimeout,
		log:         log.With().Str("component", "chat_socket").Logger(),
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Identity comes from the token, not from cookies.
		return true
	},
}

// Handle upgrades an authenticated request and processes frames until the
// client disconnects. One goroutine reads, so events run in arrival order.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.UserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			ctl.log.Debug().Err(err).Msg("upgrade failed")
			return
		}

		conn := realtime.NewConnection(ws, ctl.sendBuffer)
		conn.Start()
		session := realtime.NewSession(userID, conn, ctl.presence, ctl.relay, ctl.log)
		defer func() {
			session.Close()
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(maxFrameSize)
		_ = ws.SetReadDeadline(time.Now().Add(ctl.readTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(ctl.readTimeout))
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					ctl.log.Debug().Err(err).Str("user_id", userID).Msg("read failed")
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(ctl.readTimeout))

			if err := session.HandleFrame(data); err != nil {
				if fatal := ctl.handleFrameError(conn, err); fatal {
					return
				}
			}
		}
	}
}

// handleFrameError replies with an error frame and reports whether the
// session must end.
func (ctl *ChatSocketController) handleFrameError(conn *realtime.Connection, err error) bool {
	switch {
	case errors.Is(err, chat.ErrUnauthorized):
		ctl.replyError(conn, "unauthorized", "addUser does not match the authenticated user")
		conn.Close(websocket.ClosePolicyViolation, "unauthorized")
		return true
	case errors.Is(err, realtime.ErrSenderMismatch):
		ctl.replyError(conn, "forbidden", "senderId does not match the authenticated user")
	case errors.Is(err, realtime.ErrUnsupportedEvent):
		ctl.replyError(conn, "unsupported_type", err.Error())
	case errors.Is(err, realtime.ErrBadFrame), errors.Is(err, chat.ErrValidation):
		ctl.replyError(conn, "bad_request", err.Error())
	default:
		ctl.log.Error().Err(err).Msg("frame handling failed")
		ctl.replyError(conn, "internal_error", "unexpected error")
	}
	return false
}

func (ctl *ChatSocketController) replyError(conn *realtime.Connection, code string, message string) {
	payload, err := realtime.Encode(realtime.EventError, realtime.ErrorPayload{Code: code, Error: message})
	if err != nil {
		return
	}
	_ = conn.Send(payload)
}
