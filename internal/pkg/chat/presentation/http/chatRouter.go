package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	cport "go-directchat/internal/infrastructure/cache/port"
	"go-directchat/internal/infrastructure/realtime"
	"go-directchat/internal/pkg/chat/application/usecase"
	repository "go-directchat/internal/pkg/chat/persistence/repository/port"
	"go-directchat/internal/pkg/chat/presentation/controller"
)

// Deps are the collaborators the chat routes are built from.
type Deps struct {
	Repo     repository.ChatRepository
	Cache    cport.Cache
	CacheTTL time.Duration
	Touch    usecase.TouchScheduler // nil touches inline

	Presence *realtime.PresenceRegistry
	Relay    *realtime.Relay

	RequestTimeout time.Duration
	SendBuffer     int
	ReadTimeout    time.Duration
	Log            zerolog.Logger
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router group
// It constructs per-endpoint controllers and binds them directly to routes.
// The group is expected to be authenticated.
func RegisterRoutes(g *gin.RouterGroup, d Deps) {
	resolveCtl := controller.NewResolveConversationController(
		usecase.NewResolveConversationUseCase(d.Repo, d.Cache, d.CacheTTL, d.Log), d.RequestTimeout)
	listCtl := controller.NewListConversationsController(
		usecase.NewListConversationsUseCase(d.Repo), d.RequestTimeout)
	appendCtl := controller.NewAppendMessageController(
		usecase.NewAppendMessageUseCase(d.Repo, d.Touch, d.Log), d.RequestTimeout)
	getMsgCtl := controller.NewGetMessageController(
		usecase.NewGetMessageUseCase(d.Repo), d.RequestTimeout)
	presenceCtl := controller.NewPresenceController(d.Presence)
	socketCtl := controller.NewChatSocketController(d.Presence, d.Relay, d.SendBuffer, d.ReadTimeout, d.Log)

	// POST /api/v1/conversations -> create-or-get the conversation of two users
	g.POST("/conversations", resolveCtl.Handle())

	// GET /api/v1/conversations/user/:userId -> conversations of a user
	g.GET("/conversations/user/:userId", listCtl.Handle())

	// POST /api/v1/conversations/:conversationId/messages -> append a message
	g.POST("/conversations/:conversationId/messages", appendCtl.Handle())

	// GET /api/v1/conversations/:conversationId/messages -> history, oldest first
	g.GET("/conversations/:conversationId/messages", getMsgCtl.Handle())

	// GET /api/v1/presence -> online users
	g.GET("/presence", presenceCtl.Handle())

	// GET /api/v1/ws -> websocket endpoint for presence and relay
	g.GET("/ws", socketCtl.Handle())
}
