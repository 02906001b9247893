package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-directchat/internal/infrastructure/auth"
	"go-directchat/internal/pkg/chat/application/usecase"
)

// ResolveConversationController handles create-or-get of a two-party conversation.
type ResolveConversationController struct {
	UC      *usecase.ResolveConversationUseCase
	Timeout time.Duration
}

func NewResolveConversationController(uc *usecase.ResolveConversationUseCase, timeout time.Duration) *ResolveConversationController {
	return &ResolveConversationController{UC: uc, Timeout: timeout}
}

type resolveConversationRequest struct {
	SenderID   string `json:"senderId" binding:"required"`
	ReceiverID string `json:"receiverId"`
}

func (h *ResolveConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resolveConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if me := auth.UserID(c); me != req.SenderID && me != req.ReceiverID {
			forbidden(c)
			return
		}

		ctx, cancel := requestContext(c, h.Timeout)
		defer cancel()
		conv, err := h.UC.Execute(ctx, usecase.ResolveConversationInput{UserA: req.SenderID, UserB: req.ReceiverID})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, conversationJSON(conv))
	}
}
