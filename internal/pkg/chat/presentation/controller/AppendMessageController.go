package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-directchat/internal/infrastructure/auth"
	"go-directchat/internal/pkg/chat/application/usecase"
)

// AppendMessageController handles the append-message endpoint only (one controller per endpoint)
type AppendMessageController struct {
	UC      *usecase.AppendMessageUseCase
	Timeout time.Duration
}

func NewAppendMessageController(uc *usecase.AppendMessageUseCase, timeout time.Duration) *AppendMessageController {
	return &AppendMessageController{UC: uc, Timeout: timeout}
}

// appendMessageRequest is the DTO for the HTTP request body
type appendMessageRequest struct {
	SenderID string `json:"sender_id" binding:"required"`
	Body     string `json:"body"`
}

func (h *AppendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")

		var req appendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.SenderID != auth.UserID(c) {
			forbidden(c)
			return
		}

		ctx, cancel := requestContext(c, h.Timeout)
		defer cancel()
		msg, err := h.UC.Execute(ctx, usecase.AppendMessageInput{
			ConversationID: conversationID,
			SenderID:       req.SenderID,
			Body:           req.Body,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, messageJSON(msg))
	}
}
