package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	chat "go-directchat/internal/pkg/chat/application/domain"
	"go-directchat/internal/pkg/chat/application/usecase"
)

const defaultRequestTimeout = 3 * time.Second

// statusFor maps use case errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, usecase.ErrPersistence):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// do not leak driver errors
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": chat.ErrNotParticipant.Error()})
}

func requestContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

func conversationJSON(conv chat.Conversation) gin.H {
	return gin.H{
		"id":              conv.ID,
		"participants":    conv.Participants,
		"created_at":      conv.CreatedAt,
		"last_message_at": conv.LastMessageAt,
	}
}

func messageJSON(m chat.StoredMessage) gin.H {
	return gin.H{
		"id":              m.ID,
		"conversation_id": m.ConversationID,
		"sender_id":       m.SenderID,
		"body":            m.Body,
		"created_at":      m.CreatedAt,
	}
}
