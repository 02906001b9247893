package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go-directchat/internal/infrastructure/auth"
	"go-directchat/internal/pkg/chat/application/usecase"
)

// GetMessageController handles fetching the history of a conversation (one controller per endpoint)
type GetMessageController struct {
	UC      *usecase.GetMessageUseCase
	Timeout time.Duration
}

func NewGetMessageController(uc *usecase.GetMessageUseCase, timeout time.Duration) *GetMessageController {
	return &GetMessageController{UC: uc, Timeout: timeout}
}

func (h *GetMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")

		// Defaults
		limit := 50
		offset := 0

		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		ctx, cancel := requestContext(c, h.Timeout)
		defer cancel()
		msgs, err := h.UC.Execute(ctx, usecase.GetMessageInput{
			ConversationID: conversationID,
			RequesterID:    auth.UserID(c),
			Limit:          limit,
			Offset:         offset,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		out := make([]gin.H, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, messageJSON(m))
		}
		c.JSON(http.StatusOK, gin.H{
			"messages": out,
			"limit":    limit,
			"offset":   offset,
			"count":    len(out),
		})
	}
}
