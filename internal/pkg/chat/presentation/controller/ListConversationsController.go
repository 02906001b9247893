package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go-directchat/internal/infrastructure/auth"
	"go-directchat/internal/pkg/chat/application/usecase"
)

// ListConversationsController lists the conversations of the authenticated user.
type ListConversationsController struct {
	UC      *usecase.ListConversationsUseCase
	Timeout time.Duration
}

func NewListConversationsController(uc *usecase.ListConversationsUseCase, timeout time.Duration) *ListConversationsController {
	return &ListConversationsController{UC: uc, Timeout: timeout}
}

func (h *ListConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if userID != auth.UserID(c) {
			forbidden(c)
			return
		}

		limit := 0
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		ctx, cancel := requestContext(c, h.Timeout)
		defer cancel()
		convs, err := h.UC.Execute(ctx, usecase.ListConversationsInput{UserID: userID, Limit: limit})
		if err != nil {
			writeError(c, err)
			return
		}

		out := make([]gin.H, 0, len(convs))
		for _, conv := range convs {
			out = append(out, conversationJSON(conv))
		}
		c.JSON(http.StatusOK, gin.H{"conversations": out, "count": len(out)})
	}
}
