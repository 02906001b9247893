package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-directchat/internal/infrastructure/realtime"
)

// PresenceController returns the current online snapshot.
type PresenceController struct {
	Presence *realtime.PresenceRegistry
}

func NewPresenceController(presence *realtime.PresenceRegistry) *PresenceController {
	return &PresenceController{Presence: presence}
}

func (h *PresenceController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"users": h.Presence.Snapshot()})
	}
}
