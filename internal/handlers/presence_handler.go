package handlers

import (
	"net/http"
	"strconv"
	"time"

	"talktime/internal/auth"
	"talktime/internal/services"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	presenceService *services.PresenceService
	staleAfter      time.Duration
}

func NewPresenceHandler(presenceService *services.PresenceService, staleAfter time.Duration) *PresenceHandler {
	return &PresenceHandler{
		presenceService: presenceService,
		staleAfter:      staleAfter,
	}
}

// GetStatus returns a user's presence snapshot
// GET /api/presence/:user_id
func (h *PresenceHandler) GetStatus(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	presence, err := h.presenceService.GetStatus(c.Request.Context(), uint(userID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get presence"})
		return
	}

	c.JSON(http.StatusOK, presence)
}

// Heartbeat bumps the current user's last_seen
// POST /api/presence/heartbeat
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.presenceService.Heartbeat(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record heartbeat"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Cleanup runs the stale-presence sweep on demand
// POST /api/admin/presence/cleanup
func (h *PresenceHandler) Cleanup(c *gin.Context) {
	offline, orphans, err := h.presenceService.MarkOfflineIfStale(c.Request.Context(), h.staleAfter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"marked_offline":  offline,
		"orphans_cleared": orphans,
	})
}
