package handlers

import (
	"net/http"
	"strconv"
	"time"

	"talktime/internal/auth"
	"talktime/internal/services"

	"github.com/gin-gonic/gin"
)

type BadgeHandler struct {
	badgeService *services.BadgeService
}

func NewBadgeHandler(badgeService *services.BadgeService) *BadgeHandler {
	return &BadgeHandler{
		badgeService: badgeService,
	}
}

// AssignBadges triggers badge assignment for a date (default today)
// POST /api/admin/badges/assign?date=2006-01-02
func (h *BadgeHandler) AssignBadges(c *gin.Context) {
	date := time.Now()
	if dateStr := c.Query("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	assigned, err := h.badgeService.AssignBadgesForDate(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "badge assignment failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":     date.Format("2006-01-02"),
		"assigned": len(assigned),
		"badges":   assigned,
	})
}

// GetCurrentBadge returns a listener's badge for today. Defaults to the
// authenticated user; callers pass listener_id to look up a listener
// before dialing
// GET /api/badges/current?listener_id=7
func (h *BadgeHandler) GetCurrentBadge(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	listenerID := userID
	if idStr := c.Query("listener_id"); idStr != "" {
		parsed, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listener id"})
			return
		}
		listenerID = uint(parsed)
	}

	badge, err := h.badgeService.CurrentBadge(c.Request.Context(), listenerID, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get badge"})
		return
	}

	c.JSON(http.StatusOK, badge)
}

// GetHistory returns the current user's badge history
// GET /api/badges/history
func (h *BadgeHandler) GetHistory(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := parsePagination(c)

	badges, total, err := h.badgeService.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get badge history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"badges": badges,
		"total":  total,
	})
}
