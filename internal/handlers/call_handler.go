package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"talktime/internal/auth"
	"talktime/internal/models"
	"talktime/internal/repository"
	"talktime/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CallHandler struct {
	callService *services.CallService
}

func NewCallHandler(callService *services.CallService) *CallHandler {
	return &CallHandler{
		callService: callService,
	}
}

// StartCallRequest is the body for starting a call.
type StartCallRequest struct {
	ListenerID uint            `json:"listener_id" binding:"required"`
	CallType   models.CallType `json:"call_type" binding:"required"`
}

// EndCallRequest is the body for ending a call.
type EndCallRequest struct {
	Reason models.CallStatus `json:"reason"`
}

// StartCall opens a billed call with a listener
// POST /api/calls
func (h *CallHandler) StartCall(c *gin.Context) {
	callerID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.callService.Start(c.Request.Context(), callerID, req.ListenerID, req.CallType)
	if err != nil {
		respondCallError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"call_id":               result.Call.ID,
		"max_duration_estimate": result.MaxDurationEstimate,
		"remaining_coins":       result.RemainingCoins,
		"call":                  result.Call,
	})
}

// EndCall ends a call the current user is a party to
// POST /api/calls/:id/end
func (h *CallHandler) EndCall(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return
	}

	var req EndCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Reason == "" {
		req.Reason = models.CallStatusCompleted
	}

	call, err := h.callService.EndByUser(c.Request.Context(), callID, userID, req.Reason)
	if err != nil {
		respondCallError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":                call.Status,
		"duration_seconds":      call.DurationSeconds,
		"coins_spent":           call.CoinsSpent,
		"listener_money_earned": call.ListenerMoneyEarned,
		"call":                  call,
	})
}

// GetOngoing returns the current user's ongoing call, if any
// GET /api/calls/ongoing
func (h *CallHandler) GetOngoing(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	call, err := h.callService.GetOngoing(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get ongoing call"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"call": call})
}

// GetHistory returns the current user's call history
// GET /api/calls/history
func (h *CallHandler) GetHistory(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := parsePagination(c)
	filter := repository.CallHistoryFilter{
		Status:   models.CallStatus(c.Query("status")),
		CallType: models.CallType(c.Query("call_type")),
	}

	calls, total, err := h.callService.GetHistory(c.Request.Context(), userID, filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get call history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"calls": calls,
		"total": total,
	})
}

// BillMinute advances billing for a call by one minute. Normally driven
// by the billing ticker; exposed for operators
// POST /api/calls/:id/bill
func (h *CallHandler) BillMinute(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return
	}

	if err := h.callService.BillMinute(c.Request.Context(), callID); err != nil {
		respondCallError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetRates returns the static rate table
// GET /api/calls/rates
func (h *CallHandler) GetRates(c *gin.Context) {
	c.JSON(http.StatusOK, h.callService.Rates())
}

// EmergencyEnd force-ends a call without party authorization
// POST /api/admin/calls/:id/emergency-end
func (h *CallHandler) EmergencyEnd(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return
	}

	call, err := h.callService.EmergencyEnd(c.Request.Context(), callID)
	if err != nil {
		respondCallError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"call": call})
}

// respondCallError maps the error taxonomy to distinct status codes.
// Insufficient coins is a client-payable condition, never a 5xx.
func respondCallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrInsufficientCoins):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient coins"})
	case errors.Is(err, repository.ErrCallAlreadyOngoing):
		c.JSON(http.StatusConflict, gin.H{"error": "user already has an ongoing call"})
	case errors.Is(err, repository.ErrCallNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, services.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a party to this call"})
	case errors.Is(err, services.ErrSelfCall), errors.Is(err, services.ErrInvalidEndReason):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// parsePagination reads limit/offset query parameters with defaults.
func parsePagination(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}
