package handler

import (
	"net/http"
	"time"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	notificationService service.NotificationService
}

func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/notifications")
	group.Use(middleware.RequireAuth())
	{
		group.GET("", h.ListPending)
		group.POST("/ack", h.Ack)
		group.GET("/checkpoint", h.GetCheckpoint)
		group.POST("/checkpoint", h.RestoreCheckpoint)
		group.POST("/read", h.MarkRead)
		group.GET("/read", h.ReadState)
	}
}

func (h *NotificationHandler) userID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "invalid user id in token"))
		return uuid.Nil, false
	}
	return id, true
}

// ListPending returns undelivered notification events for this session
// @Summary      Pending notifications
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/notifications [get]
func (h *NotificationHandler) ListPending(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	h.notificationService.OpenSession(userID)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.notificationService.Pending(userID)))
}

type ackRequest struct {
	IDs []string `json:"ids"` // empty clears everything
}

// Ack dismisses delivered notifications
// @Summary      Acknowledge notifications
// @Tags         notifications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  ackRequest  false  "Event ids (empty = all)"
// @Success      200  {object}  response.Response
// @Router       /api/notifications/ack [post]
func (h *NotificationHandler) Ack(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req ackRequest
	_ = c.ShouldBindJSON(&req)
	h.notificationService.Ack(userID, req.IDs)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "acknowledged"))
}

// GetCheckpoint returns the diff checkpoint for device-local persistence
// @Summary      Get notification checkpoint
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/notifications/checkpoint [get]
func (h *NotificationHandler) GetCheckpoint(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"last_check": h.notificationService.Checkpoint(userID).UnixMilli(),
	}))
}

type checkpointRequest struct {
	LastCheck int64 `json:"last_check" binding:"required"` // epoch milliseconds
}

// RestoreCheckpoint accepts the device-persisted checkpoint after a reload
// @Summary      Restore notification checkpoint
// @Tags         notifications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  checkpointRequest  true  "Checkpoint"
// @Success      200  {object}  response.Response
// @Router       /api/notifications/checkpoint [post]
func (h *NotificationHandler) RestoreCheckpoint(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req checkpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "last_check is required"))
		return
	}

	h.notificationService.RestoreCheckpoint(userID, time.UnixMilli(req.LastCheck))
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "checkpoint restored"))
}

type markReadRequest struct {
	Channel string `json:"channel" binding:"required"`
}

// MarkRead records the last-read timestamp for a notification channel
// @Summary      Mark notification channel read
// @Tags         notifications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  markReadRequest  true  "Channel"
// @Success      200  {object}  response.Response
// @Router       /api/notifications/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "channel is required"))
		return
	}

	h.notificationService.MarkChannelRead(userID, req.Channel, time.Now())
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "marked"))
}

// ReadState returns per-channel last-read timestamps
// @Summary      Notification read state
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/notifications/read [get]
func (h *NotificationHandler) ReadState(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	state := h.notificationService.ReadState(userID)
	out := make(map[string]int64, len(state))
	for channel, ts := range state {
		out[channel] = ts.UnixMilli()
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, out))
}
