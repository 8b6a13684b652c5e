package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
)

// ToastSource is the notification history shown by the admin UI.
type ToastSource interface {
	Recent() []domain.Toast
	Clear()
}

// NotificationHandler serves the toast history.
type NotificationHandler struct {
	feed ToastSource
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(feed ToastSource) *NotificationHandler {
	return &NotificationHandler{feed: feed}
}

// RegisterRoutes binds the notification routes to the provided router group. clearMiddlewares
// run before Clear only.
func (h *NotificationHandler) RegisterRoutes(r *gin.RouterGroup, clearMiddlewares ...gin.HandlerFunc) {
	r.GET("", h.List)

	clearHandlers := append([]gin.HandlerFunc{}, clearMiddlewares...)
	clearHandlers = append(clearHandlers, h.Clear)
	r.DELETE("", clearHandlers...)
}

// List godoc
// @Summary Recent notifications
// @Description Returns recent toasts, newest first.
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} NotificationsResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	toasts := h.feed.Recent()
	if toasts == nil {
		toasts = []domain.Toast{}
	}
	c.JSON(http.StatusOK, NotificationsResponse{Notifications: toasts})
}

// Clear godoc
// @Summary Clear notifications
// @Tags Notifications
// @Security BearerAuth
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/notifications [delete]
func (h *NotificationHandler) Clear(c *gin.Context) {
	h.feed.Clear()
	c.Status(http.StatusNoContent)
}
