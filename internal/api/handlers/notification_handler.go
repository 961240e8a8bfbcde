package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shipshape-api-server/internal/models"
)

type NotificationStore interface {
	ListNotifications(ctx context.Context, recipientID string, limit int64) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

type NotificationHandler struct {
	Store NotificationStore
}

// GetNotifications trả về thông báo mới nhất trước, mặc định 50.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	limit := int64(50)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	list, err := h.Store.ListNotifications(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.Store.MarkNotificationRead(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "isRead": true})
}
