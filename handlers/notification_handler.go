package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/hashirwa/oracle-backend/services"
)

// NotificationHandler is the read path of the notification log.
type NotificationHandler struct {
	Store *services.MarketplaceStore
}

func NewNotificationHandler(store *services.MarketplaceStore) *NotificationHandler {
	return &NotificationHandler{Store: store}
}

// List handles GET /notifications, most recent first. An optional ?limit=
// bounds the result.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid limit",
			})
		}
		limit = parsed
	}

	notifications := h.Store.ListNotifications(limit)
	return c.JSON(fiber.Map{
		"success": true,
		"data":    notifications,
		"count":   len(notifications),
	})
}
