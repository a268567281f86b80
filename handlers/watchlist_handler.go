package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/hashirwa/oracle-backend/services"
)

// WatchlistHandler exposes the session-scoped watchlist. The session key
// comes from the X-Session-ID header; this backend never manages cookies
// or sessions itself.
type WatchlistHandler struct {
	Store *services.MarketplaceStore
}

func NewWatchlistHandler(store *services.MarketplaceStore) *WatchlistHandler {
	return &WatchlistHandler{Store: store}
}

// Toggle handles POST /watchlist/toggle/:listing_id and returns the new
// boolean state.
func (h *WatchlistHandler) Toggle(c *fiber.Ctx) error {
	sessionID := c.Get("X-Session-ID")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Missing X-Session-ID header",
		})
	}

	listingID, err := strconv.Atoi(c.Params("listing_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid listing id",
		})
	}

	active, err := h.Store.ToggleWatchlist(sessionID, listingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Unknown listing",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"active":  active,
	})
}

// List handles GET /watchlist, the session's active listing ids.
func (h *WatchlistHandler) List(c *fiber.Ctx) error {
	sessionID := c.Get("X-Session-ID")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Missing X-Session-ID header",
		})
	}

	listings := h.Store.Watchlist(sessionID)
	return c.JSON(fiber.Map{
		"success": true,
		"data":    listings,
		"count":   len(listings),
	})
}
