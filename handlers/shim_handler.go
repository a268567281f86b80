package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/hashirwa/oracle-backend/models"
	"github.com/hashirwa/oracle-backend/services"
	"github.com/hashirwa/oracle-backend/shared"
	"github.com/sirupsen/logrus"
)

// ShimHandler serves the compact reference values consumed by the oracle
// network's off-chain compute step, and ingests its fulfillment callbacks.
type ShimHandler struct {
	Shim        *services.ShimService
	Coordinator *services.FulfillmentCoordinator
}

func NewShimHandler(shim *services.ShimService, coordinator *services.FulfillmentCoordinator) *ShimHandler {
	return &ShimHandler{
		Shim:        shim,
		Coordinator: coordinator,
	}
}

// GetCert handles GET /api/v1/cl/cert?issuer_id=<id>
func (h *ShimHandler) GetCert(c *fiber.Ctx) error {
	return h.query(c, models.ModeCert)
}

// GetPrice handles GET /api/v1/cl/price?issuer_id=<id>
func (h *ShimHandler) GetPrice(c *fiber.Ctx) error {
	return h.query(c, models.ModePrice)
}

func (h *ShimHandler) query(c *fiber.Ctx, mode models.Mode) error {
	c.Set("Content-Type", "text/plain; charset=utf-8")

	issuerID, err := strconv.Atoi(c.Query("issuer_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("0|ERR|bad_issuer")
	}

	value, err := h.Shim.Query(issuerID, mode)
	if err != nil {
		if shared.HasCode(err, shared.CodeNotFound) {
			return c.Status(fiber.StatusNotFound).SendString("0|ERR|unknown_issuer")
		}
		return c.Status(fiber.StatusBadRequest).SendString("0|ERR|bad_mode")
	}

	return c.SendString(value)
}

// callbackRequest is the fulfillment delivery from the consumer contract
// bridge: either a compact encoded value or an error string for one round.
type callbackRequest struct {
	IssuerID int    `json:"issuer_id"`
	Mode     string `json:"mode"`
	RoundID  int64  `json:"round_id"`
	Value    string `json:"value"`
	Err      string `json:"err"`
}

// PostCallback handles POST /api/v1/cl/callback. Deliveries may arrive
// late or duplicated; stale ones are acknowledged (202) but change
// nothing, so the bridge never retries into resolved state.
func (h *ShimHandler) PostCallback(c *fiber.Ctx) error {
	var req callbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	mode, ok := models.ParseMode(req.Mode)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid mode",
		})
	}

	key := models.RequestKey{IssuerID: req.IssuerID, Mode: mode, RoundID: req.RoundID}
	record, err := h.Coordinator.OnCallback(key, req.Value, req.Err)
	if err != nil {
		// Stale callbacks are a no-op, not a caller failure.
		logrus.WithFields(logrus.Fields{
			"component":   "ShimHandler",
			"request_key": key.String(),
		}).Debug("Acknowledged stale oracle callback")
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"success": true,
			"stale":   true,
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"stale":   false,
		"status":  record.Status,
	})
}
