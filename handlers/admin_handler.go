package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/hashirwa/oracle-backend/jobs"
	"github.com/hashirwa/oracle-backend/models"
	"github.com/hashirwa/oracle-backend/services"
	"github.com/hashirwa/oracle-backend/shared"
	"github.com/sirupsen/logrus"
)

type AdminHandler struct {
	Scheduler   *jobs.RefreshSchedulerJob
	Coordinator *services.FulfillmentCoordinator
	Ledger      *services.FulfillmentLedger
	Catalog     *services.IssuerCatalog
	DatasetSync *services.DatasetSyncService
	Shim        *services.ShimService
}

func NewAdminHandler(scheduler *jobs.RefreshSchedulerJob, coordinator *services.FulfillmentCoordinator, ledger *services.FulfillmentLedger, catalog *services.IssuerCatalog, datasetSync *services.DatasetSyncService, shim *services.ShimService) *AdminHandler {
	return &AdminHandler{
		Scheduler:   scheduler,
		Coordinator: coordinator,
		Ledger:      ledger,
		Catalog:     catalog,
		DatasetSync: datasetSync,
		Shim:        shim,
	}
}

// TriggerRefresh handles POST /api/v1/admin/trigger_refresh?issuer_id=&mode=
// 202 when a new round started, 409 while one is already pending.
func (h *AdminHandler) TriggerRefresh(c *fiber.Ctx) error {
	issuerID, err := strconv.Atoi(c.Query("issuer_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid issuer_id",
		})
	}

	mode, ok := models.ParseMode(c.Query("mode"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid mode, want cert or price",
		})
	}

	logrus.WithFields(logrus.Fields{
		"issuer_id": issuerID,
		"mode":      mode,
	}).Info("Manual refresh triggered via admin endpoint")

	request, err := h.Scheduler.Trigger(issuerID, mode)
	if err != nil {
		switch {
		case shared.HasCode(err, shared.CodeAlreadyPending):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"error":   "Refresh round already pending for this issuer and mode",
			})
		case shared.HasCode(err, shared.CodeNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "Issuer not found",
			})
		default:
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"error":   "Oracle network submission failed",
			})
		}
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success":    true,
		"request_id": request.ID,
		"round_id":   request.RoundID,
	})
}

type setCertRequest struct {
	IssuerID int    `json:"issuer_id"`
	OK       bool   `json:"ok"`
	Standard string `json:"std"`
	Subject  string `json:"sub"`
}

// SetCert handles POST /api/v1/admin/set_cert, a manual catalog override.
func (h *AdminHandler) SetCert(c *fiber.Ctx) error {
	var req setCertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if req.IssuerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid issuer_id",
		})
	}

	cert := models.CertInfo{OK: req.OK, Standard: req.Standard, Subject: req.Subject}
	h.Catalog.SetCert(req.IssuerID, cert)

	return c.JSON(fiber.Map{
		"success":   true,
		"issuer_id": req.IssuerID,
		"record":    cert,
	})
}

type setPriceRequest struct {
	IssuerID int     `json:"issuer_id"`
	SKU      string  `json:"sku"`
	JPYPerKg float64 `json:"jpykg"`
}

// SetPrice handles POST /api/v1/admin/set_price.
func (h *AdminHandler) SetPrice(c *fiber.Ctx) error {
	var req setPriceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if req.IssuerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid issuer_id",
		})
	}

	price := models.PriceInfo{OK: true, SKU: req.SKU, JPYPerKg: req.JPYPerKg}
	h.Catalog.SetPrice(req.IssuerID, price)

	return c.JSON(fiber.Map{
		"success":   true,
		"issuer_id": req.IssuerID,
		"record":    price,
	})
}

type refreshDatasetRequest struct {
	URL string `json:"url"`
}

// RefreshFromDataset handles POST /api/v1/admin/refresh_from_dataset,
// replacing the catalog's cert/price records with the published dataset.
func (h *AdminHandler) RefreshFromDataset(c *fiber.Ctx) error {
	var req refreshDatasetRequest
	// Body is optional; an empty body means the configured default URL.
	_ = c.BodyParser(&req)

	certCount, priceCount, err := h.DatasetSync.Sync(req.URL)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   "Dataset fetch failed: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"cert_count":  certCount,
		"price_count": priceCount,
	})
}

// GetRounds handles GET /api/v1/admin/rounds?issuer_id=&mode= returning
// the ledger history for one slot, for debugging.
func (h *AdminHandler) GetRounds(c *fiber.Ctx) error {
	issuerID, err := strconv.Atoi(c.Query("issuer_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid issuer_id",
		})
	}

	mode, ok := models.ParseMode(c.Query("mode"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid mode, want cert or price",
		})
	}

	records := h.Ledger.Snapshot(issuerID, mode)
	return c.JSON(fiber.Map{
		"success": true,
		"data":    records,
		"count":   len(records),
	})
}

// GetMetrics handles GET /api/v1/admin/metrics.
func (h *AdminHandler) GetMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"shim":        h.Shim.Metrics().Summary(),
			"coordinator": h.Coordinator.Metrics().Summary(),
			"scheduler":   h.Scheduler.Metrics().Summary(),
		},
	})
}
