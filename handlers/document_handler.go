package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/hashirwa/oracle-backend/services"
	"github.com/hashirwa/oracle-backend/shared"
)

// DocumentHandler exposes the per-listing due-diligence document vault.
type DocumentHandler struct {
	Store *services.MarketplaceStore
}

func NewDocumentHandler(store *services.MarketplaceStore) *DocumentHandler {
	return &DocumentHandler{Store: store}
}

type addDocumentRequest struct {
	Link string `json:"link"`
}

// AddDocument handles POST /documents/add/:listing_id.
func (h *DocumentHandler) AddDocument(c *fiber.Ctx) error {
	listingID, err := strconv.Atoi(c.Params("listing_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid listing id",
		})
	}

	var req addDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	document, err := h.Store.AddDocument(listingID, req.Link)
	if err != nil {
		if shared.HasCode(err, shared.CodeInvalidListing) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Unknown listing",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid document link, allowed schemes: github, drive, ipfs, https",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    document,
	})
}

// ListDocuments handles GET /documents/:listing_id, oldest first with a
// count usable as a badge.
func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	listingID, err := strconv.Atoi(c.Params("listing_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid listing id",
		})
	}

	documents, err := h.Store.ListDocuments(listingID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Unknown listing",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    documents,
		"count":   len(documents),
	})
}
