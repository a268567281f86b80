package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hashirwa/oracle-backend/jobs"
	"github.com/hashirwa/oracle-backend/models"
	"github.com/hashirwa/oracle-backend/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHarness wires the full handler surface over in-memory services the
// same way main does, with the oracle client in loopback mode.
type testHarness struct {
	app       *fiber.App
	catalog   *services.IssuerCatalog
	ledger    *services.FulfillmentLedger
	store     *services.MarketplaceStore
	scheduler *jobs.RefreshSchedulerJob
}

func newTestHarness() *testHarness {
	catalog := services.NewIssuerCatalog()
	catalog.SetCert(1, models.CertInfo{OK: true, Standard: "JGAP", Subject: "green tea"})
	catalog.SetPrice(1, models.PriceInfo{OK: true, SKU: "sku-gt-001", JPYPerKg: 4200})
	catalog.SetPrice(2, models.PriceInfo{OK: true, SKU: "sku-sp-014", JPYPerKg: 380})

	ledger := services.NewFulfillmentLedger()
	store := services.NewMarketplaceStore(catalog)
	dispatcher := services.NewNotificationDispatcher(store)
	coordinator := services.NewFulfillmentCoordinator(ledger, store, dispatcher, 9*time.Second)
	shim := services.NewShimService(catalog)
	oracle := services.NewOracleClient("", 0, nil)
	datasetSync := services.NewDatasetSyncService(catalog, "", nil)
	scheduler := jobs.NewRefreshSchedulerJob(ledger, catalog, oracle, nil, time.Hour)

	shimHandler := NewShimHandler(shim, coordinator)
	adminHandler := NewAdminHandler(scheduler, coordinator, ledger, catalog, datasetSync, shim)
	documentHandler := NewDocumentHandler(store)
	watchlistHandler := NewWatchlistHandler(store)
	notificationHandler := NewNotificationHandler(store)

	app := fiber.New()
	api := app.Group("/api/v1")

	cl := api.Group("/cl")
	cl.Get("/cert", shimHandler.GetCert)
	cl.Get("/price", shimHandler.GetPrice)
	cl.Post("/callback", shimHandler.PostCallback)

	admin := api.Group("/admin")
	admin.Post("/trigger_refresh", adminHandler.TriggerRefresh)
	admin.Post("/set_cert", adminHandler.SetCert)
	admin.Post("/set_price", adminHandler.SetPrice)
	admin.Post("/refresh_from_dataset", adminHandler.RefreshFromDataset)
	admin.Get("/rounds", adminHandler.GetRounds)
	admin.Get("/metrics", adminHandler.GetMetrics)

	app.Post("/documents/add/:listing_id", documentHandler.AddDocument)
	app.Get("/documents/:listing_id", documentHandler.ListDocuments)
	app.Post("/watchlist/toggle/:listing_id", watchlistHandler.Toggle)
	app.Get("/watchlist", watchlistHandler.List)
	app.Get("/notifications", notificationHandler.List)

	return &testHarness{
		app:       app,
		catalog:   catalog,
		ledger:    ledger,
		store:     store,
		scheduler: scheduler,
	}
}

func (h *testHarness) do(t *testing.T, method, target string, body interface{}, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	request := httptest.NewRequest(method, target, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := h.app.Test(request, -1)
	require.NoError(t, err)

	payload, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	response.Body.Close()

	return response, payload
}

func decodeJSON(t *testing.T, payload []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &out))
	return out
}

func TestShimCertEndpoint(t *testing.T) {
	harness := newTestHarness()

	response, payload := harness.do(t, http.MethodGet, "/api/v1/cl/cert?issuer_id=1", nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "1|CERT|1|JGAP", string(payload))
}

func TestShimPriceEndpoint(t *testing.T) {
	harness := newTestHarness()

	response, payload := harness.do(t, http.MethodGet, "/api/v1/cl/price?issuer_id=2", nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "1|PRICE|2|sku-sp-014|380.00", string(payload))
}

func TestShimBadIssuerParam(t *testing.T) {
	harness := newTestHarness()

	response, payload := harness.do(t, http.MethodGet, "/api/v1/cl/cert?issuer_id=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Equal(t, "0|ERR|bad_issuer", string(payload))
}

func TestShimUnknownIssuer(t *testing.T) {
	harness := newTestHarness()

	response, payload := harness.do(t, http.MethodGet, "/api/v1/cl/price?issuer_id=77", nil, nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
	assert.Equal(t, "0|ERR|unknown_issuer", string(payload))
}

func TestTriggerRefreshAcceptedThenConflict(t *testing.T) {
	harness := newTestHarness()

	response, payload := harness.do(t, http.MethodPost, "/api/v1/admin/trigger_refresh?issuer_id=1&mode=cert", nil, nil)
	assert.Equal(t, http.StatusAccepted, response.StatusCode)
	body := decodeJSON(t, payload)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["round_id"])

	response, payload = harness.do(t, http.MethodPost, "/api/v1/admin/trigger_refresh?issuer_id=1&mode=cert", nil, nil)
	assert.Equal(t, http.StatusConflict, response.StatusCode)
	body = decodeJSON(t, payload)
	assert.Equal(t, false, body["success"])
}

func TestTriggerRefreshUnknownIssuer(t *testing.T) {
	harness := newTestHarness()

	response, _ := harness.do(t, http.MethodPost, "/api/v1/admin/trigger_refresh?issuer_id=99&mode=price", nil, nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestTriggerRefreshInvalidMode(t *testing.T) {
	harness := newTestHarness()

	response, _ := harness.do(t, http.MethodPost, "/api/v1/admin/trigger_refresh?issuer_id=1&mode=volume", nil, nil)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestCallbackFulfillsPendingRound(t *testing.T) {
	harness := newTestHarness()

	response, _ := harness.do(t, http.MethodPost, "/api/v1/admin/trigger_refresh?issuer_id=1&mode=price", nil, nil)
	require.Equal(t, http.StatusAccepted, response.StatusCode)

	callback := fiber.Map{
		"issuer_id": 1,
		"mode":      "price",
		"round_id":  1,
		"value":     "1|PRICE|1|sku-gt-001|4200.00",
	}
	response, payload := harness.do(t, http.MethodPost, "/api/v1/cl/callback", callback, nil)
	assert.Equal(t, http.StatusAccepted, response.StatusCode)

	body := decodeJSON(t, payload)
	assert.Equal(t, false, body["stale"])
	assert.Equal(t, string(models.StatusFulfilled), body["status"])

	record, exists := harness.ledger.Current(1, models.ModePrice)
	require.True(t, exists)
	assert.Equal(t, models.StatusFulfilled, record.Status)
}

func TestCallbackForUnknownRoundIsStale(t *testing.T) {
	harness := newTestHarness()

	callback := fiber.Map{
		"issuer_id": 1,
		"mode":      "cert",
		"round_id":  42,
		"value":     "1|CERT|1|JGAP",
	}
	response, payload := harness.do(t, http.MethodPost, "/api/v1/cl/callback", callback, nil)
	assert.Equal(t, http.StatusAccepted, response.StatusCode)

	body := decodeJSON(t, payload)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["stale"])
}

func TestAdminSetCertVisibleThroughShim(t *testing.T) {
	harness := newTestHarness()

	request := fiber.Map{"issuer_id": 2, "ok": true, "std": "ASIAGAP", "sub": "sweet potato"}
	response, _ := harness.do(t, http.MethodPost, "/api/v1/admin/set_cert", request, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response, payload := harness.do(t, http.MethodGet, "/api/v1/cl/cert?issuer_id=2", nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "1|CERT|2|ASIAGAP", string(payload))
}

func TestAdminSetPriceVisibleThroughShim(t *testing.T) {
	harness := newTestHarness()

	request := fiber.Map{"issuer_id": 1, "sku": "sku-gt-002", "jpykg": 4550.5}
	response, _ := harness.do(t, http.MethodPost, "/api/v1/admin/set_price", request, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response, payload := harness.do(t, http.MethodGet, "/api/v1/cl/price?issuer_id=1", nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "1|PRICE|1|sku-gt-002|4550.50", string(payload))
}

func TestAdminRoundsHistory(t *testing.T) {
	harness := newTestHarness()

	response, _ := harness.do(t, http.MethodPost, "/api/v1/admin/trigger_refresh?issuer_id=1&mode=cert", nil, nil)
	require.Equal(t, http.StatusAccepted, response.StatusCode)

	response, payload := harness.do(t, http.MethodGet, "/api/v1/admin/rounds?issuer_id=1&mode=cert", nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	body := decodeJSON(t, payload)
	assert.Equal(t, float64(1), body["count"])
}

func TestAdminMetricsShape(t *testing.T) {
	harness := newTestHarness()

	response, payload := harness.do(t, http.MethodGet, "/api/v1/admin/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	body := decodeJSON(t, payload)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data, "shim")
	assert.Contains(t, data, "coordinator")
	assert.Contains(t, data, "scheduler")
}

func TestDocumentAddAndList(t *testing.T) {
	harness := newTestHarness()

	response, payload := harness.do(t, http.MethodPost, "/documents/add/1", fiber.Map{"link": "https://example.com/audit.pdf"}, nil)
	assert.Equal(t, http.StatusCreated, response.StatusCode)
	body := decodeJSON(t, payload)
	assert.Equal(t, true, body["success"])

	response, payload = harness.do(t, http.MethodGet, "/documents/1", nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	body = decodeJSON(t, payload)
	assert.Equal(t, float64(1), body["count"])
}

func TestDocumentAddRejectsBadLink(t *testing.T) {
	harness := newTestHarness()

	response, _ := harness.do(t, http.MethodPost, "/documents/add/1", fiber.Map{"link": "ftp://example.com/file"}, nil)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestDocumentAddRejectsUnknownListing(t *testing.T) {
	harness := newTestHarness()

	response, _ := harness.do(t, http.MethodPost, "/documents/add/99", fiber.Map{"link": "https://example.com/file"}, nil)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestWatchlistToggleAndList(t *testing.T) {
	harness := newTestHarness()
	headers := map[string]string{"X-Session-ID": "session-a"}

	response, payload := harness.do(t, http.MethodPost, "/watchlist/toggle/1", nil, headers)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	body := decodeJSON(t, payload)
	assert.Equal(t, true, body["active"])

	response, payload = harness.do(t, http.MethodGet, "/watchlist", nil, headers)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	body = decodeJSON(t, payload)
	assert.Equal(t, float64(1), body["count"])

	// A second session sees an empty watchlist.
	response, payload = harness.do(t, http.MethodGet, "/watchlist", nil, map[string]string{"X-Session-ID": "session-b"})
	assert.Equal(t, http.StatusOK, response.StatusCode)
	body = decodeJSON(t, payload)
	assert.Equal(t, float64(0), body["count"])
}

func TestWatchlistRequiresSessionHeader(t *testing.T) {
	harness := newTestHarness()

	response, _ := harness.do(t, http.MethodGet, "/watchlist", nil, nil)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)

	response, _ = harness.do(t, http.MethodPost, "/watchlist/toggle/1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestNotificationsListAndLimit(t *testing.T) {
	harness := newTestHarness()

	for i := 0; i < 3; i++ {
		response, _ := harness.do(t, http.MethodPost, "/documents/add/1", fiber.Map{"link": "ipfs://QmDoc"}, nil)
		require.Equal(t, http.StatusCreated, response.StatusCode)
	}

	response, payload := harness.do(t, http.MethodGet, "/notifications", nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	body := decodeJSON(t, payload)
	assert.Equal(t, float64(3), body["count"])

	response, payload = harness.do(t, http.MethodGet, "/notifications?limit=2", nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	body = decodeJSON(t, payload)
	assert.Equal(t, float64(2), body["count"])

	response, _ = harness.do(t, http.MethodGet, "/notifications?limit=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}
