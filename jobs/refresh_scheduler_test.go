package jobs

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashirwa/oracle-backend/models"
	"github.com/hashirwa/oracle-backend/services"
	"github.com/hashirwa/oracle-backend/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schedulerCatalog() *services.IssuerCatalog {
	catalog := services.NewIssuerCatalog()
	catalog.SetCert(1, models.CertInfo{OK: true, Standard: "JGAP", Subject: "green tea"})
	catalog.SetPrice(1, models.PriceInfo{OK: true, SKU: "sku-gt-001", JPYPerKg: 4200})
	catalog.SetPrice(2, models.PriceInfo{OK: true, SKU: "sku-sp-014", JPYPerKg: 380})
	return catalog
}

func loopbackScheduler(catalog *services.IssuerCatalog, ledger *services.FulfillmentLedger, issuerIDs []int) *RefreshSchedulerJob {
	oracle := services.NewOracleClient("", 0, nil)
	return NewRefreshSchedulerJob(ledger, catalog, oracle, issuerIDs, time.Hour)
}

func TestTriggerOpensPendingRound(t *testing.T) {
	ledger := services.NewFulfillmentLedger()
	scheduler := loopbackScheduler(schedulerCatalog(), ledger, nil)

	request, err := scheduler.Trigger(1, models.ModePrice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), request.RoundID)

	record, exists := ledger.Current(1, models.ModePrice)
	require.True(t, exists)
	assert.Equal(t, models.StatusPending, record.Status)

	// The accepted round is marked submitted so the expiry sweep owns it.
	assert.NotNil(t, record.SubmittedAt)
}

func TestTriggerRejectsUnknownIssuer(t *testing.T) {
	scheduler := loopbackScheduler(schedulerCatalog(), services.NewFulfillmentLedger(), nil)

	_, err := scheduler.Trigger(99, models.ModeCert)
	assert.True(t, shared.HasCode(err, shared.CodeNotFound))
}

func TestTriggerSecondWhilePendingReturnsAlreadyPending(t *testing.T) {
	scheduler := loopbackScheduler(schedulerCatalog(), services.NewFulfillmentLedger(), nil)

	_, err := scheduler.Trigger(1, models.ModeCert)
	require.NoError(t, err)

	_, err = scheduler.Trigger(1, models.ModeCert)
	assert.True(t, shared.HasCode(err, shared.CodeAlreadyPending))
}

func TestRunSkipsPendingSlots(t *testing.T) {
	ledger := services.NewFulfillmentLedger()
	scheduler := loopbackScheduler(schedulerCatalog(), ledger, []int{1, 2})

	// Occupy one slot ahead of the cycle.
	_, err := scheduler.Trigger(1, models.ModeCert)
	require.NoError(t, err)

	scheduler.Run()

	// Every slot now holds exactly one pending round: the pre-opened one
	// was skipped, the other three were opened by the cycle.
	for _, issuerID := range []int{1, 2} {
		for _, mode := range []models.Mode{models.ModeCert, models.ModePrice} {
			record, exists := ledger.Current(issuerID, mode)
			require.True(t, exists, "issuer %d mode %s", issuerID, mode)
			assert.Equal(t, models.StatusPending, record.Status)
			assert.Equal(t, int64(1), record.RoundID)
		}
	}
}

func TestTriggerSubmissionFailureResolvesRoundFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ledger := services.NewFulfillmentLedger()
	oracle := services.NewOracleClient(server.URL, 0, nil)
	scheduler := NewRefreshSchedulerJob(ledger, schedulerCatalog(), oracle, nil, time.Hour)

	_, err := scheduler.Trigger(1, models.ModePrice)
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.CodeSubmissionFailure))

	record, exists := ledger.Current(1, models.ModePrice)
	require.True(t, exists)
	assert.Equal(t, models.StatusFailed, record.Status)
	assert.Equal(t, shared.CodeSubmissionFailure, record.Reason)

	// The failed round does not block the slot.
	request, err := scheduler.Trigger(1, models.ModePrice)
	require.NoError(t, err)
	assert.Equal(t, int64(2), request.RoundID)
}

func TestSchedulerStartStop(t *testing.T) {
	scheduler := loopbackScheduler(schedulerCatalog(), services.NewFulfillmentLedger(), []int{1})
	scheduler.Start()
	scheduler.Stop()
}
