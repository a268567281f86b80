package services

import (
	"fmt"
	"time"

	"github.com/hashirwa/oracle-backend/models"
	"github.com/hashirwa/oracle-backend/shared"
	"github.com/sirupsen/logrus"
)

// FulfillmentCoordinator decides when a refresh round is complete and is
// the single authority over FulfillmentRecord transitions. Callbacks from
// the oracle network may arrive late, duplicated, or not at all; anything
// that does not match a pending record is ignored as stale so resolved
// state is never corrupted.
type FulfillmentCoordinator struct {
	ledger     *FulfillmentLedger
	store      *MarketplaceStore
	dispatcher *NotificationDispatcher
	timeout    time.Duration
	metrics    *shared.ServiceMetrics
	logger     *logrus.Entry
}

// NewFulfillmentCoordinator wires the coordinator over the ledger, store
// and dispatcher. Timeout bounds how long a round may stay pending.
func NewFulfillmentCoordinator(ledger *FulfillmentLedger, store *MarketplaceStore, dispatcher *NotificationDispatcher, timeout time.Duration) *FulfillmentCoordinator {
	if timeout <= 0 {
		timeout = 9 * time.Second
	}

	return &FulfillmentCoordinator{
		ledger:     ledger,
		store:      store,
		dispatcher: dispatcher,
		timeout:    timeout,
		metrics:    shared.NewServiceMetrics("FulfillmentCoordinator"),
		logger:     logrus.WithField("component", "FulfillmentCoordinator"),
	}
}

// Timeout returns the pending-round timeout.
func (c *FulfillmentCoordinator) Timeout() time.Duration {
	return c.timeout
}

// OnCallback ingests one fulfillment delivery from the oracle network.
// callbackErr non-empty means the network reported an error for the round.
// Returns the resolved record; a stale delivery returns a StaleCallback
// error after logging, with no record created or mutated.
func (c *FulfillmentCoordinator) OnCallback(key models.RequestKey, payload string, callbackErr string) (*models.FulfillmentRecord, error) {
	startTime := time.Now()
	log := c.logger.WithFields(logrus.Fields{
		"issuer_id": key.IssuerID,
		"mode":      key.Mode,
		"round_id":  key.RoundID,
	})

	if callbackErr != "" {
		record, err := c.ledger.Resolve(key, models.StatusFailed, "", callbackErr)
		if err != nil {
			c.logStale(log, err)
			return nil, err
		}

		c.metrics.RecordRequest(false, time.Since(startTime))
		c.metrics.IncrementCustomCounter("rounds_failed")
		log.WithField("reason", callbackErr).Warn("Refresh round failed by oracle callback")
		return record, nil
	}

	value, decodeErr := models.ParseOracleValue(payload)
	if decodeErr != nil {
		record, err := c.ledger.Resolve(key, models.StatusFailed, "", decodeErr.Error())
		if err != nil {
			c.logStale(log, err)
			return nil, err
		}

		c.metrics.RecordRequest(false, time.Since(startTime))
		c.metrics.IncrementCustomCounter("rounds_failed")
		log.WithError(decodeErr).Warn("Refresh round failed: undecodable oracle payload")
		return record, nil
	}

	// A decodable payload may still belong to another round. The value's
	// own kind and issuer must match the key or the displayed reference
	// value could be replaced with another issuer's or mode's data.
	if value.Kind != key.Mode || value.IssuerID != key.IssuerID {
		reason := fmt.Sprintf("payload identifies %s/%d, round is %s", value.Kind, value.IssuerID, key.String())
		record, err := c.ledger.Resolve(key, models.StatusFailed, "", reason)
		if err != nil {
			c.logStale(log, err)
			return nil, err
		}

		c.metrics.RecordRequest(false, time.Since(startTime))
		c.metrics.IncrementCustomCounter("rounds_failed")
		log.WithField("payload", payload).Warn("Refresh round failed: oracle payload does not match round")
		return record, nil
	}

	record, err := c.ledger.Resolve(key, models.StatusFulfilled, payload, "")
	if err != nil {
		c.logStale(log, err)
		return nil, err
	}

	// Only a confirmed fulfillment moves the displayed value; failed and
	// expired rounds leave the previous one in place.
	c.store.SetReferenceValue(key.IssuerID, key.Mode, value)
	c.dispatcher.Publish(key.IssuerID, notificationKindFor(key.Mode), describeValue(value))

	c.metrics.RecordRequest(true, time.Since(startTime))
	c.metrics.IncrementCustomCounter("rounds_fulfilled")
	log.WithField("value", payload).Info("Refresh round fulfilled")
	return record, nil
}

func (c *FulfillmentCoordinator) logStale(log *logrus.Entry, err error) {
	c.metrics.IncrementCustomCounter("stale_callbacks")
	log.WithError(err).WithField("error_code", shared.CodeStaleCallback).Warn("Ignoring stale oracle callback")
}

// SweepExpired resolves every pending round older than the timeout. No
// notification is emitted: expiry is an operational event, and a later
// round for the same issuer and mode may now be scheduled.
func (c *FulfillmentCoordinator) SweepExpired() int {
	expired := c.ledger.SweepExpired(c.timeout)

	for _, record := range expired {
		c.metrics.IncrementCustomCounter("rounds_expired")
		c.logger.WithFields(logrus.Fields{
			"issuer_id":    record.IssuerID,
			"mode":         record.Mode,
			"round_id":     record.RoundID,
			"requested_at": record.RequestedAt,
			"event":        "RefreshExpired",
		}).Warn("Refresh round expired without callback")
	}

	return len(expired)
}

// Metrics exposes the coordinator's counters.
func (c *FulfillmentCoordinator) Metrics() *shared.ServiceMetrics {
	return c.metrics
}

func notificationKindFor(mode models.Mode) models.NotificationKind {
	if mode == models.ModeCert {
		return models.NotificationCertUpdated
	}
	return models.NotificationPriceUpdated
}

func describeValue(value *models.OracleValue) string {
	switch value.Kind {
	case models.ModeCert:
		return fmt.Sprintf("cert %s ok=%t", value.Standard, value.OK)
	default:
		return fmt.Sprintf("price %s %.2f JPY/kg", value.SKU, value.JPYPerKg)
	}
}
