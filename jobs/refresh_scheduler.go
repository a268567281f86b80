package jobs

import (
	"sync"
	"time"

	"github.com/hashirwa/oracle-backend/models"
	"github.com/hashirwa/oracle-backend/services"
	"github.com/hashirwa/oracle-backend/shared"
	"github.com/sirupsen/logrus"
)

// RefreshSchedulerJob produces refresh rounds for the configured issuers,
// either on its periodic tick or through the manual Trigger path. Both
// paths share the ledger's single-pending-round guard, so a new round for
// an issuer and mode is never opened while the prior one is outstanding.
type RefreshSchedulerJob struct {
	ledger    *services.FulfillmentLedger
	catalog   *services.IssuerCatalog
	oracle    *services.OracleClient
	issuerIDs []int
	interval  time.Duration
	metrics   *shared.ServiceMetrics
	logger    *logrus.Entry

	ticker *time.Ticker
	stop   chan struct{}

	runMutex  sync.Mutex
	isRunning bool
}

// NewRefreshSchedulerJob creates a scheduler. An empty issuerIDs list
// means every issuer in the catalog is refreshed each cycle.
func NewRefreshSchedulerJob(ledger *services.FulfillmentLedger, catalog *services.IssuerCatalog, oracle *services.OracleClient, issuerIDs []int, interval time.Duration) *RefreshSchedulerJob {
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	return &RefreshSchedulerJob{
		ledger:    ledger,
		catalog:   catalog,
		oracle:    oracle,
		issuerIDs: issuerIDs,
		interval:  interval,
		metrics:   shared.NewServiceMetrics("RefreshScheduler"),
		logger:    logrus.WithField("component", "RefreshScheduler"),
		stop:      make(chan struct{}),
	}
}

// Start spins the internal ticker driving automatic refresh cycles.
func (j *RefreshSchedulerJob) Start() {
	j.logger.WithField("interval", j.interval).Info("Starting refresh scheduler")
	j.ticker = time.NewTicker(j.interval)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				j.Run()
			case <-j.stop:
				return
			}
		}
	}()
}

// Stop halts the periodic ticker. Manual triggers keep working.
func (j *RefreshSchedulerJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.stop)
	j.logger.Info("Refresh scheduler stopped")
}

// Run executes one refresh cycle: for every configured issuer and both
// modes, a round is opened only when no prior round is still pending.
// Issuers whose slot is busy are skipped silently; the next cycle picks
// them up.
func (j *RefreshSchedulerJob) Run() {
	j.runMutex.Lock()
	if j.isRunning {
		j.runMutex.Unlock()
		j.logger.Warn("Refresh cycle already running, skipping")
		return
	}
	j.isRunning = true
	j.runMutex.Unlock()

	defer func() {
		j.runMutex.Lock()
		j.isRunning = false
		j.runMutex.Unlock()
	}()

	startTime := time.Now()
	issuerIDs := j.issuerIDs
	if len(issuerIDs) == 0 {
		issuerIDs = j.catalog.IDs()
	}

	started, skipped := 0, 0
	for _, issuerID := range issuerIDs {
		for _, mode := range []models.Mode{models.ModeCert, models.ModePrice} {
			_, err := j.Trigger(issuerID, mode)
			switch {
			case err == nil:
				started++
			case shared.HasCode(err, shared.CodeAlreadyPending):
				skipped++
			default:
				// Submission failures are already reflected in the ledger.
			}
		}
	}

	j.logger.WithFields(logrus.Fields{
		"rounds_started":  started,
		"rounds_skipped":  skipped,
		"issuers":         len(issuerIDs),
		"processing_time": time.Since(startTime),
	}).Info("Refresh cycle completed")
}

// Trigger opens one round for an issuer and mode and submits it to the
// oracle network. Returns AlreadyPending while a round is outstanding so
// callers can tell "already in flight" from success. When submission
// exhausts its retries the round is resolved failed immediately, so it
// never blocks a future round.
func (j *RefreshSchedulerJob) Trigger(issuerID int, mode models.Mode) (*models.RefreshRequest, error) {
	startTime := time.Now()

	if !j.catalog.Exists(issuerID) {
		return nil, shared.NewNotFoundError("RefreshScheduler", "trigger", issuerID)
	}

	request, err := j.ledger.Begin(issuerID, mode)
	if err != nil {
		j.metrics.IncrementCustomCounter("triggers_already_pending")
		return nil, err
	}

	if submitErr := j.oracle.Submit(request); submitErr != nil {
		if _, resolveErr := j.ledger.Resolve(request.Key(), models.StatusFailed, "", shared.CodeSubmissionFailure); resolveErr != nil {
			j.logger.WithError(resolveErr).Error("Failed to record submission failure")
		}

		j.metrics.RecordRequest(false, time.Since(startTime))
		j.logger.WithFields(logrus.Fields{
			"issuer_id": issuerID,
			"mode":      mode,
			"round_id":  request.RoundID,
		}).WithError(submitErr).Error("Refresh round failed: oracle submission exhausted retries")
		return nil, submitErr
	}

	if err := j.ledger.MarkSubmitted(request.Key()); err != nil {
		// The round resolved (callback or sweep) before the submission
		// returned; the acceptance timestamp no longer matters.
		j.logger.WithError(err).WithFields(logrus.Fields{
			"issuer_id": issuerID,
			"mode":      mode,
			"round_id":  request.RoundID,
		}).Debug("Round resolved before submission was recorded")
	}

	j.metrics.RecordRequest(true, time.Since(startTime))
	return request, nil
}

// Metrics exposes the scheduler's counters.
func (j *RefreshSchedulerJob) Metrics() *shared.ServiceMetrics {
	return j.metrics
}
