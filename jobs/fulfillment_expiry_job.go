package jobs

import (
	"time"

	"github.com/hashirwa/oracle-backend/services"
	"github.com/sirupsen/logrus"
)

// FulfillmentExpiryJob runs the coordinator's expiry sweep so rounds whose
// callback never arrives resolve to expired and stop blocking their slot.
type FulfillmentExpiryJob struct {
	coordinator *services.FulfillmentCoordinator
	logger      *logrus.Entry
}

// NewFulfillmentExpiryJob creates the sweep job.
func NewFulfillmentExpiryJob(coordinator *services.FulfillmentCoordinator) *FulfillmentExpiryJob {
	return &FulfillmentExpiryJob{
		coordinator: coordinator,
		logger:      logrus.WithField("component", "FulfillmentExpiryJob"),
	}
}

// Run executes one sweep.
func (j *FulfillmentExpiryJob) Run() {
	if expired := j.coordinator.SweepExpired(); expired > 0 {
		j.logger.WithField("expired_rounds", expired).Info("Expiry sweep resolved stuck rounds")
	}
}

// SweepInterval derives the sweep cadence from the fulfillment timeout.
func (j *FulfillmentExpiryJob) SweepInterval() time.Duration {
	interval := j.coordinator.Timeout() / 3
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
