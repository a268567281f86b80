package jobs

import (
	"time"

	"github.com/hashirwa/oracle-backend/services"
	"github.com/sirupsen/logrus"
)

// DatasetSyncJob periodically refreshes the issuer catalog from the
// published dataset, replacing the external cron script the project used
// to rely on.
type DatasetSyncJob struct {
	sync   *services.DatasetSyncService
	logger *logrus.Entry
}

// NewDatasetSyncJob creates the sync job.
func NewDatasetSyncJob(sync *services.DatasetSyncService) *DatasetSyncJob {
	return &DatasetSyncJob{
		sync:   sync,
		logger: logrus.WithField("component", "DatasetSyncJob"),
	}
}

// Run executes one dataset sync against the configured URL.
func (j *DatasetSyncJob) Run() {
	startTime := time.Now()

	certCount, priceCount, err := j.sync.Sync("")
	if err != nil {
		j.logger.WithError(err).Error("Dataset sync failed")
		return
	}

	j.logger.WithFields(logrus.Fields{
		"cert_count":      certCount,
		"price_count":     priceCount,
		"processing_time": time.Since(startTime),
	}).Info("Dataset sync completed")
}
