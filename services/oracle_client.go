package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashirwa/oracle-backend/models"
	"github.com/hashirwa/oracle-backend/shared"
	"github.com/sirupsen/logrus"
)

// OracleClient submits accepted refresh rounds to the oracle network's
// request bridge. Submission is fire-and-forget beyond acceptance: the
// network runs the off-chain compute step on its own timeout and retry
// policy and delivers the outcome through the callback path.
type OracleClient struct {
	submitURL   string
	maxRetries  int
	client      *http.Client
	rateLimiter *shared.HTTPRequestRateLimiter
	logger      *logrus.Entry
}

// oracleSubmission is the bridge request body.
type oracleSubmission struct {
	RequestID string `json:"request_id"`
	IssuerID  int    `json:"issuer_id"`
	Mode      string `json:"mode"`
	RoundID   int64  `json:"round_id"`
}

// NewOracleClient creates a submission client. An empty submitURL puts the
// client in loopback mode: rounds are accepted locally without any network
// call, staying pending until a callback or expiry. Tests and local demos
// run in this mode.
func NewOracleClient(submitURL string, maxRetries int, factory *shared.HTTPClientFactory) *OracleClient {
	if factory == nil {
		factory = shared.NewHTTPClientFactory(10 * time.Second)
	}

	return &OracleClient{
		submitURL:   submitURL,
		maxRetries:  maxRetries,
		client:      factory.CreateOptimizedHTTPClient(10 * time.Second),
		rateLimiter: shared.NewHTTPRequestRateLimiter(250 * time.Millisecond),
		logger:      logrus.WithField("component", "OracleClient"),
	}
}

// Loopback reports whether the client skips real network submission.
func (oc *OracleClient) Loopback() bool {
	return oc.submitURL == ""
}

// Submit sends one refresh request to the bridge, retrying with bounded
// exponential backoff. A returned error means the retry budget is
// exhausted and the round must be marked failed.
func (oc *OracleClient) Submit(request *models.RefreshRequest) error {
	log := oc.logger.WithFields(logrus.Fields{
		"issuer_id": request.IssuerID,
		"mode":      request.Mode,
		"round_id":  request.RoundID,
	})

	if oc.Loopback() {
		log.Debug("Loopback mode, skipping oracle network submission")
		return nil
	}

	body, err := json.Marshal(oracleSubmission{
		RequestID: request.ID.String(),
		IssuerID:  request.IssuerID,
		Mode:      string(request.Mode),
		RoundID:   request.RoundID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode oracle submission: %w", err)
	}

	httpRequest, err := http.NewRequest(http.MethodPost, oc.submitURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build oracle submission request: %w", err)
	}
	shared.SetJSONHeaders(httpRequest)

	oc.rateLimiter.EnforceRateLimit()

	response, err := shared.ExecuteHTTPRequestWithRetry(oc.client, httpRequest, oc.maxRetries)
	if err != nil {
		return shared.NewSubmissionFailureError("OracleClient", "submit", err)
	}
	defer response.Body.Close()

	log.WithField("status_code", response.StatusCode).Info("Refresh round submitted to oracle network")
	return nil
}
