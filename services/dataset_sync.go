package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/hashirwa/oracle-backend/models"
	"github.com/hashirwa/oracle-backend/shared"
	"github.com/sirupsen/logrus"
)

// DatasetSyncService pulls the canonical issuer dataset (the published
// JSON the oracle network verifies against) and replaces the catalog's
// cert and price records with it.
type DatasetSyncService struct {
	catalog    *IssuerCatalog
	datasetURL string
	client     *http.Client
	logger     *logrus.Entry
}

// oracleDataset mirrors the published dataset shape:
// {"cert_by_issuer": {"1": {...}}, "price_by_issuer": {"1": {...}}}
type oracleDataset struct {
	CertByIssuer  map[string]models.CertInfo  `json:"cert_by_issuer"`
	PriceByIssuer map[string]models.PriceInfo `json:"price_by_issuer"`
}

// NewDatasetSyncService creates a sync service for the default dataset URL.
func NewDatasetSyncService(catalog *IssuerCatalog, datasetURL string, factory *shared.HTTPClientFactory) *DatasetSyncService {
	if factory == nil {
		factory = shared.NewHTTPClientFactory(10 * time.Second)
	}

	return &DatasetSyncService{
		catalog:    catalog,
		datasetURL: datasetURL,
		client:     factory.CreateOptimizedHTTPClient(10 * time.Second),
		logger:     logrus.WithField("component", "DatasetSyncService"),
	}
}

// Sync fetches the dataset from url (empty means the configured default)
// and applies every record to the catalog. Returns cert and price record
// counts applied.
func (s *DatasetSyncService) Sync(url string) (int, int, error) {
	if url == "" {
		url = s.datasetURL
	}
	if url == "" {
		return 0, 0, fmt.Errorf("no dataset URL configured")
	}

	// Cache-bust so stale CDN copies of the raw dataset are skipped.
	fetchURL := fmt.Sprintf("%s?cb=%d", url, time.Now().UnixMilli())

	request, err := http.NewRequest(http.MethodGet, fetchURL, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build dataset request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Cache-Control", "no-cache")

	response, err := shared.ExecuteHTTPRequestWithRetry(s.client, request, 2)
	if err != nil {
		return 0, 0, fmt.Errorf("dataset fetch failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read dataset body: %w", err)
	}

	var dataset oracleDataset
	if err := json.Unmarshal(body, &dataset); err != nil {
		return 0, 0, fmt.Errorf("invalid dataset payload: %w", err)
	}

	certCount := s.applyCerts(dataset.CertByIssuer)
	priceCount := s.applyPrices(dataset.PriceByIssuer)

	s.logger.WithFields(logrus.Fields{
		"url":         url,
		"cert_count":  certCount,
		"price_count": priceCount,
	}).Info("Issuer dataset synced")

	return certCount, priceCount, nil
}

func (s *DatasetSyncService) applyCerts(records map[string]models.CertInfo) int {
	count := 0
	for _, id := range sortedDatasetIDs(records) {
		s.catalog.SetCert(id, records[strconv.Itoa(id)])
		count++
	}
	return count
}

func (s *DatasetSyncService) applyPrices(records map[string]models.PriceInfo) int {
	count := 0
	for _, id := range sortedDatasetIDs(records) {
		s.catalog.SetPrice(id, records[strconv.Itoa(id)])
		count++
	}
	return count
}

// sortedDatasetIDs extracts the numeric issuer ids from a dataset section,
// skipping malformed keys.
func sortedDatasetIDs[V any](records map[string]V) []int {
	ids := make([]int, 0, len(records))
	for key := range records {
		id, err := strconv.Atoi(key)
		if err != nil {
			logrus.WithField("component", "DatasetSyncService").
				Warnf("Ignoring dataset record with non-numeric issuer id %q", key)
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
