package services

import (
	"fmt"
	"time"

	"github.com/hashirwa/oracle-backend/models"
	"github.com/hashirwa/oracle-backend/shared"
)

// ShimService translates (issuer_id, mode) into the compact encoded value
// the oracle network's off-chain compute step forwards to the consumer
// contract. Pure and side-effect free: the network may retry its HTTP call
// and must always see the same answer for the same catalog state.
//
// Encodings stay pipe-delimited because the network charges per byte of
// returned data:
//
//	cert:  "<ok>|CERT|<issuer_id>|<std>"
//	price: "<ok>|PRICE|<issuer_id>|<sku>|<jpykg>"
type ShimService struct {
	catalog *IssuerCatalog
	metrics *shared.ServiceMetrics
}

// NewShimService creates a shim query service over the issuer catalog.
func NewShimService(catalog *IssuerCatalog) *ShimService {
	return &ShimService{
		catalog: catalog,
		metrics: shared.NewServiceMetrics("ShimService"),
	}
}

// Query returns the encoded reference value for one issuer and mode.
func (s *ShimService) Query(issuerID int, mode models.Mode) (string, error) {
	startTime := time.Now()

	value, err := s.query(issuerID, mode)
	s.metrics.RecordRequest(err == nil, time.Since(startTime))

	return value, err
}

func (s *ShimService) query(issuerID int, mode models.Mode) (string, error) {
	if mode != models.ModeCert && mode != models.ModePrice {
		return "", shared.NewInvalidModeError("ShimService", "query", string(mode))
	}

	issuer, exists := s.catalog.Get(issuerID)
	if !exists {
		return "", shared.NewNotFoundError("ShimService", "query", issuerID)
	}

	switch mode {
	case models.ModeCert:
		return encodeCert(issuer), nil
	default:
		return encodePrice(issuer), nil
	}
}

// Metrics exposes the shim's request counters.
func (s *ShimService) Metrics() *shared.ServiceMetrics {
	return s.metrics
}

func encodeCert(issuer *models.Issuer) string {
	if issuer.Cert == nil {
		return fmt.Sprintf("0|CERT|%d|NA", issuer.ID)
	}

	ok := 0
	if issuer.Cert.OK {
		ok = 1
	}
	return fmt.Sprintf("%d|CERT|%d|%s", ok, issuer.ID, issuer.Cert.Standard)
}

func encodePrice(issuer *models.Issuer) string {
	if issuer.Price == nil {
		return fmt.Sprintf("0|PRICE|%d|NA|0.00", issuer.ID)
	}

	ok := 0
	if issuer.Price.OK {
		ok = 1
	}
	return fmt.Sprintf("%d|PRICE|%d|%s|%.2f", ok, issuer.ID, issuer.Price.SKU, issuer.Price.JPYPerKg)
}
