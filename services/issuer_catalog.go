package services

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/hashirwa/oracle-backend/models"
	"github.com/sirupsen/logrus"
)

// IssuerCatalog holds the per-issuer reference records the shim serves to
// the oracle network. Read-mostly: writes happen only at boot, through the
// admin override endpoints, and on dataset sync.
type IssuerCatalog struct {
	issuers map[int]*models.Issuer
	mutex   sync.RWMutex
	logger  *logrus.Entry
}

// NewIssuerCatalog creates an empty catalog.
func NewIssuerCatalog() *IssuerCatalog {
	return &IssuerCatalog{
		issuers: make(map[int]*models.Issuer),
		logger:  logrus.WithField("component", "IssuerCatalog"),
	}
}

// LoadSeedFile replaces the catalog contents with the issuers in a JSON
// seed file (the same shape the dataset admin endpoints accept).
func (c *IssuerCatalog) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var issuers []models.Issuer
	if err := json.Unmarshal(data, &issuers); err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	c.Replace(issuers)
	c.logger.WithFields(logrus.Fields{
		"path":  path,
		"count": len(issuers),
	}).Info("Loaded issuer catalog from seed file")

	return nil
}

// Replace swaps the whole catalog. Used at boot and by tests.
func (c *IssuerCatalog) Replace(issuers []models.Issuer) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.issuers = make(map[int]*models.Issuer, len(issuers))
	for i := range issuers {
		issuer := issuers[i]
		if issuer.UpdatedAt.IsZero() {
			issuer.UpdatedAt = time.Now()
		}
		c.issuers[issuer.ID] = &issuer
	}
}

// Get returns a copy of one issuer record.
func (c *IssuerCatalog) Get(id int) (*models.Issuer, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	issuer, exists := c.issuers[id]
	if !exists {
		return nil, false
	}

	copied := cloneIssuer(issuer)
	return &copied, true
}

// cloneIssuer copies an issuer record including its nested cert and price
// so callers can never mutate catalog state through a returned pointer.
func cloneIssuer(issuer *models.Issuer) models.Issuer {
	copied := *issuer
	if issuer.Cert != nil {
		cert := *issuer.Cert
		copied.Cert = &cert
	}
	if issuer.Price != nil {
		price := *issuer.Price
		copied.Price = &price
	}
	return copied
}

// Exists reports whether the catalog knows the issuer id.
func (c *IssuerCatalog) Exists(id int) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, exists := c.issuers[id]
	return exists
}

// IDs returns all issuer ids in ascending order.
func (c *IssuerCatalog) IDs() []int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	ids := make([]int, 0, len(c.issuers))
	for id := range c.issuers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// All returns copies of every issuer record, ordered by id.
func (c *IssuerCatalog) All() []models.Issuer {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	issuers := make([]models.Issuer, 0, len(c.issuers))
	for _, issuer := range c.issuers {
		issuers = append(issuers, cloneIssuer(issuer))
	}
	sort.Slice(issuers, func(i, j int) bool { return issuers[i].ID < issuers[j].ID })
	return issuers
}

// SetCert overrides an issuer's certification record. Creates the issuer
// when it is not in the catalog yet, mirroring the admin write path.
func (c *IssuerCatalog) SetCert(issuerID int, cert models.CertInfo) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	issuer, exists := c.issuers[issuerID]
	if !exists {
		issuer = &models.Issuer{ID: issuerID}
		c.issuers[issuerID] = issuer
	}

	issuer.Cert = &cert
	issuer.UpdatedAt = time.Now()
}

// SetPrice overrides an issuer's price record, creating the issuer if absent.
func (c *IssuerCatalog) SetPrice(issuerID int, price models.PriceInfo) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	issuer, exists := c.issuers[issuerID]
	if !exists {
		issuer = &models.Issuer{ID: issuerID}
		c.issuers[issuerID] = issuer
	}

	issuer.Price = &price
	issuer.UpdatedAt = time.Now()
}

// Size returns the number of catalog entries.
func (c *IssuerCatalog) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.issuers)
}

// Reset clears the catalog. Test hook.
func (c *IssuerCatalog) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.issuers = make(map[int]*models.Issuer)
}
