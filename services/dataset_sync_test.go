package services

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const datasetFixture = `{
	"cert_by_issuer": {
		"1": {"ok": true, "std": "JGAP", "sub": "green tea"},
		"2": {"ok": false, "std": "", "sub": ""}
	},
	"price_by_issuer": {
		"1": {"ok": true, "sku": "sku-gt-001", "jpykg": 4200},
		"3": {"ok": true, "sku": "sku-wb-003", "jpykg": 12000}
	}
}`

func TestDatasetSyncAppliesRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The fetch must cache-bust the raw URL.
		assert.NotEmpty(t, r.URL.Query().Get("cb"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(datasetFixture))
	}))
	defer server.Close()

	catalog := NewIssuerCatalog()
	sync := NewDatasetSyncService(catalog, server.URL, nil)

	certCount, priceCount, err := sync.Sync("")
	require.NoError(t, err)
	assert.Equal(t, 2, certCount)
	assert.Equal(t, 2, priceCount)

	issuer, exists := catalog.Get(1)
	require.True(t, exists)
	require.NotNil(t, issuer.Cert)
	assert.Equal(t, "JGAP", issuer.Cert.Standard)
	require.NotNil(t, issuer.Price)
	assert.Equal(t, 4200.0, issuer.Price.JPYPerKg)

	issuer, exists = catalog.Get(2)
	require.True(t, exists)
	require.NotNil(t, issuer.Cert)
	assert.False(t, issuer.Cert.OK)

	issuer, exists = catalog.Get(3)
	require.True(t, exists)
	require.NotNil(t, issuer.Price)
	assert.Equal(t, "sku-wb-003", issuer.Price.SKU)
}

func TestDatasetSyncSkipsMalformedIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cert_by_issuer": {"abc": {"ok": true}}, "price_by_issuer": {}}`))
	}))
	defer server.Close()

	catalog := NewIssuerCatalog()
	sync := NewDatasetSyncService(catalog, server.URL, nil)

	certCount, priceCount, err := sync.Sync("")
	require.NoError(t, err)
	assert.Equal(t, 0, certCount)
	assert.Equal(t, 0, priceCount)
	assert.Equal(t, 0, catalog.Size())
}

func TestDatasetSyncRejectsInvalidPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	sync := NewDatasetSyncService(NewIssuerCatalog(), server.URL, nil)
	_, _, err := sync.Sync("")
	assert.Error(t, err)
}

func TestDatasetSyncRequiresURL(t *testing.T) {
	sync := NewDatasetSyncService(NewIssuerCatalog(), "", nil)
	_, _, err := sync.Sync("")
	assert.Error(t, err)
}
