package services

import (
	"testing"

	"github.com/hashirwa/oracle-backend/models"
	"github.com/hashirwa/oracle-backend/shared"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *IssuerCatalog {
	catalog := NewIssuerCatalog()
	catalog.Replace([]models.Issuer{
		{
			ID:          1,
			CompanyName: "Haranoseichahonpo",
			ProductName: "Okuyame Green Tea",
			Cert:        &models.CertInfo{OK: true, Standard: "JGAP", Subject: "Haranoseichahonpo"},
			Price:       &models.PriceInfo{OK: true, SKU: "green_tea_okuyame", JPYPerKg: 4200},
		},
		{
			ID:          2,
			CompanyName: "Beni Haruka Farms",
			ProductName: "Sweet Potato",
			Price:       &models.PriceInfo{OK: true, SKU: "sweet_potato_beni_haruka", JPYPerKg: 380.5},
		},
	})
	return catalog
}

func TestShimQueryEncodings(t *testing.T) {
	shim := NewShimService(testCatalog())

	cert, err := shim.Query(1, models.ModeCert)
	require.NoError(t, err)
	assert.Equal(t, "1|CERT|1|JGAP", cert)

	price, err := shim.Query(1, models.ModePrice)
	require.NoError(t, err)
	assert.Equal(t, "1|PRICE|1|green_tea_okuyame|4200.00", price)

	// Issuer 2 has no cert record: well-formed negative answer.
	cert, err = shim.Query(2, models.ModeCert)
	require.NoError(t, err)
	assert.Equal(t, "0|CERT|2|NA", cert)

	price, err = shim.Query(2, models.ModePrice)
	require.NoError(t, err)
	assert.Equal(t, "1|PRICE|2|sweet_potato_beni_haruka|380.50", price)
}

func TestShimQueryUnknownIssuer(t *testing.T) {
	shim := NewShimService(testCatalog())

	_, err := shim.Query(999, models.ModeCert)
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.CodeNotFound))

	_, err = shim.Query(999, models.ModePrice)
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.CodeNotFound))
}

func TestShimQueryInvalidMode(t *testing.T) {
	shim := NewShimService(testCatalog())

	for _, mode := range []string{"", "CERT ", "gmp", "certs"} {
		_, err := shim.Query(1, models.Mode(mode))
		require.Error(t, err, "mode %q", mode)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidMode), "mode %q", mode)
	}
}

func TestShimQueryIsPure(t *testing.T) {
	shim := NewShimService(testCatalog())
	properties := gopter.NewProperties(nil)

	properties.Property("repeated queries for any known issuer return identical output", prop.ForAll(
		func(pick int, repeats int) bool {
			issuerID := []int{1, 2}[pick%2]
			for _, mode := range []models.Mode{models.ModeCert, models.ModePrice} {
				first, err := shim.Query(issuerID, mode)
				if err != nil {
					return false
				}
				for i := 0; i < repeats%5+1; i++ {
					again, err := shim.Query(issuerID, mode)
					if err != nil || again != first {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
