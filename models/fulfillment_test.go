package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	mode, ok := ParseMode("cert")
	assert.True(t, ok)
	assert.Equal(t, ModeCert, mode)

	mode, ok = ParseMode(" PRICE ")
	assert.True(t, ok)
	assert.Equal(t, ModePrice, mode)

	_, ok = ParseMode("volume")
	assert.False(t, ok)
	_, ok = ParseMode("")
	assert.False(t, ok)
}

func TestStatusTerminality(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusFulfilled.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
}

func TestRequestKeyString(t *testing.T) {
	key := RequestKey{IssuerID: 3, Mode: ModePrice, RoundID: 7}
	assert.Equal(t, "3/price/7", key.String())
}

func TestParseOracleValueCert(t *testing.T) {
	value, err := ParseOracleValue("1|CERT|3|JGAP")
	require.NoError(t, err)
	assert.True(t, value.OK)
	assert.Equal(t, ModeCert, value.Kind)
	assert.Equal(t, 3, value.IssuerID)
	assert.Equal(t, "JGAP", value.Standard)
}

func TestParseOracleValueCertNotOK(t *testing.T) {
	value, err := ParseOracleValue("0|CERT|3|NA")
	require.NoError(t, err)
	assert.False(t, value.OK)
	assert.Equal(t, "NA", value.Standard)
}

func TestParseOracleValuePrice(t *testing.T) {
	value, err := ParseOracleValue("1|PRICE|1|sku-gt-001|4200.00")
	require.NoError(t, err)
	assert.True(t, value.OK)
	assert.Equal(t, ModePrice, value.Kind)
	assert.Equal(t, 1, value.IssuerID)
	assert.Equal(t, "sku-gt-001", value.SKU)
	assert.Equal(t, 4200.0, value.JPYPerKg)
}

func TestParseOracleValueRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"1|CERT|3",
		"1|PRICE|1|sku-gt-001",
		"1|VOLUME|1|x",
		"1|CERT|abc|JGAP",
		"1|PRICE|1|sku|notanumber",
	}
	for _, raw := range cases {
		_, err := ParseOracleValue(raw)
		assert.Error(t, err, "payload %q", raw)
	}
}
