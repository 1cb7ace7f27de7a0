package countries

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedCatalog(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "TPE", c.Origin.Airport)
	assert.Equal(t, "TWD", c.Origin.Currency)
	assert.NotEmpty(t, c.Destinations)

	japan, ok := c.Get("japan")
	require.True(t, ok)
	assert.Equal(t, "japan", japan.Key)
	assert.Equal(t, "JPY", japan.CurrencyCode)
	assert.Equal(t, "NRT", japan.AirportCode)
	assert.Positive(t, japan.Baseline.ExchangeRate)
	assert.True(t, japan.HasExpandedData())
	assert.True(t, japan.HasNomadVisa)
}

func TestKeysAreSorted(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	keys := c.Keys()
	require.NotEmpty(t, keys)
	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1], keys[i])
	}
	assert.Len(t, c.All(), len(keys))
}

func TestLoadFromFile(t *testing.T) {
	doc := `
origin:
  name: Taiwan
  airport: TPE
  currency: TWD
destinations:
  testland:
    name: Testland
    country: Testland
    currency: USD
    airport: TST
    baseline:
      exchange_rate: 0.03
      flight_cost_twd: 20000
      col_usd: 1500
`
	path := filepath.Join(t.TempDir(), "countries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	d, ok := c.Get("testland")
	require.True(t, ok)
	assert.False(t, d.HasExpandedData())
	assert.False(t, d.HasNomadVisa)
}

func TestLoadRejectsInvalidCatalog(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"missing origin", "destinations:\n  x:\n    name: X\n"},
		{"no destinations", "origin:\n  airport: TPE\n  currency: TWD\n"},
		{"zero baseline", `
origin:
  airport: TPE
  currency: TWD
destinations:
  x:
    name: X
    country: X
    currency: USD
    airport: XXX
    baseline:
      exchange_rate: 0
      flight_cost_twd: 20000
      col_usd: 1500
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "countries.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.doc), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/countries.yaml")
	assert.Error(t, err)
}
