package modelcatalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLowercasesKeys(t *testing.T) {
	catalog, err := Parse([]byte(`{"TikTok Views": {"service_id": 1885, "price_per_1000": "4.0"}}`))
	require.NoError(t, err)
	entry, ok := catalog.Resolve("tiktok views")
	require.True(t, ok)
	assert.Equal(t, int64(1885), entry.ServiceID)

	entry, ok = catalog.Resolve("TIKTOK VIEWS")
	require.True(t, ok)
	assert.Equal(t, int64(1885), entry.ServiceID)
}

func TestParseRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty catalog", data: `{}`},
		{name: "zero service id", data: `{"x": {"service_id": 0, "price_per_1000": "4.0"}}`},
		{name: "negative price", data: `{"x": {"service_id": 1, "price_per_1000": "-4.0"}}`},
		{name: "not json", data: `oops`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	catalog := Default()
	entry, ok := catalog.Resolve("tiktok views")
	require.True(t, ok)
	assert.Equal(t, int64(1885), entry.ServiceID)
	assert.True(t, entry.PricePer1000.Equal(decimal.RequireFromString("4.0")))
	_, ok = catalog.Resolve("youtube subscribers")
	assert.False(t, ok)
}

func TestCost(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		quantity int
		want     string
	}{
		{name: "exact thousand", price: "4.0", quantity: 1000, want: "4.00"},
		{name: "five thousand", price: "4.0", quantity: 5000, want: "20.00"},
		{name: "fraction", price: "2.0", quantity: 1125, want: "2.25"},
		{name: "half rounds to even down", price: "1.0", quantity: 125, want: "0.12"},
		{name: "half rounds to even up", price: "1.0", quantity: 375, want: "0.38"},
		{name: "single unit", price: "4.0", quantity: 1, want: "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := Entry{ServiceID: 1, PricePer1000: decimal.RequireFromString(tt.price)}
			cost := entry.Cost(tt.quantity)
			assert.True(t, cost.Equal(decimal.RequireFromString(tt.want)), "cost was %s, want %s", cost, tt.want)
		})
	}
}
