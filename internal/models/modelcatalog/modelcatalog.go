// Package modelcatalog provides types for the injected service catalog.
package modelcatalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// defaultCatalogJSON lists the services sold by default when no catalog
// source is configured.
const defaultCatalogJSON = `{
	"instagram followers": {"service_id": 1834, "price_per_1000": "2.0"},
	"instagram likes":     {"service_id": 793,  "price_per_1000": "4.0"},
	"tiktok followers":    {"service_id": 2004, "price_per_1000": "4.0"},
	"tiktok likes":        {"service_id": 1663, "price_per_1000": "4.0"},
	"tiktok views":        {"service_id": 1885, "price_per_1000": "4.0"}
}`

// Entry describes one sellable service: its provider-side identifier and the
// price charged per 1000 units.
type Entry struct {
	ServiceID    int64           `json:"service_id"`
	PricePer1000 decimal.Decimal `json:"price_per_1000"`
}

// Catalog maps a lowercase service key to its catalog entry. A Catalog is
// immutable after Parse.
type Catalog map[string]Entry

// Parse builds a catalog from its JSON representation. Keys are lowercased so
// that lookup is case-insensitive.
func Parse(data []byte) (Catalog, error) {
	var raw map[string]Entry
	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("service catalog is empty")
	}
	catalog := make(Catalog, len(raw))
	for key, entry := range raw {
		if entry.ServiceID <= 0 {
			return nil, fmt.Errorf("service %q: non-positive provider service id", key)
		}
		if !entry.PricePer1000.IsPositive() {
			return nil, fmt.Errorf("service %q: non-positive price", key)
		}
		catalog[strings.ToLower(key)] = entry
	}
	return catalog, nil
}

// Default returns the built-in catalog.
func Default() Catalog {
	catalog, err := Parse([]byte(defaultCatalogJSON))
	if err != nil {
		panic(err)
	}
	return catalog
}

// Resolve looks a service key up case-insensitively.
func (c Catalog) Resolve(key string) (Entry, bool) {
	entry, ok := c[strings.ToLower(key)]
	return entry, ok
}

// Cost computes the price of quantity units, rounded half-even to currency
// precision.
func (e Entry) Cost(quantity int) decimal.Decimal {
	return e.PricePer1000.Mul(decimal.NewFromInt(int64(quantity))).Div(decimal.NewFromInt(1000)).RoundBank(2)
}
