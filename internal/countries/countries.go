// Package countries loads the destination catalog: per-destination
// currency, airport, baselines, and the expanded indicator values that
// change rarely enough to live in config rather than behind an API.
package countries

import (
	_ "embed"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed countries.yaml
var defaultCatalog []byte

// Origin is the fixed traveler profile.
type Origin struct {
	Name     string `yaml:"name"`
	Airport  string `yaml:"airport"`
	Currency string `yaml:"currency"`
}

// Baseline holds the reference values momentum is measured against.
type Baseline struct {
	ExchangeRate  float64 `yaml:"exchange_rate"`
	FlightCostTWD float64 `yaml:"flight_cost_twd"`
	ColUSD        float64 `yaml:"col_usd"`
	AsOf          string  `yaml:"as_of"`
}

// Destination is one ranked destination.
type Destination struct {
	Key          string   `yaml:"-"`
	Name         string   `yaml:"name"`
	Country      string   `yaml:"country"`
	CurrencyCode string   `yaml:"currency"`
	AirportCode  string   `yaml:"airport"`
	Region       string   `yaml:"region"`
	Baseline     Baseline `yaml:"baseline"`

	// Expanded indicators. Nil means not available for this destination.
	SafetyScore  *float64 `yaml:"safety_score"`
	VisaScore    *float64 `yaml:"visa_score"`
	AccessScore  *float64 `yaml:"access_score"`
	HasNomadVisa bool     `yaml:"has_nomad_visa"`
}

// HasExpandedData reports whether all three expanded indicators are set.
func (d *Destination) HasExpandedData() bool {
	return d.SafetyScore != nil && d.VisaScore != nil && d.AccessScore != nil
}

// Catalog is the full destination configuration.
type Catalog struct {
	Origin       Origin                  `yaml:"origin"`
	Destinations map[string]*Destination `yaml:"destinations"`
}

// Load reads a catalog from path, or the embedded default when path is
// empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "reading countries file %s", path)
		}
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "parsing countries yaml")
	}
	for key, d := range c.Destinations {
		d.Key = key
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if c.Origin.Airport == "" || c.Origin.Currency == "" {
		return eris.New("origin airport and currency are required")
	}
	if len(c.Destinations) == 0 {
		return eris.New("no destinations configured")
	}
	for key, d := range c.Destinations {
		switch {
		case d.Name == "":
			return eris.Errorf("destination %s: missing name", key)
		case d.CurrencyCode == "":
			return eris.Errorf("destination %s: missing currency", key)
		case d.AirportCode == "":
			return eris.Errorf("destination %s: missing airport", key)
		case d.Baseline.ExchangeRate <= 0:
			return eris.Errorf("destination %s: baseline exchange rate must be positive", key)
		case d.Baseline.FlightCostTWD <= 0:
			return eris.Errorf("destination %s: baseline flight cost must be positive", key)
		case d.Baseline.ColUSD <= 0:
			return eris.Errorf("destination %s: baseline cost of living must be positive", key)
		}
	}
	return nil
}

// Get returns a destination by key.
func (c *Catalog) Get(key string) (*Destination, bool) {
	d, ok := c.Destinations[key]
	return d, ok
}

// Keys returns destination keys in stable sorted order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.Destinations))
	for k := range c.Destinations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns destinations in stable key order.
func (c *Catalog) All() []*Destination {
	keys := c.Keys()
	out := make([]*Destination, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.Destinations[k])
	}
	return out
}
