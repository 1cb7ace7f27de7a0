package fetch

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/howardwork830-creator/nomad-guide/internal/config"
	"github.com/howardwork830-creator/nomad-guide/internal/quality"
	"github.com/howardwork830-creator/nomad-guide/internal/resilience"
	"github.com/howardwork830-creator/nomad-guide/internal/validate"
)

// FlightClient queries a SerpApi-style Google Flights endpoint for
// round-trip prices in TWD.
type FlightClient struct {
	cfg  config.FlightsConfig
	call *caller

	nowFunc func() time.Time
}

// NewFlightClient creates a flight price client gated by the shared
// breaker and limiter registries under the source name "flights".
func NewFlightClient(cfg config.FlightsConfig, breakers *resilience.Registry, limiters *resilience.LimiterRegistry) *FlightClient {
	return &FlightClient{
		cfg:     cfg,
		call:    newCaller("flights", cfg.Timeout(), breakers, limiters),
		nowFunc: time.Now,
	}
}

// Configured reports whether an API key is present.
func (c *FlightClient) Configured() bool { return c.cfg.Key != "" }

type flightPrice struct {
	Price float64 `json:"price"`
}

type flightsResponse struct {
	Error        string        `json:"error"`
	BestFlights  []flightPrice `json:"best_flights"`
	OtherFlights []flightPrice `json:"other_flights"`
}

// Quote returns the lowest round-trip price for the route, wrapped with
// live-API provenance. Dates default to departing in 30 days for a
// 7-day trip. An unconfigured client returns ErrUnavailable.
func (c *FlightClient) Quote(ctx context.Context, origin, destination string) (*quality.Sample, error) {
	if !c.Configured() {
		return nil, ErrUnavailable
	}

	departure := c.nowFunc().AddDate(0, 0, 30)
	ret := departure.AddDate(0, 0, 7)

	params := url.Values{}
	params.Set("engine", "google_flights")
	params.Set("departure_id", origin)
	params.Set("arrival_id", destination)
	params.Set("outbound_date", departure.Format("2006-01-02"))
	params.Set("return_date", ret.Format("2006-01-02"))
	params.Set("currency", "TWD")
	params.Set("hl", "en")
	params.Set("api_key", c.cfg.Key)

	var resp flightsResponse
	err := c.call.getJSON(ctx, c.cfg.BaseURL+"?"+params.Encode(), &resp, func() error {
		if resp.Error != "" {
			return eris.Errorf("flights: api error: %s", resp.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lowest := 0.0
	found := false
	for _, list := range [][]flightPrice{resp.BestFlights, resp.OtherFlights} {
		for _, f := range list {
			if f.Price <= 0 {
				continue
			}
			if !found || f.Price < lowest {
				lowest = f.Price
				found = true
			}
		}
	}
	if !found {
		zap.L().Warn("no flight prices in response",
			zap.String("origin", origin),
			zap.String("destination", destination),
		)
		return nil, ErrUnavailable
	}

	res := validate.FlightCost(lowest, origin, destination, false)
	if !res.IsValid {
		return nil, eris.Errorf("flights: invalid price %g TWD: %v", lowest, res.Errors)
	}

	sample := quality.FromLiveAPI(res.SanitizedValue, "flight_cost", res.Confidence*100, res.Warnings)
	zap.L().Info("flight price retrieved",
		zap.String("origin", origin),
		zap.String("destination", destination),
		zap.Float64("price_twd", sample.Value),
		zap.Float64("quality_score", sample.QualityScore),
	)
	return sample, nil
}
