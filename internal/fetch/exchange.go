package fetch

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/howardwork830-creator/nomad-guide/internal/config"
	"github.com/howardwork830-creator/nomad-guide/internal/quality"
	"github.com/howardwork830-creator/nomad-guide/internal/resilience"
	"github.com/howardwork830-creator/nomad-guide/internal/validate"
)

// ExchangeClient queries an exchangerate-api-style endpoint for
// TWD-based conversion rates.
type ExchangeClient struct {
	cfg  config.ExchangeConfig
	call *caller
}

// NewExchangeClient creates an exchange rate client gated by the shared
// breaker and limiter registries under the source name "exchange".
func NewExchangeClient(cfg config.ExchangeConfig, breakers *resilience.Registry, limiters *resilience.LimiterRegistry) *ExchangeClient {
	return &ExchangeClient{
		cfg:  cfg,
		call: newCaller("exchange", cfg.Timeout(), breakers, limiters),
	}
}

// Configured reports whether an API key is present.
func (c *ExchangeClient) Configured() bool { return c.cfg.Key != "" }

type exchangeResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// Rates fetches all conversion rates for the base currency. Rates that
// fail validation are dropped with a warning; the rest come back wrapped
// with live-API provenance keyed by currency code.
func (c *ExchangeClient) Rates(ctx context.Context, base string) (map[string]*quality.Sample, error) {
	if !c.Configured() {
		return nil, ErrUnavailable
	}

	var resp exchangeResponse
	url := fmt.Sprintf("%s/%s/latest/%s", c.cfg.BaseURL, c.cfg.Key, base)
	err := c.call.getJSON(ctx, url, &resp, func() error {
		if resp.Result != "success" {
			return eris.Errorf("exchange: api error: %s", resp.ErrorType)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(resp.ConversionRates) == 0 {
		return nil, ErrUnavailable
	}

	samples := make(map[string]*quality.Sample, len(resp.ConversionRates))
	for currency, raw := range resp.ConversionRates {
		res := validate.ExchangeRate(raw, currency, false)
		if !res.IsValid {
			zap.L().Warn("dropping invalid exchange rate",
				zap.String("currency", currency),
				zap.Float64("rate", raw),
				zap.Strings("errors", res.Errors),
			)
			continue
		}
		samples[currency] = quality.FromLiveAPI(res.SanitizedValue, "exchange_rate", res.Confidence*100, res.Warnings)
	}

	zap.L().Info("exchange rates retrieved",
		zap.String("base", base),
		zap.Int("currencies", len(samples)),
	)
	return samples, nil
}
