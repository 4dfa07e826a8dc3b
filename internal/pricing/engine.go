// Package pricing suggests a selling rate for incoming stock.
package pricing

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"hosiery/backend/internal/cache"
	"hosiery/backend/internal/domain"
	"hosiery/backend/internal/logging"
	"hosiery/backend/internal/money"
)

const seasonalFactor = 1.02

var baseMargins = map[string]float64{
	"Plain":  1.15,
	"Dora":   1.18,
	"Zipper": 1.12,
}

const defaultMargin = 1.15

var highDemand = map[domain.Variant]struct{}{}

func init() {
	for _, v := range [][2]string{
		{"Plain", "Navy Blue"},
		{"Plain", "White"},
		{"Dora", "Navy Blue+White"},
	} {
		highDemand[domain.Variant{Type: v[0], Color: v[1]}] = struct{}{}
	}
}

type Engine struct {
	cache    cache.Cache
	cacheTTL time.Duration
	log      logrus.FieldLogger
}

func NewEngine(cacheStore cache.Cache, cacheTTL time.Duration, logger logrus.FieldLogger) *Engine {
	if cacheStore == nil {
		cacheStore = cache.Noop{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{cache: cacheStore, cacheTTL: cacheTTL, log: logger.WithField("component", "pricing")}
}

// Suggest reuses the selling rate of the most recently touched available
// layer of the variant; with no such layer it predicts one from the inward
// rate.
func (e *Engine) Suggest(ctx context.Context, variant domain.Variant, inward money.Amount, existing []domain.Batch) domain.SuggestRateResponse {
	if rate, ok := latestSellingRate(variant, existing); ok {
		return response(rate, inward, domain.RateSourceExisting)
	}

	key := cache.SuggestionKey(variant.Key(), int64(inward))
	var cached domain.SuggestRateResponse
	ok, err := e.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		e.log.WithError(err).WithField("key", key).Warn("suggestion cache read failed")
	} else if ok {
		return cached
	}

	resp := response(Predict(variant, inward), inward, domain.RateSourcePredicted)
	if err := e.cache.SetJSON(ctx, key, resp, e.cacheTTL); err != nil {
		e.log.WithError(err).WithField("key", key).Warn("suggestion cache write failed")
	}
	return resp
}

// Predict applies the type margin, the seasonal factor and the demand
// factor, rounded to whole currency units.
func Predict(variant domain.Variant, inward money.Amount) money.Amount {
	margin, ok := baseMargins[variant.Type]
	if !ok {
		margin = defaultMargin
	}
	demand := 1.0
	if _, hot := highDemand[domain.Variant{Type: variant.Type, Color: variant.Color}]; hot {
		demand = 1.05
	}
	units := inward.Float64() * margin * seasonalFactor * demand
	return money.FromUnits(int64(math.Round(units)))
}

func latestSellingRate(variant domain.Variant, existing []domain.Batch) (money.Amount, bool) {
	candidates := make([]domain.Batch, 0, len(existing))
	for _, b := range existing {
		if b.Available() && b.Variant() == variant {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	latest := slices.MaxFunc(candidates, func(a, b domain.Batch) int {
		return a.LastUpdated.Compare(b.LastUpdated)
	})
	return latest.SellingRate, true
}

func response(selling, inward money.Amount, source string) domain.SuggestRateResponse {
	resp := domain.SuggestRateResponse{
		SellingRate: selling,
		Source:      source,
		UnitProfit:  selling - inward,
	}
	if inward > 0 {
		resp.MarginPercent = math.Round(float64(selling-inward)/float64(inward)*10000) / 100
	}
	return resp
}
