package cache

import (
	"context"
	"strconv"
	"time"
)

// Keys of the read-side snapshots. Snapshots are stamped with the value of
// KeyGeneration read before the store was queried; mutations bump it, which
// retires every older snapshot.
const (
	KeyAvailableBatches = "inventory:batches:available"
	KeyMetrics          = "inventory:metrics"
	KeyGeneration       = "inventory:snapshot:generation"
	suggestionPrefix    = "inventory:suggest:"
)

// SuggestionKey identifies a predicted selling rate for a variant and inward
// rate.
func SuggestionKey(variantKey string, inwardMinor int64) string {
	return suggestionPrefix + variantKey + ":" + strconv.FormatInt(inwardMinor, 10)
}

// Cache stores JSON snapshots. A miss is (false, nil), never an error.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Generation reads a counter; an unset counter is zero.
	Generation(ctx context.Context, key string) (int64, error)
	// Bump atomically increments a counter and returns the new value.
	Bump(ctx context.Context, key string) (int64, error)
}

type Noop struct{}

func (Noop) GetJSON(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (Noop) SetJSON(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (Noop) Delete(_ context.Context, _ ...string) error {
	return nil
}

func (Noop) Generation(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (Noop) Bump(_ context.Context, _ string) (int64, error) {
	return 0, nil
}
