package service

import (
	"context"

	"hosiery/backend/internal/cache"
)

// snapshot is a cached read model stamped with the generation that was
// current before the store was read.
type snapshot[T any] struct {
	Generation int64 `json:"generation"`
	Data       T     `json:"data"`
}

// generation returns the current snapshot generation. ok is false when the
// cache cannot answer, in which case nothing may be read from or written to
// the snapshot keys.
func (s *Service) generation(ctx context.Context) (int64, bool) {
	gen, err := s.cache.Generation(ctx, cache.KeyGeneration)
	if err != nil {
		s.log.WithError(err).Warn("snapshot generation read failed")
		return 0, false
	}
	return gen, true
}

// loadSnapshot returns the cached value under key when it was taken at gen.
func loadSnapshot[T any](ctx context.Context, s *Service, key string, gen int64) (T, bool) {
	var snap snapshot[T]
	ok, err := s.cache.GetJSON(ctx, key, &snap)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("snapshot cache read failed")
		return snap.Data, false
	}
	if !ok || snap.Generation != gen {
		var zero T
		return zero, false
	}
	return snap.Data, true
}

// storeSnapshot caches data taken at gen. A snapshot from an older
// generation may overwrite a newer one; readers reject it on load.
func storeSnapshot[T any](ctx context.Context, s *Service, key string, gen int64, data T) {
	if err := s.cache.SetJSON(ctx, key, snapshot[T]{Generation: gen, Data: data}, s.cacheTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("snapshot cache write failed")
	}
}

// invalidate retires every snapshot taken before the mutation that just
// committed.
func (s *Service) invalidate(ctx context.Context) {
	if _, err := s.cache.Bump(ctx, cache.KeyGeneration); err != nil {
		s.log.WithError(err).Warn("snapshot generation bump failed")
	}
	if err := s.cache.Delete(ctx, cache.KeyAvailableBatches, cache.KeyMetrics); err != nil {
		s.log.WithError(err).Warn("failed to invalidate inventory snapshots")
	}
}
