package sqlstore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/goliatone/go-inbox/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

// StatsCacheKey prefixes the stats entry. The full key carries the store
// generation so a fetch that started before a create can never be served
// after it.
const StatsCacheKey = "go-inbox::stats::v1"

// CachedStatsStore serves Aggregate from a short-lived cache. Every created
// message advances the generation and retires the previous entry. Duplicates
// leave it in place.
type CachedStatsStore struct {
	base       core.MessageStore
	cache      repositorycache.CacheService
	generation atomic.Uint64
}

func NewCachedStatsStore(base core.MessageStore, cacheService repositorycache.CacheService) (*CachedStatsStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base message store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: stats cache service is required")
	}
	return &CachedStatsStore{base: base, cache: cacheService}, nil
}

func (s *CachedStatsStore) Insert(ctx context.Context, candidate core.MessageCandidate) (core.InsertOutcome, error) {
	if s == nil || s.base == nil {
		return core.InsertFailed, fmt.Errorf("sqlstore: cached stats store is not configured")
	}
	outcome, err := s.base.Insert(ctx, candidate)
	if err != nil {
		return outcome, err
	}
	if outcome == core.InsertCreated {
		previous := s.generation.Add(1) - 1
		if s.cache != nil {
			// late writers under older generations expire on their own
			_ = s.cache.Delete(ctx, statsKey(previous))
		}
	}
	return outcome, nil
}

func (s *CachedStatsStore) Query(ctx context.Context, filter core.MessageFilter) (core.MessagePage, error) {
	if s == nil || s.base == nil {
		return core.MessagePage{}, fmt.Errorf("sqlstore: cached stats store is not configured")
	}
	return s.base.Query(ctx, filter)
}

func (s *CachedStatsStore) Get(ctx context.Context, messageID string) (core.Message, error) {
	if s == nil || s.base == nil {
		return core.Message{}, fmt.Errorf("sqlstore: cached stats store is not configured")
	}
	return s.base.Get(ctx, messageID)
}

func (s *CachedStatsStore) Aggregate(ctx context.Context) (core.Stats, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Stats{}, fmt.Errorf("sqlstore: cached stats store is not configured")
	}
	key := statsKey(s.generation.Load())
	stats, err := repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (core.Stats, error) {
		fetched, fetchErr := s.base.Aggregate(ctx)
		if fetchErr != nil {
			return core.Stats{}, fetchErr
		}
		return cloneStats(fetched), nil
	})
	if err != nil {
		return core.Stats{}, err
	}
	return cloneStats(stats), nil
}

func (s *CachedStatsStore) IsReady(ctx context.Context) bool {
	if s == nil || s.base == nil {
		return false
	}
	return s.base.IsReady(ctx)
}

func statsKey(generation uint64) string {
	return fmt.Sprintf("%s::%d", StatsCacheKey, generation)
}

func cloneStats(stats core.Stats) core.Stats {
	cloned := stats
	cloned.MessagesPerSender = append([]core.SenderCount(nil), stats.MessagesPerSender...)
	if cloned.MessagesPerSender == nil {
		cloned.MessagesPerSender = []core.SenderCount{}
	}
	cloned.FirstMessageTS = cloneStringPointer(stats.FirstMessageTS)
	cloned.LastMessageTS = cloneStringPointer(stats.LastMessageTS)
	return cloned
}

func cloneStringPointer(input *string) *string {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}
