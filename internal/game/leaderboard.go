package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Leaderboard serves ranked pages of player standings. Pages are cached in
// Redis for a short TTL so a hot leaderboard does not hammer the store; the
// cache is a snapshot, never the source of truth.
type Leaderboard struct {
	store    Store
	rdb      *redis.Client
	ttl      time.Duration
	pageSize int
	minGames int
	logger   *slog.Logger
}

// NewLeaderboard builds a leaderboard over store. rdb may be nil, which
// disables caching entirely.
func NewLeaderboard(store Store, rdb *redis.Client, ttl time.Duration, pageSize, minGames int, logger *slog.Logger) *Leaderboard {
	if pageSize <= 0 {
		pageSize = 20
	}
	if minGames < 1 {
		minGames = 1
	}
	return &Leaderboard{
		store:    store,
		rdb:      rdb,
		ttl:      ttl,
		pageSize: pageSize,
		minGames: minGames,
		logger:   logger,
	}
}

// Page returns one leaderboard page, descending by key, ties broken by user
// id ascending. Page numbers start at 1. Users with zero games never appear
// in the avg_score ranking.
func (l *Leaderboard) Page(ctx context.Context, key SortKey, page int) ([]Entry, error) {
	if page < 1 {
		return nil, Validation("page", "must be >= 1")
	}

	cacheKey := fmt.Sprintf("leaderboard:%s:%d", key, page)
	if l.rdb != nil {
		raw, err := l.rdb.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var entries []Entry
			if json.Unmarshal(raw, &entries) == nil {
				return entries, nil
			}
		}
	}

	offset := (page - 1) * l.pageSize
	entries, err := l.store.LeaderboardPage(ctx, key, offset, l.pageSize, l.minGames)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = offset + i + 1
	}

	if l.rdb != nil {
		raw, _ := json.Marshal(entries)
		if err := l.rdb.Set(ctx, cacheKey, raw, l.ttl).Err(); err != nil {
			// Cache failures degrade to store reads, nothing more.
			l.logger.Warn("leaderboard cache write failed", "error", err)
		}
	}
	return entries, nil
}

// RecomputeAll rebuilds every aggregate from the full round history. Run
// periodically for drift correction; the result matches what the incremental
// updates produce for the same rounds, since the means are order-independent.
func (l *Leaderboard) RecomputeAll(ctx context.Context) error {
	if err := l.store.RecomputeAggregates(ctx); err != nil {
		return err
	}
	l.logger.Info("aggregates recomputed")
	return nil
}
