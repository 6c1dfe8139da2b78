package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ctf-event-service/internal/logger"
)

// LeaderboardEntry is a roster row reduced to what the scoreboard shows.
type LeaderboardEntry struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Answered    int    `json:"answered"`
}

// Leaderboard caches per-event scoreboards in Redis. A nil *Leaderboard is
// safe to call and behaves as a permanent miss, so the service works without
// Redis configured.
type Leaderboard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewLeaderboard(rdb *redis.Client, ttl time.Duration) *Leaderboard {
	return &Leaderboard{rdb: rdb, ttl: ttl}
}

func key(eventID string) string {
	return "ctf:leaderboard:" + eventID
}

func (l *Leaderboard) Get(ctx context.Context, eventID string) ([]LeaderboardEntry, bool) {
	if l == nil {
		return nil, false
	}
	raw, err := l.rdb.Get(ctx, key(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Log.Warn("leaderboard cache read failed", zap.String("event_id", eventID), zap.Error(err))
		return nil, false
	}
	var entries []LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (l *Leaderboard) Set(ctx context.Context, eventID string, entries []LeaderboardEntry) {
	if l == nil {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := l.rdb.Set(ctx, key(eventID), raw, l.ttl).Err(); err != nil {
		logger.Log.Warn("leaderboard cache write failed", zap.String("event_id", eventID), zap.Error(err))
	}
}

// Invalidate drops the cached scoreboard; called whenever a score changes.
func (l *Leaderboard) Invalidate(ctx context.Context, eventID string) {
	if l == nil {
		return
	}
	if err := l.rdb.Del(ctx, key(eventID)).Err(); err != nil {
		logger.Log.Warn("leaderboard cache invalidation failed", zap.String("event_id", eventID), zap.Error(err))
	}
}
