package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/avvvet/assassins-services/internal/gamesvc/models"
)

const (
	// LeaderboardKey is the sorted set of user id -> verified eliminations.
	LeaderboardKey = "assassins:leaderboard:eliminations"

	// LeaderboardNamesKey maps user id -> display name.
	LeaderboardNamesKey = "assassins:leaderboard:names"

	// staging keys outlive a crashed rebuild by this much at most
	rebuildTTL = 5 * time.Minute
)

// LeaderboardStore is a read projection of user stats kept in Redis. The
// users collection stays authoritative; ctlsvc rebuilds this periodically.
type LeaderboardStore struct {
	client *redis.Client
}

func NewLeaderboardStore(client *redis.Client) *LeaderboardStore {
	return &LeaderboardStore{client: client}
}

func (s *LeaderboardStore) IncrementEliminations(ctx context.Context, userID, username string, by int) error {
	pipe := s.client.TxPipeline()
	pipe.ZIncrBy(ctx, LeaderboardKey, float64(by), userID)
	if username != "" {
		pipe.HSet(ctx, LeaderboardNamesKey, userID, username)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment leaderboard for %s: %w", userID, err)
	}
	return nil
}

// Top returns the highest ranked users, best first.
func (s *LeaderboardStore) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		return []models.LeaderboardEntry{}, nil
	}

	zs, err := s.client.ZRevRangeWithScores(ctx, LeaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	if len(zs) == 0 {
		return []models.LeaderboardEntry{}, nil
	}

	ids := make([]string, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		ids = append(ids, id)
	}
	names, err := s.client.HMGet(ctx, LeaderboardNamesKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard names: %w", err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		name, _ := names[i].(string)
		entries = append(entries, models.LeaderboardEntry{
			Rank:         i + 1,
			UserID:       ids[i],
			Username:     name,
			Eliminations: int(z.Score),
		})
	}
	return entries, nil
}

// Rebuild replaces the projection with the given users' stats. The new
// board is written under staging keys and renamed over the live ones, so
// readers never see a partial board. Increments that commit after users
// was read are lost until the next rebuild.
func (s *LeaderboardStore) Rebuild(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		if err := s.client.Del(ctx, LeaderboardKey, LeaderboardNamesKey).Err(); err != nil {
			return fmt.Errorf("failed to clear leaderboard: %w", err)
		}
		return nil
	}

	suffix := ":rebuild:" + uuid.NewString()
	scores, names := LeaderboardKey+suffix, LeaderboardNamesKey+suffix

	pipe := s.client.Pipeline()
	for _, u := range users {
		pipe.ZAdd(ctx, scores, redis.Z{
			Score:  float64(u.Stats.Eliminations),
			Member: u.ID,
		})
		pipe.HSet(ctx, names, u.ID, u.Username)
	}
	pipe.Expire(ctx, scores, rebuildTTL)
	pipe.Expire(ctx, names, rebuildTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.client.Del(context.WithoutCancel(ctx), scores, names)
		return fmt.Errorf("failed to stage leaderboard: %w", err)
	}

	swap := s.client.TxPipeline()
	swap.Rename(ctx, scores, LeaderboardKey)
	swap.Rename(ctx, names, LeaderboardNamesKey)
	swap.Persist(ctx, LeaderboardKey)
	swap.Persist(ctx, LeaderboardNamesKey)
	if _, err := swap.Exec(ctx); err != nil {
		return fmt.Errorf("failed to swap leaderboard: %w", err)
	}
	return nil
}

func (s *LeaderboardStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
