package service

import (
	"context"
	"errors"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/assassins-services/internal/docstore"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
	"github.com/avvvet/assassins-services/internal/gamesvc/store"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// UserService struct represents the user service layer
type UserService struct {
	db          docstore.Store
	stores      *store.Stores
	leaderboard Leaderboard
	now         func() time.Time
}

// NewUserService creates a new UserService instance. leaderboard may be nil,
// rankings are then computed from the users collection.
func NewUserService(db docstore.Store, leaderboard Leaderboard) *UserService {
	return &UserService{
		db:          db,
		stores:      store.NewStores(db),
		leaderboard: leaderboard,
		now:         utcNow,
	}
}

// EnsureUser returns the actor's user, creating it on first sight.
func (s *UserService) EnsureUser(ctx context.Context, actor Actor) (*models.User, error) {
	if actor.UserID == "" {
		return nil, validationError("missing user id")
	}
	var user *models.User
	err := runTx(ctx, s.db, func(ctx context.Context, st *store.Stores) error {
		var err error
		user, err = ensureUser(ctx, st, actor, "", s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	return loadUser(ctx, s.stores, userID)
}

// Games returns the games the user has a player in, newest first.
func (s *UserService) Games(ctx context.Context, userID string, activeOnly bool) ([]*models.Game, error) {
	players, err := s.stores.Players.GetPlayersByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(players))
	games := make([]*models.Game, 0, len(players))
	for _, p := range players {
		if seen[p.GameID] {
			continue
		}
		seen[p.GameID] = true

		g, err := s.stores.Games.GetGameByID(ctx, p.GameID)
		if errors.Is(err, docstore.ErrNotFound) {
			log.Warnf("player %s references missing game %s", p.ID, p.GameID)
			continue
		}
		if err != nil {
			return nil, err
		}
		if activeOnly && !g.IsActive {
			continue
		}
		games = append(games, g)
	}

	sort.SliceStable(games, func(i, j int) bool {
		return games[i].CreatedAt.After(games[j].CreatedAt)
	})
	return games, nil
}

// Leaderboard ranks users by verified eliminations.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}

	if s.leaderboard != nil {
		entries, err := s.leaderboard.Top(ctx, limit)
		if err == nil {
			return entries, nil
		}
		log.Warnf("leaderboard projection unavailable, ranking from users: %s", err)
	}

	users, err := s.stores.Users.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	return rankUsers(users, limit), nil
}

// RebuildLeaderboard replaces the projection with the current user stats.
func (s *UserService) RebuildLeaderboard(ctx context.Context) (int, error) {
	if s.leaderboard == nil {
		return 0, nil
	}
	users, err := s.stores.Users.GetAllUsers(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.leaderboard.Rebuild(ctx, users); err != nil {
		return 0, err
	}
	return len(users), nil
}

func rankUsers(users []models.User, limit int) []models.LeaderboardEntry {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i].Stats, users[j].Stats
		if a.Eliminations != b.Eliminations {
			return a.Eliminations > b.Eliminations
		}
		if a.GamesWon != b.GamesWon {
			return a.GamesWon > b.GamesWon
		}
		return users[i].ID < users[j].ID
	})
	if len(users) > limit {
		users = users[:limit]
	}

	entries := make([]models.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, models.LeaderboardEntry{
			Rank:         i + 1,
			UserID:       u.ID,
			Username:     u.Username,
			Eliminations: u.Stats.Eliminations,
		})
	}
	return entries
}
