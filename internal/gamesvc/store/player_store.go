package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/avvvet/assassins-services/internal/docstore"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
)

type PlayerStore struct {
	db docstore.Reader
	w  writer
}

func NewPlayerStore(db docstore.Store) *PlayerStore {
	return &PlayerStore{db: db, w: db}
}

func (s *PlayerStore) GetPlayerByID(ctx context.Context, playerID string) (*models.Player, error) {
	p := &models.Player{}
	if err := s.db.Get(ctx, PlayersCollection, playerID, p); err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", playerID, err)
	}
	return p, nil
}

// GetPlayersByGameID returns the game's players ordered by join time.
func (s *PlayerStore) GetPlayersByGameID(ctx context.Context, gameID string) ([]*models.Player, error) {
	return s.find(ctx, docstore.Filter{"gameId": gameID})
}

func (s *PlayerStore) GetLivingPlayers(ctx context.Context, gameID string) ([]*models.Player, error) {
	return s.find(ctx, docstore.Filter{"gameId": gameID, "isAlive": true})
}

func (s *PlayerStore) GetPendingPlayers(ctx context.Context, gameID string) ([]*models.Player, error) {
	return s.find(ctx, docstore.Filter{"gameId": gameID, "isPending": true})
}

// GetHuntersOf returns the living players whose target is targetID. In a
// healthy ring there is exactly one.
func (s *PlayerStore) GetHuntersOf(ctx context.Context, gameID, targetID string) ([]*models.Player, error) {
	return s.find(ctx, docstore.Filter{"gameId": gameID, "targetId": targetID, "isAlive": true})
}

// GetPlayerByUser returns the user's player in a game, or a wrapped
// docstore.ErrNotFound.
func (s *PlayerStore) GetPlayerByUser(ctx context.Context, gameID, userID string) (*models.Player, error) {
	players, err := s.find(ctx, docstore.Filter{"gameId": gameID, "userId": userID})
	if err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, fmt.Errorf("no player for user %s in game %s: %w", userID, gameID, docstore.ErrNotFound)
	}
	return players[0], nil
}

func (s *PlayerStore) GetPlayersByUserID(ctx context.Context, userID string) ([]*models.Player, error) {
	return s.find(ctx, docstore.Filter{"userId": userID})
}

func (s *PlayerStore) SavePlayer(ctx context.Context, p *models.Player) error {
	p.JoinedAt = normalizeTime(p.JoinedAt)
	for i := range p.EliminationAttempts {
		a := &p.EliminationAttempts[i]
		a.Timestamp = normalizeTime(a.Timestamp)
		a.DisputeTimestamp = normalizeTimePtr(a.DisputeTimestamp)
		a.VerifiedAt = normalizeTimePtr(a.VerifiedAt)
		a.ResolvedAt = normalizeTimePtr(a.ResolvedAt)
	}

	if err := s.w.Set(ctx, PlayersCollection, p.ID, p); err != nil {
		return fmt.Errorf("failed to save player %s: %w", p.ID, err)
	}
	return nil
}

func (s *PlayerStore) DeletePlayer(ctx context.Context, playerID string) error {
	if err := s.w.Delete(ctx, PlayersCollection, playerID); err != nil {
		return fmt.Errorf("failed to delete player %s: %w", playerID, err)
	}
	return nil
}

func (s *PlayerStore) find(ctx context.Context, filter docstore.Filter) ([]*models.Player, error) {
	var players []models.Player
	if err := s.db.Query(ctx, PlayersCollection, filter, &players); err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}

	out := make([]*models.Player, 0, len(players))
	for i := range players {
		out = append(out, &players[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}
