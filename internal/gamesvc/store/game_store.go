package store

import (
	"context"
	"fmt"

	"github.com/avvvet/assassins-services/internal/docstore"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
)

type GameStore struct {
	db docstore.Reader
	w  writer
}

func NewGameStore(db docstore.Store) *GameStore {
	return &GameStore{db: db, w: db}
}

// GetGameByID returns docstore.ErrNotFound (wrapped) when the game does not exist.
func (s *GameStore) GetGameByID(ctx context.Context, gameID string) (*models.Game, error) {
	game := &models.Game{}
	if err := s.db.Get(ctx, GamesCollection, gameID, game); err != nil {
		return nil, fmt.Errorf("failed to get game %s: %w", gameID, err)
	}
	return game, nil
}

func (s *GameStore) GetGamesByIDs(ctx context.Context, gameIDs []string) ([]*models.Game, error) {
	games := make([]*models.Game, 0, len(gameIDs))
	for _, id := range gameIDs {
		game, err := s.GetGameByID(ctx, id)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, nil
}

func (s *GameStore) SaveGame(ctx context.Context, game *models.Game) error {
	game.CreatedAt = normalizeTime(game.CreatedAt)
	game.StartedAt = normalizeTimePtr(game.StartedAt)
	game.EndTime = normalizeTimePtr(game.EndTime)
	for i := range game.Eliminations {
		game.Eliminations[i].Timestamp = normalizeTime(game.Eliminations[i].Timestamp)
	}

	if err := s.w.Set(ctx, GamesCollection, game.ID, game); err != nil {
		return fmt.Errorf("failed to save game %s: %w", game.ID, err)
	}
	return nil
}
