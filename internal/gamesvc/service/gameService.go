package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avvvet/assassins-services/internal/comm"
	"github.com/avvvet/assassins-services/internal/docstore"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
	"github.com/avvvet/assassins-services/internal/gamesvc/store"
)

type GameService struct {
	db       docstore.Store
	stores   *store.Stores
	ring     *RingAssembler
	notifier Notifier
	now      func() time.Time
	newID    func() string
}

func NewGameService(db docstore.Store, ring *RingAssembler, notifier Notifier) *GameService {
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &GameService{
		db:       db,
		stores:   store.NewStores(db),
		ring:     ring,
		notifier: notifier,
		now:      utcNow,
		newID:    newID,
	}
}

type CreateGameInput struct {
	Title      string `json:"title" validate:"required,max=120"`
	Rules      string `json:"rules" validate:"max=4000"`
	PlayerName string `json:"playerName" validate:"max=60"`
	Playing    bool   `json:"playing"`
}

// CreateGame creates a game in setup with the actor as its admin. A
// non-playing admin is recorded as a player that never enters the ring.
func (s *GameService) CreateGame(ctx context.Context, actor Actor, in CreateGameInput) (*models.Game, *models.Player, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Rules = strings.TrimSpace(in.Rules)
	in.PlayerName = strings.TrimSpace(in.PlayerName)
	if err := validateStruct(in); err != nil {
		return nil, nil, err
	}
	if in.Playing && in.PlayerName == "" {
		return nil, nil, validationError("playerName is required when the admin plays")
	}
	if in.Rules == "" {
		in.Rules = models.DefaultRules
	}

	var (
		game  *models.Game
		admin *models.Player
	)
	err := runTx(ctx, s.db, func(ctx context.Context, st *store.Stores) error {
		now := s.now()
		user, err := ensureUser(ctx, st, actor, in.PlayerName, now)
		if err != nil {
			return err
		}

		name := in.PlayerName
		if name == "" {
			name = user.Username
		}
		admin = &models.Player{
			ID:                  s.newID(),
			UserID:              actor.UserID,
			Name:                name,
			IsAdmin:             true,
			IsAlive:             in.Playing,
			EliminationAttempts: []models.EliminationAttempt{},
			JoinedAt:            now,
		}
		game = &models.Game{
			ID:           s.newID(),
			Title:        in.Title,
			Rules:        in.Rules,
			Status:       models.GameStatusSetup,
			CreatedAt:    now,
			PlayerIDs:    []string{admin.ID},
			Eliminations: []models.Elimination{},
		}
		admin.GameID = game.ID

		if err := st.Players.SavePlayer(ctx, admin); err != nil {
			return err
		}
		return st.Games.SaveGame(ctx, game)
	})
	if err != nil {
		return nil, nil, err
	}
	return game, admin, nil
}

type JoinGameInput struct {
	PlayerName string `json:"playerName" validate:"required,max=60"`
}

// JoinGame adds the actor to a game that has not started yet.
func (s *GameService) JoinGame(ctx context.Context, actor Actor, gameID string, in JoinGameInput) (*models.Player, error) {
	in.PlayerName = strings.TrimSpace(in.PlayerName)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var player *models.Player
	err := runTx(ctx, s.db, func(ctx context.Context, st *store.Stores) error {
		game, err := loadGame(ctx, st, gameID)
		if err != nil {
			return err
		}
		if game.Status != models.GameStatusSetup {
			return ErrAlreadyStarted
		}

		_, err = st.Players.GetPlayerByUser(ctx, gameID, actor.UserID)
		if err == nil {
			return ErrAlreadyJoined
		}
		if !errors.Is(err, docstore.ErrNotFound) {
			return err
		}

		now := s.now()
		if _, err := ensureUser(ctx, st, actor, in.PlayerName, now); err != nil {
			return err
		}

		player = &models.Player{
			ID:                  s.newID(),
			UserID:              actor.UserID,
			GameID:              gameID,
			Name:                in.PlayerName,
			IsAlive:             true,
			EliminationAttempts: []models.EliminationAttempt{},
			JoinedAt:            now,
		}
		game.PlayerIDs = append(game.PlayerIDs, player.ID)

		if err := st.Players.SavePlayer(ctx, player); err != nil {
			return err
		}
		return st.Games.SaveGame(ctx, game)
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

// RemovePlayer lets the admin drop a player before the game starts.
func (s *GameService) RemovePlayer(ctx context.Context, gameID, actorUserID, playerID string) error {
	return runTx(ctx, s.db, func(ctx context.Context, st *store.Stores) error {
		game, err := loadGame(ctx, st, gameID)
		if err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, st, gameID, actorUserID); err != nil {
			return err
		}
		if game.Status != models.GameStatusSetup {
			return ErrAlreadyStarted
		}

		p, err := loadPlayer(ctx, st, playerID)
		if err != nil {
			return err
		}
		if p.GameID != gameID {
			return ErrPlayerNotFound
		}
		if p.IsAdmin {
			return ErrCannotRemoveAdmin
		}

		game.RemovePlayer(p.ID)
		if err := st.Players.DeletePlayer(ctx, p.ID); err != nil {
			return err
		}
		return st.Games.SaveGame(ctx, game)
	})
}

// Start assembles the target ring, activates the game and counts the game
// for every participating player, all in one transaction.
func (s *GameService) Start(ctx context.Context, gameID, actorUserID string) (*models.Game, error) {
	var game *models.Game
	var players int
	err := runTx(ctx, s.db, func(ctx context.Context, st *store.Stores) error {
		var err error
		game, err = loadGame(ctx, st, gameID)
		if err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, st, gameID, actorUserID); err != nil {
			return err
		}
		if game.Status != models.GameStatusSetup {
			return ErrAlreadyStarted
		}

		living, err := st.Players.GetLivingPlayers(ctx, gameID)
		if err != nil {
			return err
		}
		if err := s.ring.Assemble(game, living); err != nil {
			return err
		}

		for _, p := range living {
			if err := st.Players.SavePlayer(ctx, p); err != nil {
				return err
			}
			u, err := loadUser(ctx, st, p.UserID)
			if err != nil {
				return err
			}
			u.Stats.GamesPlayed++
			if err := st.Users.SaveUser(ctx, u); err != nil {
				return err
			}
		}

		game.Activate(s.now())
		players = len(living)
		return st.Games.SaveGame(ctx, game)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, comm.GameEvent{
		Type:      comm.EventGameStarted,
		GameID:    game.ID,
		Remaining: players,
		Timestamp: *game.StartedAt,
	})
	return game, nil
}

func (s *GameService) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	return loadGame(ctx, s.stores, gameID)
}

// ListPlayers returns the game's roster with targets and claimants hidden.
func (s *GameService) ListPlayers(ctx context.Context, gameID string) ([]*models.Player, error) {
	if _, err := loadGame(ctx, s.stores, gameID); err != nil {
		return nil, err
	}
	players, err := s.stores.Players.GetPlayersByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		redact(p)
	}
	return players, nil
}

// PlayerView is a player as seen by its owner.
type PlayerView struct {
	*models.Player
	TargetName string `json:"targetName,omitempty"`
	CanDispute bool   `json:"canDispute"`
}

// MyPlayer returns the caller's own player including the name of their
// current target.
func (s *GameService) MyPlayer(ctx context.Context, gameID, userID string) (*PlayerView, error) {
	if _, err := loadGame(ctx, s.stores, gameID); err != nil {
		return nil, err
	}
	p, err := s.stores.Players.GetPlayerByUser(ctx, gameID, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}

	view := &PlayerView{Player: p, CanDispute: p.CanDispute()}
	if p.IsAlive && p.Target() != "" && p.Target() != p.ID {
		target, err := loadPlayer(ctx, s.stores, p.Target())
		if err != nil {
			return nil, err
		}
		view.TargetName = target.Name
	}
	for i := range p.EliminationAttempts {
		p.EliminationAttempts[i].ClaimedBy = ""
	}
	return view, nil
}

// redact strips everything that would reveal the ring.
func redact(p *models.Player) {
	p.TargetID = nil
	for i := range p.EliminationAttempts {
		p.EliminationAttempts[i].ClaimedBy = ""
		p.EliminationAttempts[i].EvidenceURL = nil
	}
}
