package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/assassins-services/internal/comm"
	"github.com/avvvet/assassins-services/internal/docstore"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
	"github.com/avvvet/assassins-services/internal/gamesvc/store"
)

// Actor is the authenticated caller as asserted by the identity provider.
type Actor struct {
	UserID   string
	Username string
	Email    string
}

// Notifier receives game events once the transaction that produced them
// has committed.
type Notifier interface {
	Notify(ctx context.Context, ev comm.GameEvent)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, comm.GameEvent) {}

// NopNotifier drops every event.
func NopNotifier() Notifier { return nopNotifier{} }

// Leaderboard is the ranking projection kept outside the document store.
type Leaderboard interface {
	IncrementEliminations(ctx context.Context, userID, username string, by int) error
	Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Rebuild(ctx context.Context, users []models.User) error
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return validationError("%s", err.Error())
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return validationError("invalid fields: %s", strings.Join(fields, ", "))
}

func newID() string {
	return uuid.NewString()
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// runTx runs fn inside one store transaction with transaction-bound stores.
// A conflict that outlives the retry budget surfaces as ErrConflict.
func runTx(ctx context.Context, db docstore.Store, fn func(ctx context.Context, s *store.Stores) error) error {
	err := db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, store.WithTx(tx))
	})
	if err == nil {
		return nil
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, docstore.ErrConflict) {
		log.Warnf("transaction gave up: %s", err)
		return errTxConflict
	}
	return err
}

func loadGame(ctx context.Context, s *store.Stores, gameID string) (*models.Game, error) {
	game, err := s.Games.GetGameByID(ctx, gameID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	return game, err
}

func loadPlayer(ctx context.Context, s *store.Stores, playerID string) (*models.Player, error) {
	p, err := s.Players.GetPlayerByID(ctx, playerID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrPlayerNotFound
	}
	return p, err
}

func loadUser(ctx context.Context, s *store.Stores, userID string) (*models.User, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// requireAdmin returns the actor's player when it administers the game.
func requireAdmin(ctx context.Context, s *store.Stores, gameID, userID string) (*models.Player, error) {
	p, err := s.Players.GetPlayerByUser(ctx, gameID, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotAdmin
	}
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin {
		return nil, ErrNotAdmin
	}
	return p, nil
}

// ensureUser loads the actor's user document, creating it on first sight.
func ensureUser(ctx context.Context, s *store.Stores, actor Actor, fallbackName string, now time.Time) (*models.User, error) {
	u, err := s.Users.GetByID(ctx, actor.UserID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}

	name := actor.Username
	if name == "" {
		name = fallbackName
	}
	if name == "" && actor.Email != "" {
		name = strings.SplitN(actor.Email, "@", 2)[0]
	}
	u = &models.User{
		ID:        actor.UserID,
		Email:     actor.Email,
		Username:  name,
		CreatedAt: now,
	}
	if err := s.Users.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func notifyAll(ctx context.Context, n Notifier, events []comm.GameEvent) {
	for _, ev := range events {
		n.Notify(ctx, ev)
	}
}
