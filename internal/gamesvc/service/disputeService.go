package service

import (
	"context"
	"strings"
	"time"

	"github.com/avvvet/assassins-services/internal/comm"
	"github.com/avvvet/assassins-services/internal/docstore"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
	"github.com/avvvet/assassins-services/internal/gamesvc/store"
)

type DisputeService struct {
	db       docstore.Store
	stores   *store.Stores
	notifier Notifier
	now      func() time.Time
}

func NewDisputeService(db docstore.Store, notifier Notifier) *DisputeService {
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &DisputeService{
		db:       db,
		stores:   store.NewStores(db),
		notifier: notifier,
		now:      utcNow,
	}
}

type DisputeInput struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// SubmitDispute attaches the victim's side of the story to the pending
// claim. Resolution stays with the admin.
func (s *DisputeService) SubmitDispute(ctx context.Context, playerID, actorUserID string, in DisputeInput) (*models.EliminationAttempt, error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return nil, ErrEmptyContent
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var (
		gameID   string
		disputed models.EliminationAttempt
	)
	err := runTx(ctx, s.db, func(ctx context.Context, st *store.Stores) error {
		p, err := loadPlayer(ctx, st, playerID)
		if err != nil {
			return err
		}
		if p.UserID != actorUserID {
			return ErrNotPlayerOwner
		}
		attempt := p.PendingAttempt()
		if attempt == nil {
			return ErrNoPendingClaim
		}
		if attempt.Dispute != nil {
			return ErrAlreadyDisputed
		}

		now := s.now()
		text := in.Text
		attempt.Dispute = &text
		attempt.DisputeTimestamp = &now
		if err := st.Players.SavePlayer(ctx, p); err != nil {
			return err
		}

		gameID = p.GameID
		disputed = *p.LatestAttempt()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, comm.GameEvent{
		Type:      comm.EventDisputeSubmitted,
		GameID:    gameID,
		PlayerID:  playerID,
		Timestamp: *disputed.DisputeTimestamp,
	})
	disputed.ClaimedBy = ""
	return &disputed, nil
}

// CanDispute reports whether the actor's player may currently dispute.
func (s *DisputeService) CanDispute(ctx context.Context, playerID, actorUserID string) (bool, error) {
	p, err := loadPlayer(ctx, s.stores, playerID)
	if err != nil {
		return false, err
	}
	if p.UserID != actorUserID {
		return false, ErrNotPlayerOwner
	}
	return p.CanDispute(), nil
}
