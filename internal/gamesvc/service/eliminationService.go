package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/assassins-services/internal/comm"
	"github.com/avvvet/assassins-services/internal/docstore"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
	"github.com/avvvet/assassins-services/internal/gamesvc/store"
)

// EliminationService owns the claim lifecycle: submit, verify, reject.
type EliminationService struct {
	db          docstore.Store
	stores      *store.Stores
	notifier    Notifier
	leaderboard Leaderboard
	now         func() time.Time
	newID       func() string
}

// NewEliminationService wires the engine. leaderboard may be nil.
func NewEliminationService(db docstore.Store, notifier Notifier, leaderboard Leaderboard) *EliminationService {
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &EliminationService{
		db:          db,
		stores:      store.NewStores(db),
		notifier:    notifier,
		leaderboard: leaderboard,
		now:         utcNow,
		newID:       newID,
	}
}

type ClaimInput struct {
	GameID      string  `json:"gameId" validate:"required"`
	UserID      string  `json:"-" validate:"required"`
	EvidenceURL *string `json:"evidenceUrl" validate:"omitempty,max=2048"`
	// VictimID is the victim the client believes it is claiming; empty
	// accepts whoever the current target is.
	VictimID string `json:"victimId"`
}

type Claim struct {
	GameID     string                    `json:"gameId"`
	VictimID   string                    `json:"victimId"`
	VictimName string                    `json:"victimName"`
	Attempt    models.EliminationAttempt `json:"attempt"`
}

// SubmitClaim lodges a pending claim by the caller's player against its
// current target.
func (s *EliminationService) SubmitClaim(ctx context.Context, in ClaimInput) (*Claim, error) {
	if in.EvidenceURL != nil {
		url := strings.TrimSpace(*in.EvidenceURL)
		if url == "" {
			in.EvidenceURL = nil
		} else {
			in.EvidenceURL = &url
		}
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var claim *Claim
	err := runTx(ctx, s.db, func(ctx context.Context, st *store.Stores) error {
		game, err := loadGame(ctx, st, in.GameID)
		if err != nil {
			return err
		}
		if game.Status != models.GameStatusActive {
			return ErrGameNotActive
		}

		killer, err := st.Players.GetPlayerByUser(ctx, in.GameID, in.UserID)
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		if !killer.IsAlive {
			return ErrKillerEliminated
		}

		living, err := st.Players.GetLivingPlayers(ctx, in.GameID)
		if err != nil {
			return err
		}
		if len(living) <= 1 {
			return ErrLastPlayer
		}

		victimID := killer.Target()
		if victimID == "" {
			return ErrRingCorrupted
		}
		if in.VictimID != "" && in.VictimID != victimID {
			return ErrNotYourTarget
		}
		victim, err := loadPlayer(ctx, st, victimID)
		if errors.Is(err, ErrPlayerNotFound) {
			return ErrNotYourTarget
		}
		if err != nil {
			return err
		}
		if victim.GameID != in.GameID || !victim.IsAlive || victim.ID == killer.ID {
			return ErrNotYourTarget
		}
		if victim.IsPending || victim.PendingAttempt() != nil {
			return ErrAlreadyPending
		}

		attempt := models.EliminationAttempt{
			ID:          s.newID(),
			Timestamp:   s.now(),
			EvidenceURL: in.EvidenceURL,
			Status:      models.AttemptPending,
			ClaimedBy:   killer.ID,
		}
		victim.EliminationAttempts = append(victim.EliminationAttempts, attempt)
		victim.IsPending = true
		if err := st.Players.SavePlayer(ctx, victim); err != nil {
			return err
		}

		claim = &Claim{
			GameID:     in.GameID,
			VictimID:   victim.ID,
			VictimName: victim.Name,
			Attempt:    *victim.LatestAttempt(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, comm.GameEvent{
		Type:      comm.EventClaimSubmitted,
		GameID:    claim.GameID,
		PlayerID:  claim.VictimID,
		Timestamp: claim.Attempt.Timestamp,
	})
	return claim, nil
}

// Verification is the outcome of a verified claim.
type Verification struct {
	GameID        string                    `json:"gameId"`
	VictimID      string                    `json:"victimId"`
	KillerID      string                    `json:"killerId"`
	Attempt       models.EliminationAttempt `json:"attempt"`
	Remaining     int                       `json:"remaining"`
	GameCompleted bool                      `json:"gameCompleted"`
	WinnerID      string                    `json:"winnerId,omitempty"`
	WinnerName    string                    `json:"winnerName,omitempty"`
	// VoidedPlayerID is set when a pending claim lodged by the victim was
	// rejected because its claimant is now dead.
	VoidedPlayerID string `json:"voidedPlayerId,omitempty"`
}

// VerifyClaim confirms the pending claim against victimID, repairs the ring
// and completes the game when one player is left.
func (s *EliminationService) VerifyClaim(ctx context.Context, victimID, adminUserID string) (*Verification, error) {
	var (
		out     *Verification
		killer  *models.Player
		user    *models.User
		notices []*models.Announcement
	)
	err := runTx(ctx, s.db, func(ctx context.Context, st *store.Stores) error {
		notices = nil

		victim, err := loadPlayer(ctx, st, victimID)
		if err != nil {
			return err
		}
		game, err := loadGame(ctx, st, victim.GameID)
		if err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, st, game.ID, adminUserID); err != nil {
			return err
		}
		attempt := victim.PendingAttempt()
		if attempt == nil {
			return ErrNoPendingClaim
		}
		if game.Status != models.GameStatusActive {
			return ErrGameNotActive
		}

		hunters, err := st.Players.GetHuntersOf(ctx, game.ID, victim.ID)
		if err != nil {
			return err
		}
		hunters = excludePlayer(hunters, victim.ID)
		switch len(hunters) {
		case 0:
			return ErrKillerNotFound
		case 1:
			killer = hunters[0]
		default:
			log.Errorf("game %s: %d living players target %s", game.ID, len(hunters), victim.ID)
			return ErrRingCorrupted
		}

		living, err := st.Players.GetLivingPlayers(ctx, game.ID)
		if err != nil {
			return err
		}

		user, err = loadUser(ctx, st, killer.UserID)
		if err != nil {
			return err
		}

		now := s.now()
		attempt.Status = models.AttemptVerified
		attempt.VerifiedAt = &now
		attempt.VerifiedBy = &adminUserID

		next := victim.TargetID
		victim.IsAlive = false
		victim.IsPending = false
		victim.TargetID = nil

		killer.TargetID = next
		killer.EliminationCount++
		user.Stats.Eliminations++

		out = &Verification{
			GameID:    game.ID,
			VictimID:  victim.ID,
			KillerID:  killer.ID,
			Attempt:   *attempt,
			Remaining: len(living) - 1,
		}

		// the victim can no longer be credited for a claim it lodged
		if next != nil && *next != victim.ID {
			heir := killer
			if *next != killer.ID {
				if heir, err = loadPlayer(ctx, st, *next); err != nil {
					return err
				}
			}
			if voidClaim(heir, victim.ID, now) {
				out.VoidedPlayerID = heir.ID
				if heir != killer {
					if err := st.Players.SavePlayer(ctx, heir); err != nil {
						return err
					}
				}
			}
		}

		game.Eliminations = append(game.Eliminations, models.Elimination{
			KillerID:       killer.ID,
			KilledPlayerID: victim.ID,
			Timestamp:      now,
		})
		notices = append(notices, &models.Announcement{
			ID:        s.newID(),
			GameID:    game.ID,
			Content:   fmt.Sprintf("%s has been eliminated. %d players remain.", victim.Name, out.Remaining),
			Kind:      models.AnnouncementSystem,
			Timestamp: now,
		})

		if out.Remaining <= 1 {
			game.Complete(now, killer.ID, killer.Name)
			user.Stats.GamesWon++
			out.GameCompleted = true
			out.WinnerID = killer.ID
			out.WinnerName = killer.Name
			notices = append(notices, &models.Announcement{
				ID:        s.newID(),
				GameID:    game.ID,
				Content:   fmt.Sprintf("%s is the last one standing and wins the game.", killer.Name),
				Kind:      models.AnnouncementSystem,
				Timestamp: now.Add(time.Millisecond),
			})
		}

		if err := st.Players.SavePlayer(ctx, victim); err != nil {
			return err
		}
		if err := st.Players.SavePlayer(ctx, killer); err != nil {
			return err
		}
		if err := st.Users.SaveUser(ctx, user); err != nil {
			return err
		}
		if err := st.Games.SaveGame(ctx, game); err != nil {
			return err
		}
		for _, a := range notices {
			if err := st.Announcements.Save(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.leaderboard != nil {
		if err := s.leaderboard.IncrementEliminations(ctx, user.ID, user.Username, 1); err != nil {
			log.Warnf("leaderboard update for %s failed: %s", user.ID, err)
		}
	}

	ts := *out.Attempt.VerifiedAt
	events := []comm.GameEvent{{
		Type:      comm.EventEliminationVerified,
		GameID:    out.GameID,
		PlayerID:  out.VictimID,
		Remaining: out.Remaining,
		Timestamp: ts,
	}}
	if out.VoidedPlayerID != "" {
		events = append(events, comm.GameEvent{
			Type:      comm.EventClaimRejected,
			GameID:    out.GameID,
			PlayerID:  out.VoidedPlayerID,
			Timestamp: ts,
		})
	}
	if out.GameCompleted {
		events = append(events, comm.GameEvent{
			Type:       comm.EventGameCompleted,
			GameID:     out.GameID,
			WinnerID:   out.WinnerID,
			WinnerName: out.WinnerName,
			Timestamp:  ts,
		})
	}
	for _, a := range notices {
		events = append(events, announcementEvent(comm.EventAnnouncement, a))
	}
	notifyAll(ctx, s.notifier, events)

	return out, nil
}

// RejectClaim dismisses the pending claim against victimID. The ring and
// stats are untouched.
func (s *EliminationService) RejectClaim(ctx context.Context, victimID, adminUserID string) (*models.EliminationAttempt, error) {
	var (
		gameID   string
		rejected models.EliminationAttempt
	)
	err := runTx(ctx, s.db, func(ctx context.Context, st *store.Stores) error {
		victim, err := loadPlayer(ctx, st, victimID)
		if err != nil {
			return err
		}
		if _, err := loadGame(ctx, st, victim.GameID); err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, st, victim.GameID, adminUserID); err != nil {
			return err
		}
		attempt := victim.PendingAttempt()
		if attempt == nil {
			return ErrNoPendingClaim
		}

		now := s.now()
		attempt.Status = models.AttemptRejected
		attempt.ResolvedAt = &now
		attempt.EvidenceURL = nil
		victim.IsPending = false
		if err := st.Players.SavePlayer(ctx, victim); err != nil {
			return err
		}

		gameID = victim.GameID
		rejected = *victim.LatestAttempt()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, comm.GameEvent{
		Type:      comm.EventClaimRejected,
		GameID:    gameID,
		PlayerID:  victimID,
		Timestamp: *rejected.ResolvedAt,
	})
	return &rejected, nil
}

// PendingClaim is one row of the admin review queue.
type PendingClaim struct {
	PlayerID     string                    `json:"playerId"`
	PlayerName   string                    `json:"playerName"`
	ClaimantID   string                    `json:"claimantId,omitempty"`
	ClaimantName string                    `json:"claimantName,omitempty"`
	Attempt      models.EliminationAttempt `json:"attempt"`
}

// PendingClaims lists every unresolved claim in a game, oldest first.
func (s *EliminationService) PendingClaims(ctx context.Context, gameID, adminUserID string) ([]PendingClaim, error) {
	if _, err := loadGame(ctx, s.stores, gameID); err != nil {
		return nil, err
	}
	if _, err := requireAdmin(ctx, s.stores, gameID, adminUserID); err != nil {
		return nil, err
	}

	players, err := s.stores.Players.GetPendingPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}

	claims := make([]PendingClaim, 0, len(players))
	for _, p := range players {
		a := p.PendingAttempt()
		if a == nil {
			continue
		}
		c := PendingClaim{PlayerID: p.ID, PlayerName: p.Name, ClaimantID: a.ClaimedBy, Attempt: *a}
		if a.ClaimedBy != "" {
			claimant, err := loadPlayer(ctx, s.stores, a.ClaimedBy)
			if err == nil {
				c.ClaimantName = claimant.Name
			} else if !errors.Is(err, ErrPlayerNotFound) {
				return nil, err
			}
		}
		claims = append(claims, c)
	}
	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].Attempt.Timestamp.Before(claims[j].Attempt.Timestamp)
	})
	return claims, nil
}

// voidClaim rejects p's pending attempt when claimantID lodged it.
func voidClaim(p *models.Player, claimantID string, now time.Time) bool {
	a := p.PendingAttempt()
	if a == nil || (a.ClaimedBy != "" && a.ClaimedBy != claimantID) {
		return false
	}
	a.Status = models.AttemptRejected
	a.ResolvedAt = &now
	a.EvidenceURL = nil
	p.IsPending = false
	return true
}

func excludePlayer(players []*models.Player, id string) []*models.Player {
	out := players[:0]
	for _, p := range players {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
