package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/assassins-services/internal/comm"
	"github.com/avvvet/assassins-services/internal/gamesvc/models"
)

func TestEliminationsRunToCompletion(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob", "carol")
	a, b, c := ps[0], ps[1], ps[2]
	f.startWithRing(game.ID, a, b, c)

	evidence := " /v1/evidence/abc "
	claim, err := f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: game.ID, UserID: "u-alice", EvidenceURL: &evidence})
	require.NoError(t, err)
	assert.Equal(t, b.ID, claim.VictimID)
	assert.Equal(t, "/v1/evidence/abc", *claim.Attempt.EvidenceURL)
	assert.True(t, f.player(b.ID).IsPending)

	v, err := f.claims.VerifyClaim(f.ctx, b.ID, adminUser)
	require.NoError(t, err)
	assert.Equal(t, a.ID, v.KillerID)
	assert.Equal(t, 2, v.Remaining)
	assert.False(t, v.GameCompleted)

	bob := f.player(b.ID)
	assert.False(t, bob.IsAlive)
	assert.False(t, bob.IsPending)
	assert.Nil(t, bob.TargetID)
	assert.Equal(t, models.AttemptVerified, bob.LatestAttempt().Status)
	assert.Equal(t, adminUser, *bob.LatestAttempt().VerifiedBy)

	alice := f.player(a.ID)
	assert.Equal(t, c.ID, alice.Target())
	assert.Equal(t, 1, alice.EliminationCount)
	assert.Equal(t, 1, f.user("u-alice").Stats.Eliminations)

	g := f.game(game.ID)
	require.Len(t, g.Eliminations, 1)
	assert.Equal(t, a.ID, g.Eliminations[0].KillerID)
	assert.Equal(t, b.ID, g.Eliminations[0].KilledPlayerID)
	assert.Equal(t, models.GameStatusActive, g.Status)

	living, err := f.stores.Players.GetLivingPlayers(f.ctx, game.ID)
	require.NoError(t, err)
	require.Len(t, living, 2)
	requireSingleCycle(t, living)

	f.claim(game.ID, "alice")
	v, err = f.claims.VerifyClaim(f.ctx, c.ID, adminUser)
	require.NoError(t, err)
	assert.True(t, v.GameCompleted)
	assert.Equal(t, a.ID, v.WinnerID)

	g = f.game(game.ID)
	assert.Equal(t, models.GameStatusCompleted, g.Status)
	assert.False(t, g.IsActive)
	require.NotNil(t, g.Winner)
	assert.Equal(t, a.ID, *g.Winner)
	assert.Equal(t, "alice", g.WinnerName)
	assert.NotNil(t, g.EndTime)
	assert.Len(t, g.Eliminations, 2)
	assert.False(t, f.player(c.ID).IsAlive)

	u := f.user("u-alice")
	assert.Equal(t, 2, u.Stats.Eliminations)
	assert.Equal(t, 1, u.Stats.GamesWon)
	assert.Equal(t, 1, u.Stats.GamesPlayed)
	assert.Equal(t, 0, f.user("u-carol").Stats.GamesWon)

	assert.Equal(t, 2, f.board.counts["u-alice"])

	feed, err := f.feed.List(f.ctx, game.ID, 0)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, models.AnnouncementSystem, feed[0].Kind)
	assert.Contains(t, feed[0].Content, "alice")

	_, err = f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: game.ID, UserID: "u-alice"})
	assert.ErrorIs(t, err, ErrGameNotActive)
}

func TestVerifyPublishesEventsAfterCommit(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob")
	f.startWithRing(game.ID, ps[0], ps[1])

	f.claim(game.ID, "alice")
	_, err := f.claims.VerifyClaim(f.ctx, ps[1].ID, adminUser)
	require.NoError(t, err)

	assert.Equal(t, []string{
		comm.EventClaimSubmitted,
		comm.EventEliminationVerified,
		comm.EventGameCompleted,
		comm.EventAnnouncement,
		comm.EventAnnouncement,
	}, f.events.types())

	for _, ev := range f.events.events {
		assert.Equal(t, game.ID, ev.GameID)
	}
}

func TestSubmitClaimTwiceFailsAlreadyPending(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob", "carol")
	f.startWithRing(game.ID, ps[0], ps[1], ps[2])

	f.claim(game.ID, "alice")
	_, err := f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: game.ID, UserID: "u-alice"})
	assert.ErrorIs(t, err, ErrAlreadyPending)
	assert.ErrorIs(t, err, ErrInvalidState)

	bob := f.player(ps[1].ID)
	require.Len(t, bob.EliminationAttempts, 1)
	assert.Equal(t, models.AttemptPending, bob.EliminationAttempts[0].Status)
}

func TestSubmitClaimPreconditions(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob", "carol")
	a, b, c := ps[0], ps[1], ps[2]

	_, err := f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: game.ID, UserID: "u-alice"})
	assert.ErrorIs(t, err, ErrGameNotActive, "game still in setup")

	f.startWithRing(game.ID, a, b, c)

	_, err = f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: "nope", UserID: "u-alice"})
	assert.ErrorIs(t, err, ErrGameNotFound)

	_, err = f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: game.ID, UserID: "u-mallory"})
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	_, err = f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: game.ID, UserID: "u-alice", VictimID: c.ID})
	assert.ErrorIs(t, err, ErrNotYourTarget)

	_, err = f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: game.ID, UserID: adminUser})
	assert.ErrorIs(t, err, ErrKillerEliminated, "non-playing admin is not alive")

	_, err = f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: game.ID})
	assert.ErrorIs(t, err, ErrValidation)

	claim, err := f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: game.ID, UserID: "u-alice", VictimID: b.ID})
	require.NoError(t, err)
	assert.Nil(t, claim.Attempt.EvidenceURL)
}

func TestSubmitClaimByDeadPlayerFails(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob", "carol")
	f.startWithRing(game.ID, ps[0], ps[1], ps[2])

	f.claim(game.ID, "alice")
	_, err := f.claims.VerifyClaim(f.ctx, ps[1].ID, adminUser)
	require.NoError(t, err)

	_, err = f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: game.ID, UserID: "u-bob"})
	assert.ErrorIs(t, err, ErrKillerEliminated)
}

func TestVerifyWithoutPendingClaimMutatesNothing(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob", "carol")
	f.startWithRing(game.ID, ps[0], ps[1], ps[2])

	beforeBob := f.player(ps[1].ID)
	beforeAlice := f.player(ps[0].ID)
	beforeGame := f.game(game.ID)

	_, err := f.claims.VerifyClaim(f.ctx, ps[1].ID, adminUser)
	assert.ErrorIs(t, err, ErrNoPendingClaim)

	assert.Equal(t, beforeBob, f.player(ps[1].ID))
	assert.Equal(t, beforeAlice, f.player(ps[0].ID))
	assert.Equal(t, beforeGame, f.game(game.ID))
	assert.Equal(t, 0, f.user("u-alice").Stats.Eliminations)
	assert.Empty(t, f.events.types())
}

func TestVerifyAndRejectRequireAdmin(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob", "carol")
	f.startWithRing(game.ID, ps[0], ps[1], ps[2])
	f.claim(game.ID, "alice")

	_, err := f.claims.VerifyClaim(f.ctx, ps[1].ID, "u-alice")
	assert.ErrorIs(t, err, ErrNotAdmin)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = f.claims.RejectClaim(f.ctx, ps[1].ID, "u-carol")
	assert.ErrorIs(t, err, ErrNotAdmin)

	_, err = f.claims.VerifyClaim(f.ctx, "missing", adminUser)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	assert.True(t, f.player(ps[1].ID).IsPending)
}

func TestRejectClaimLeavesRingUntouched(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob", "carol")
	a, b, c := ps[0], ps[1], ps[2]
	f.startWithRing(game.ID, a, b, c)

	evidence := "/v1/evidence/xyz"
	_, err := f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: game.ID, UserID: "u-alice", EvidenceURL: &evidence})
	require.NoError(t, err)

	rejected, err := f.claims.RejectClaim(f.ctx, b.ID, adminUser)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptRejected, rejected.Status)
	assert.Nil(t, rejected.EvidenceURL)
	assert.NotNil(t, rejected.ResolvedAt)

	bob := f.player(b.ID)
	assert.True(t, bob.IsAlive)
	assert.False(t, bob.IsPending)
	assert.Equal(t, c.ID, bob.Target())
	assert.Equal(t, b.ID, f.player(a.ID).Target())
	assert.Equal(t, 0, f.user("u-alice").Stats.Eliminations)
	assert.Empty(t, f.game(game.ID).Eliminations)

	_, err = f.claims.RejectClaim(f.ctx, b.ID, adminUser)
	assert.ErrorIs(t, err, ErrNoPendingClaim)

	// a rejected claim can be followed by a fresh one
	f.claim(game.ID, "alice")
	bob = f.player(b.ID)
	require.Len(t, bob.EliminationAttempts, 2)
	assert.Equal(t, models.AttemptPending, bob.LatestAttempt().Status)

	assert.Equal(t, []string{comm.EventClaimSubmitted, comm.EventClaimRejected, comm.EventClaimSubmitted}, f.events.types())
}

func TestVerifyVoidsClaimLodgedByVictim(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob", "carol", "dave")
	a, b, c, d := ps[0], ps[1], ps[2], ps[3]
	f.startWithRing(game.ID, a, b, c, d)

	f.claim(game.ID, "bob") // bob -> carol
	f.claim(game.ID, "alice")

	v, err := f.claims.VerifyClaim(f.ctx, b.ID, adminUser)
	require.NoError(t, err)
	assert.Equal(t, c.ID, v.VoidedPlayerID)

	carol := f.player(c.ID)
	assert.True(t, carol.IsAlive)
	assert.False(t, carol.IsPending)
	assert.Equal(t, models.AttemptRejected, carol.LatestAttempt().Status)
	assert.Equal(t, c.ID, f.player(a.ID).Target())

	// alice can now claim carol herself
	f.claim(game.ID, "alice")
	_, err = f.claims.VerifyClaim(f.ctx, c.ID, adminUser)
	require.NoError(t, err)
	assert.Equal(t, d.ID, f.player(a.ID).Target())
}

func TestVerifyKeepsSingleCycle(t *testing.T) {
	f := newFixture(t)
	names := []string{"p1", "p2", "p3", "p4", "p5", "p6"}
	game, _ := f.setupGame(names...)
	_, err := f.games.Start(f.ctx, game.ID, adminUser)
	require.NoError(t, err)

	for round := 0; round < len(names)-1; round++ {
		living, err := f.stores.Players.GetLivingPlayers(f.ctx, game.ID)
		require.NoError(t, err)
		require.Len(t, living, len(names)-round)
		requireSingleCycle(t, living)

		killer := living[0]
		victimTarget := f.player(killer.Target()).Target()

		_, err = f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: game.ID, UserID: killer.UserID})
		require.NoError(t, err)
		v, err := f.claims.VerifyClaim(f.ctx, killer.Target(), adminUser)
		require.NoError(t, err)
		assert.Equal(t, killer.ID, v.KillerID)
		assert.Equal(t, victimTarget, f.player(killer.ID).Target())
	}

	g := f.game(game.ID)
	assert.Equal(t, models.GameStatusCompleted, g.Status)
	assert.Len(t, g.Eliminations, len(names)-1)
}

func TestConcurrentVerifyCommitsOnce(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob", "carol")
	f.startWithRing(game.ID, ps[0], ps[1], ps[2])
	f.claim(game.ID, "alice")

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.claims.VerifyClaim(f.ctx, ps[1].ID, adminUser)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			errs = append(errs, err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	for _, err := range errs {
		assert.True(t, errors.Is(err, ErrNoPendingClaim) || errors.Is(err, ErrConflict), "unexpected error %v", err)
	}

	assert.Equal(t, 1, f.user("u-alice").Stats.Eliminations)
	assert.Equal(t, 1, f.player(ps[0].ID).EliminationCount)
	assert.Len(t, f.game(game.ID).Eliminations, 1)
	assert.Equal(t, 1, f.board.counts["u-alice"])
}

func TestConcurrentClaimsOnDifferentVictims(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob", "carol", "dave")
	f.startWithRing(game.ID, ps...)

	var wg sync.WaitGroup
	errs := make([]error, len(ps))
	for i, p := range ps {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = f.claims.SubmitClaim(f.ctx, ClaimInput{GameID: game.ID, UserID: userID})
		}(i, p.UserID)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	pending, err := f.claims.PendingClaims(f.ctx, game.ID, adminUser)
	require.NoError(t, err)
	assert.Len(t, pending, 4)
}

func TestPendingClaimsForAdmin(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob", "carol")
	f.startWithRing(game.ID, ps[0], ps[1], ps[2])
	f.claim(game.ID, "alice")

	pending, err := f.claims.PendingClaims(f.ctx, game.ID, adminUser)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ps[1].ID, pending[0].PlayerID)
	assert.Equal(t, "alice", pending[0].ClaimantName)

	_, err = f.claims.PendingClaims(f.ctx, game.ID, "u-bob")
	assert.ErrorIs(t, err, ErrNotAdmin)
}
