package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/assassins-services/internal/gamesvc/models"
)

func TestSubmitDispute(t *testing.T) {
	f := newFixture(t)
	game, ps := f.setupGame("alice", "bob", "carol")
	b := ps[1]
	f.startWithRing(game.ID, ps[0], b, ps[2])

	_, err := f.disputes.SubmitDispute(f.ctx, b.ID, "u-bob", DisputeInput{Text: "I was in class"})
	assert.ErrorIs(t, err, ErrNoPendingClaim)

	f.claim(game.ID, "alice")

	ok, err := f.disputes.CanDispute(f.ctx, b.ID, "u-bob")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.disputes.SubmitDispute(f.ctx, b.ID, "u-alice", DisputeInput{Text: "not me"})
	assert.ErrorIs(t, err, ErrNotPlayerOwner)

	_, err = f.disputes.SubmitDispute(f.ctx, b.ID, "u-bob", DisputeInput{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyContent)
	assert.ErrorIs(t, err, ErrValidation)

	a, err := f.disputes.SubmitDispute(f.ctx, b.ID, "u-bob", DisputeInput{Text: " I was in class "})
	require.NoError(t, err)
	require.NotNil(t, a.Dispute)
	assert.Equal(t, "I was in class", *a.Dispute)
	assert.NotNil(t, a.DisputeTimestamp)
	assert.Equal(t, models.AttemptPending, a.Status)

	_, err = f.disputes.SubmitDispute(f.ctx, b.ID, "u-bob", DisputeInput{Text: "again"})
	assert.ErrorIs(t, err, ErrAlreadyDisputed)

	ok, err = f.disputes.CanDispute(f.ctx, b.ID, "u-bob")
	require.NoError(t, err)
	assert.False(t, ok)

	// the admin still decides
	_, err = f.claims.RejectClaim(f.ctx, b.ID, adminUser)
	require.NoError(t, err)
	bob := f.player(b.ID)
	assert.Equal(t, "I was in class", *bob.LatestAttempt().Dispute)
	assert.Equal(t, models.AttemptRejected, bob.LatestAttempt().Status)
}
