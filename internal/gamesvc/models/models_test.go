package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func samplePlayer() Player {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(90 * time.Second)
	t2 := t1.Add(time.Hour)
	url := "/v1/evidence/abc"
	dispute := "I was in class"
	admin := "admin-user"
	target := "p3"

	return Player{
		ID:               "p2",
		UserID:           "u2",
		GameID:           "g1",
		Name:             "Bea",
		IsAlive:          true,
		IsPending:        true,
		TargetID:         &target,
		EliminationCount: 1,
		JoinedAt:         t0,
		EliminationAttempts: []EliminationAttempt{
			{ID: "a1", Timestamp: t0, Status: AttemptRejected, ClaimedBy: "p1", ResolvedAt: &t1},
			{ID: "a2", Timestamp: t1, EvidenceURL: &url, Status: AttemptVerified, VerifiedAt: &t2, VerifiedBy: &admin},
			{ID: "a3", Timestamp: t2, Status: AttemptPending, Dispute: &dispute, DisputeTimestamp: &t2},
		},
	}
}

func TestPlayerRoundTripJSON(t *testing.T) {
	p := samplePlayer()

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var back Player
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)
}

func TestPlayerRoundTripBSON(t *testing.T) {
	p := samplePlayer()

	data, err := bson.Marshal(p)
	require.NoError(t, err)

	var back Player
	require.NoError(t, bson.Unmarshal(data, &back))
	assert.Equal(t, p, back)
	require.Len(t, back.EliminationAttempts, 3)
	assert.Equal(t, []string{"a1", "a2", "a3"}, []string{
		back.EliminationAttempts[0].ID,
		back.EliminationAttempts[1].ID,
		back.EliminationAttempts[2].ID,
	})
}

func TestPlayerAttemptAccessors(t *testing.T) {
	p := samplePlayer()
	require.NotNil(t, p.PendingAttempt())
	assert.Equal(t, "a3", p.PendingAttempt().ID)
	assert.False(t, p.CanDispute(), "already disputed")

	p.EliminationAttempts[2].Dispute = nil
	assert.True(t, p.CanDispute())

	p.EliminationAttempts[2].Status = AttemptRejected
	p.IsPending = false
	assert.Nil(t, p.PendingAttempt())
	assert.False(t, p.CanDispute())

	var fresh Player
	assert.Nil(t, fresh.LatestAttempt())
	assert.Equal(t, "", fresh.Target())
}

func TestGameLifecycleHelpers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := Game{ID: "g1", Status: GameStatusSetup, PlayerIDs: []string{"p1", "p2", "p3"}}

	g.Activate(now)
	assert.Equal(t, GameStatusActive, g.Status)
	assert.True(t, g.IsActive)

	g.Complete(now, "p1", "Ana")
	assert.Equal(t, GameStatusCompleted, g.Status)
	assert.False(t, g.IsActive)
	require.NotNil(t, g.Winner)
	assert.Equal(t, "p1", *g.Winner)

	g.RemovePlayer("p2")
	assert.Equal(t, []string{"p1", "p3"}, g.PlayerIDs)
	assert.NotContains(t, g.PlayerIDs, "p2")
}
