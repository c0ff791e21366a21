package models

import "time"

type AttemptStatus string

const (
	AttemptPending  AttemptStatus = "pending"
	AttemptVerified AttemptStatus = "verified"
	AttemptRejected AttemptStatus = "rejected"
)

// EliminationAttempt is a claim lodged against the player who owns it.
type EliminationAttempt struct {
	ID               string        `json:"id" bson:"id"`
	Timestamp        time.Time     `json:"timestamp" bson:"timestamp"`
	EvidenceURL      *string       `json:"evidenceUrl" bson:"evidenceUrl"`
	Status           AttemptStatus `json:"status" bson:"status"`
	ClaimedBy        string        `json:"claimedBy,omitempty" bson:"claimedBy,omitempty"` // claimant player id, audit only
	Dispute          *string       `json:"dispute" bson:"dispute"`
	DisputeTimestamp *time.Time    `json:"disputeTimestamp" bson:"disputeTimestamp"`
	VerifiedAt       *time.Time    `json:"verifiedAt" bson:"verifiedAt"`
	VerifiedBy       *string       `json:"verifiedBy" bson:"verifiedBy"` // admin user id
	ResolvedAt       *time.Time    `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
}

type Player struct {
	ID                  string               `json:"id" bson:"_id"`
	UserID              string               `json:"userId" bson:"userId"`
	GameID              string               `json:"gameId" bson:"gameId"`
	Name                string               `json:"name" bson:"name"`
	IsAdmin             bool                 `json:"isAdmin" bson:"isAdmin"`
	IsAlive             bool                 `json:"isAlive" bson:"isAlive"`
	IsPending           bool                 `json:"isPending" bson:"isPending"` // unresolved claim against this player
	TargetID            *string              `json:"targetId" bson:"targetId"`
	EliminationCount    int                  `json:"eliminationCount" bson:"eliminationCount"`
	EliminationAttempts []EliminationAttempt `json:"eliminationAttempts" bson:"eliminationAttempts"`
	JoinedAt            time.Time            `json:"joinedAt" bson:"joinedAt"`
}

// Target returns the id of the player this player must eliminate, or "".
func (p *Player) Target() string {
	if p.TargetID == nil {
		return ""
	}
	return *p.TargetID
}

func (p *Player) SetTarget(id string) {
	p.TargetID = &id
}

// LatestAttempt returns the most recent claim against the player, if any.
func (p *Player) LatestAttempt() *EliminationAttempt {
	if len(p.EliminationAttempts) == 0 {
		return nil
	}
	return &p.EliminationAttempts[len(p.EliminationAttempts)-1]
}

// PendingAttempt returns the latest attempt when it is still pending.
func (p *Player) PendingAttempt() *EliminationAttempt {
	a := p.LatestAttempt()
	if a == nil || a.Status != AttemptPending {
		return nil
	}
	return a
}

// CanDispute reports whether the player may contest the claim against them.
func (p *Player) CanDispute() bool {
	a := p.PendingAttempt()
	return p.IsPending && a != nil && a.Dispute == nil
}
