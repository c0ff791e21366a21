package models

import (
	"time"
)

type GameStatus string

const (
	GameStatusSetup     GameStatus = "setup"
	GameStatusActive    GameStatus = "active"
	GameStatusCompleted GameStatus = "completed"
)

// DefaultRules is used when a game is created without rules text.
const DefaultRules = "(1) Everyone playing is assigned a target that only they know. " +
	"(2) They must eliminate their target. " +
	"(3) When eliminated, their target's target becomes their own. " +
	"(4) The game goes on until one player is left standing."

// Elimination is one verified kill in a game's history.
type Elimination struct {
	KillerID       string    `json:"killerId" bson:"killerId"`
	KilledPlayerID string    `json:"killedPlayerId" bson:"killedPlayerId"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
}

type Game struct {
	ID           string        `json:"id" bson:"_id"`
	Title        string        `json:"title" bson:"title"`
	Rules        string        `json:"rules" bson:"rules"`
	Status       GameStatus    `json:"status" bson:"status"`
	IsActive     bool          `json:"isActive" bson:"isActive"` // mirrors Status == active
	CreatedAt    time.Time     `json:"createdAt" bson:"createdAt"`
	StartedAt    *time.Time    `json:"startedAt" bson:"startedAt"`
	EndTime      *time.Time    `json:"endTime" bson:"endTime"`
	Winner       *string       `json:"winner" bson:"winner"` // player id, set once completed
	WinnerName   string        `json:"winnerName" bson:"winnerName"`
	PlayerIDs    []string      `json:"playerIds" bson:"playerIds"`
	Eliminations []Elimination `json:"eliminations" bson:"eliminations"` // append only
}

// Activate moves a game from setup to active.
func (g *Game) Activate(now time.Time) {
	g.Status = GameStatusActive
	g.IsActive = true
	g.StartedAt = &now
}

// Complete ends the game with the given winner.
func (g *Game) Complete(now time.Time, winnerID, winnerName string) {
	g.Status = GameStatusCompleted
	g.IsActive = false
	g.EndTime = &now
	g.Winner = &winnerID
	g.WinnerName = winnerName
}

func (g *Game) RemovePlayer(playerID string) {
	ids := g.PlayerIDs[:0]
	for _, id := range g.PlayerIDs {
		if id != playerID {
			ids = append(ids, id)
		}
	}
	g.PlayerIDs = ids
}
