package models

import (
	"time"
)

// Stats are lifetime counters aggregated across every game a user joined.
type Stats struct {
	Eliminations int `json:"eliminations" bson:"eliminations"`
	GamesPlayed  int `json:"gamesPlayed" bson:"gamesPlayed"`
	GamesWon     int `json:"gamesWon" bson:"gamesWon"`
}

// User is keyed by the identity provider's subject.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Email     string    `json:"email,omitempty" bson:"email"`
	Username  string    `json:"username" bson:"username"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	Stats     Stats     `json:"stats" bson:"stats"`
}

// LeaderboardEntry is one row of the global eliminations ranking.
type LeaderboardEntry struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	Eliminations int    `json:"eliminations"`
}
