package comm

import (
	"encoding/json"
	"time"
)

// NATS subjects shared by gamesvc and socketsvc.
const (
	GameServiceTopic   = "game.service"   // gamesvc -> socketsvc
	SocketServiceTopic = "socket.service" // socketsvc -> gamesvc
)

// Event types published on GameServiceTopic.
const (
	EventGameStarted         = "game-started"
	EventClaimSubmitted      = "claim-submitted"
	EventClaimRejected       = "claim-rejected"
	EventDisputeSubmitted    = "dispute-submitted"
	EventEliminationVerified = "elimination-verified"
	EventGameCompleted       = "game-completed"
	EventAnnouncement        = "announcement"
	EventAnnouncementUpdated = "announcement-updated"
	EventAnnouncementDeleted = "announcement-deleted"
	EventActionResult        = "action-result"
)

// Client actions forwarded on SocketServiceTopic.
const (
	ActionJoinRoom      = "join-room"
	ActionSubmitClaim   = "submit-claim"
	ActionSubmitDispute = "submit-dispute"
)

type WSMessage struct {
	Type     string          `json:"type"` // event or action name
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
	UserId   string          `json:"userid,omitempty"` // set by socketsvc from the verified token
}

// GameEvent is broadcast to every socket in the game's room. It never
// carries target assignments.
type GameEvent struct {
	Type           string    `json:"type"`
	GameID         string    `json:"gameId"`
	PlayerID       string    `json:"playerId,omitempty"`
	PlayerName     string    `json:"playerName,omitempty"`
	Remaining      int       `json:"remaining,omitempty"`
	WinnerID       string    `json:"winnerId,omitempty"`
	WinnerName     string    `json:"winnerName,omitempty"`
	AnnouncementID string    `json:"announcementId,omitempty"`
	Content        string    `json:"content,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type JoinRoom struct {
	GameID string `json:"gameId"`
}

type SubmitClaim struct {
	GameID      string  `json:"gameId"`
	EvidenceURL *string `json:"evidenceUrl"`
	VictimID    string  `json:"victimId"`
}

type SubmitDispute struct {
	PlayerID string `json:"playerId"`
	Text     string `json:"text"`
}

// ActionResult answers a single socket's action.
type ActionResult struct {
	Action string          `json:"action"`
	OK     bool            `json:"ok"`
	Code   string          `json:"code,omitempty"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}
