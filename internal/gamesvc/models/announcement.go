package models

import "time"

type AnnouncementKind string

const (
	AnnouncementAdmin  AnnouncementKind = "admin"
	AnnouncementSystem AnnouncementKind = "system"
)

type Announcement struct {
	ID        string           `json:"id" bson:"_id"`
	GameID    string           `json:"gameId" bson:"gameId"`
	Content   string           `json:"content" bson:"content"`
	Kind      AnnouncementKind `json:"kind" bson:"kind"`
	Timestamp time.Time        `json:"timestamp" bson:"timestamp"`
	EditedAt  *time.Time       `json:"editedAt,omitempty" bson:"editedAt,omitempty"`
}
