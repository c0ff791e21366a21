package models

import "time"

// Evidence describes an uploaded claim photo or video.
type Evidence struct {
	ID          string    `json:"id"`
	GameID      string    `json:"gameId"`
	UploaderID  string    `json:"uploaderUserId"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
	URL         string    `json:"url,omitempty"`
}
