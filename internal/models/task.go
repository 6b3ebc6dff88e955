package models

import "time"

const (
	FaceRegistered = "face.registered"
	FaceDeleted    = "face.deleted"
	FaceReembedded = "face.reembedded"
)

// FaceEvent is published on the FACES stream and pushed to websocket clients.
type FaceEvent struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	UserID           string    `json:"user_id"`
	ExtractorVersion string    `json:"extractor_version,omitempty"`
	QualityScore     float32   `json:"quality_score,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// ReembedTask is the message published to NATS for worker processing.
type ReembedTask struct {
	UserID        string    `json:"user_id"`
	ImageURL      string    `json:"image_url"`
	FromVersion   string    `json:"from_version"`
	TargetVersion string    `json:"target_version"`
	RequestedAt   time.Time `json:"requested_at"`
}
