package models

import "time"

// FaceRecord is the stored biometric profile of one user. There is at most
// one record per user; registering again replaces it.
type FaceRecord struct {
	UserID              string        `json:"user_id" db:"user_id"`
	Embedding           []float32     `json:"-" db:"embedding"`
	ExtractorVersion    string        `json:"extractor_version" db:"extractor_version"`
	Landmarks           [5][2]float32 `json:"landmarks" db:"landmarks"`
	QualityScore        float32       `json:"quality_score" db:"quality_score"`
	Brightness          float32       `json:"brightness" db:"brightness"`
	Contrast            float32       `json:"contrast" db:"contrast"`
	DetectionConfidence float32       `json:"detection_confidence" db:"detection_confidence"`
	StateMoment         string        `json:"state_moment" db:"state_moment"`
	UserAge             string        `json:"user_age" db:"user_age"`
	ReferenceImageURL   string        `json:"reference_image_url" db:"reference_image_url"`
	ReferenceKey        string        `json:"reference_key" db:"reference_key"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" db:"updated_at"`
}

// FaceAttributes is the slice of a record the text search reads.
type FaceAttributes struct {
	UserID      string `db:"user_id"`
	StateMoment string `db:"state_moment"`
	UserAge     string `db:"user_age"`
}

// FaceCandidate is a record preselected by vector distance for image search.
type FaceCandidate struct {
	UserID       string
	Embedding    []float32
	QualityScore float32
	StateMoment  string
	UserAge      string
	ImageURL     string
	Distance     float32
}
