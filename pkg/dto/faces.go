package dto

type FaceResponse struct {
	UserID              string  `json:"user_id"`
	ExtractorVersion    string  `json:"extractor_version"`
	QualityScore        float32 `json:"quality_score"`
	DetectionConfidence float32 `json:"detection_confidence"`
	StateMoment         string  `json:"state_moment"`
	UserAge             string  `json:"user_age"`
	ReferenceImageURL   string  `json:"reference_image_url"`
	CreatedAt           string  `json:"created_at"`
	UpdatedAt           string  `json:"updated_at"`
}

type VerifyResponse struct {
	UserID              string  `json:"user_id"`
	IsMatch             bool    `json:"is_match"`
	Similarity          float32 `json:"similarity"`
	EmbeddingSimilarity float32 `json:"embedding_similarity"`
	Confidence          string  `json:"confidence"`
	Method              string  `json:"method"`
	QualityScore        float32 `json:"quality_score"`
	ExtractorVersion    string  `json:"extractor_version,omitempty"`
	Analysis            string  `json:"analysis,omitempty"`
	Error               string  `json:"error,omitempty"`
}

type ReembedResponse struct {
	Queued int `json:"queued"`
}
