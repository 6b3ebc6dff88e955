package dto

type TextSearchRequest struct {
	Query       string `form:"q" binding:"required"`
	Role        string `form:"role"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=100"`
	MinScore    int    `form:"min_score" binding:"omitempty,min=0"`
	AgePriority *bool  `form:"age_priority"`
}

type ImageSearchRequest struct {
	Role   string `form:"role"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Gender string `form:"gender"`
	State  string `form:"state"`
	AgeMin int    `form:"age_min" binding:"omitempty,min=0"`
	AgeMax int    `form:"age_max" binding:"omitempty,min=0"`
}

type UserSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Class    string `json:"class"`
	Role     string `json:"role"`
}

type TextMatch struct {
	User          UserSummary `json:"user"`
	Score         int         `json:"score"`
	StateMatches  []string    `json:"state_matches"`
	AgeMatches    []string    `json:"age_matches"`
	ExactAge      *int        `json:"exact_age,omitempty"`
	AgeDifference *int        `json:"age_difference,omitempty"`
	StateMoment   string      `json:"state_moment"`
	UserAge       string      `json:"user_age"`
	Confidence    string      `json:"confidence"`
	MatchReason   string      `json:"match_reason"`
}

type TextSearchResponse struct {
	Query     string      `json:"query"`
	TargetAge *int        `json:"target_age,omitempty"`
	Terms     []string    `json:"terms"`
	Total     int         `json:"total"`
	Results   []TextMatch `json:"results"`
}

type ImageMatch struct {
	User             UserSummary `json:"user"`
	Similarity       float32     `json:"similarity"`
	SearchQuality    float32     `json:"search_quality"`
	StoredQuality    float32     `json:"stored_quality"`
	Confidence       string      `json:"confidence"`
	StateMoment      string      `json:"state_moment"`
	ExtractorVersion string      `json:"extractor_version"`
	MatchReason      string      `json:"match_reason"`
}

type ImageSearchResponse struct {
	Total   int          `json:"total"`
	Results []ImageMatch `json:"results"`
}
