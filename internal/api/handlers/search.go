package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facesearch/internal/biometric"
	"github.com/your-org/facesearch/internal/models"
	"github.com/your-org/facesearch/internal/search"
	"github.com/your-org/facesearch/internal/vision"
	"github.com/your-org/facesearch/pkg/dto"
)

type SearchHandler struct {
	svc       FaceService
	maxUpload int64
}

func NewSearchHandler(svc FaceService, maxUploadBytes int64) *SearchHandler {
	return &SearchHandler{svc: svc, maxUpload: maxUploadBytes}
}

func (h *SearchHandler) Text(c *gin.Context) {
	var req dto.TextSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, ok := parseRole(c, req.Role)
	if !ok {
		return
	}

	results, err := h.svc.SearchByText(c.Request.Context(), req.Query, role, search.Options{
		Limit:       req.Limit,
		MinScore:    req.MinScore,
		AgePriority: req.AgePriority,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	q := h.svc.ParseQuery(req.Query)
	resp := dto.TextSearchResponse{
		Query:   req.Query,
		Terms:   q.Terms,
		Total:   len(results),
		Results: make([]dto.TextMatch, 0, len(results)),
	}
	if resp.Terms == nil {
		resp.Terms = []string{}
	}
	if q.TargetAge > 0 {
		age := q.TargetAge
		resp.TargetAge = &age
	}
	for _, r := range results {
		resp.Results = append(resp.Results, dto.TextMatch{
			User:          userSummary(r.User),
			Score:         r.Score,
			StateMatches:  r.StateMatches,
			AgeMatches:    r.AgeMatches,
			ExactAge:      r.ExactAge,
			AgeDifference: r.AgeDifference,
			StateMoment:   r.StateMoment,
			UserAge:       r.UserAge,
			Confidence:    r.Confidence,
			MatchReason:   r.MatchReason,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SearchHandler) Image(c *gin.Context) {
	data, ok := readImage(c, h.maxUpload)
	if !ok {
		return
	}
	var req dto.ImageSearchRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, ok := parseRole(c, req.Role)
	if !ok {
		return
	}
	gender, ok := parseGender(req.Gender)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gender"})
		return
	}
	if req.AgeMax > 0 && req.AgeMin > req.AgeMax {
		c.JSON(http.StatusBadRequest, gin.H{"error": "age_min exceeds age_max"})
		return
	}

	matches, err := h.svc.SearchByImage(c.Request.Context(), data, role, biometric.ImageSearchOptions{
		Limit:         req.Limit,
		Gender:        gender,
		StateContains: req.State,
		AgeMin:        req.AgeMin,
		AgeMax:        req.AgeMax,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := dto.ImageSearchResponse{Total: len(matches), Results: make([]dto.ImageMatch, 0, len(matches))}
	for _, m := range matches {
		resp.Results = append(resp.Results, dto.ImageMatch{
			User:             userSummary(m.User),
			Similarity:       m.Similarity,
			SearchQuality:    m.SearchQuality,
			StoredQuality:    m.StoredQuality,
			Confidence:       string(m.Confidence),
			StateMoment:      m.StateMoment,
			ExtractorVersion: m.ExtractorVersion,
			MatchReason:      m.MatchReason,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// parseRole accepts an empty role, meaning any role.
func parseRole(c *gin.Context, raw string) (models.Role, bool) {
	role := models.Role(strings.ToLower(strings.TrimSpace(raw)))
	if role != "" && !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return "", false
	}
	return role, true
}

func parseGender(raw string) (vision.Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", true
	case "male", "m", string(vision.GenderMale):
		return vision.GenderMale, true
	case "female", "f", string(vision.GenderFemale), "nu":
		return vision.GenderFemale, true
	}
	return "", false
}

func userSummary(u models.User) dto.UserSummary {
	return dto.UserSummary{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		Avatar:   u.Avatar,
		Class:    u.Class,
		Role:     string(u.Role),
	}
}
