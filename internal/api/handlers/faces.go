package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facesearch/internal/biometric"
	"github.com/your-org/facesearch/internal/models"
	"github.com/your-org/facesearch/internal/search"
	"github.com/your-org/facesearch/internal/verify"
	"github.com/your-org/facesearch/pkg/dto"
)

// FaceService is the subset of biometric.Service the HTTP layer calls.
type FaceService interface {
	RegisterFace(ctx context.Context, userID string, data []byte) (*models.FaceRecord, error)
	VerifyFace(ctx context.Context, userID string, probe []byte) (*verify.Result, error)
	DeleteFace(ctx context.Context, userID string) error
	RequestReembed(ctx context.Context) (int, error)
	SearchByText(ctx context.Context, text string, role models.Role, opts search.Options) ([]search.Result, error)
	SearchByImage(ctx context.Context, probe []byte, role models.Role, opts biometric.ImageSearchOptions) ([]biometric.ImageMatch, error)
	ParseQuery(text string) search.Query
}

type FaceHandler struct {
	svc       FaceService
	maxUpload int64
}

func NewFaceHandler(svc FaceService, maxUploadBytes int64) *FaceHandler {
	return &FaceHandler{svc: svc, maxUpload: maxUploadBytes}
}

func (h *FaceHandler) Register(c *gin.Context) {
	userID := c.Param("userId")
	data, ok := readImage(c, h.maxUpload)
	if !ok {
		return
	}

	rec, err := h.svc.RegisterFace(c.Request.Context(), userID, data)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, faceResponse(rec))
}

// Verify always answers with a verification body. Forced non-matches carry
// the reason in "error" alongside the mapped status.
func (h *FaceHandler) Verify(c *gin.Context) {
	userID := c.Param("userId")
	data, ok := readImage(c, h.maxUpload)
	if !ok {
		return
	}

	res, err := h.svc.VerifyFace(c.Request.Context(), userID, data)
	if res == nil {
		abortWithError(c, err)
		return
	}

	resp := dto.VerifyResponse{
		UserID:              userID,
		IsMatch:             res.IsMatch,
		Similarity:          res.Similarity,
		EmbeddingSimilarity: res.EmbeddingSimilarity,
		Confidence:          string(res.Confidence),
		Method:              res.Method,
		QualityScore:        res.Quality,
		ExtractorVersion:    res.ExtractorVersion,
		Analysis:            res.Analysis,
	}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = statusFor(err)
	}
	c.JSON(status, resp)
}

func (h *FaceHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteFace(c.Request.Context(), c.Param("userId")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FaceHandler) Reembed(c *gin.Context) {
	n, err := h.svc.RequestReembed(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.ReembedResponse{Queued: n})
}

func faceResponse(rec *models.FaceRecord) dto.FaceResponse {
	return dto.FaceResponse{
		UserID:              rec.UserID,
		ExtractorVersion:    rec.ExtractorVersion,
		QualityScore:        rec.QualityScore,
		DetectionConfidence: rec.DetectionConfidence,
		StateMoment:         rec.StateMoment,
		UserAge:             rec.UserAge,
		ReferenceImageURL:   rec.ReferenceImageURL,
		CreatedAt:           rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           rec.UpdatedAt.Format(time.RFC3339),
	}
}
