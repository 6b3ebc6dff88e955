package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facesearch/internal/biometric"
	"github.com/your-org/facesearch/internal/storage"
	"github.com/your-org/facesearch/internal/verify"
	"github.com/your-org/facesearch/internal/vision"
)

const imageField = "image"

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vision.ErrNoFaceDetected),
		errors.Is(err, vision.ErrInvalidCropGeometry),
		errors.Is(err, vision.ErrExtractionFailed),
		errors.Is(err, biometric.ErrInvalidImage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, verify.ErrNoReferenceRecord),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, verify.ErrExtractorMismatch):
		return http.StatusConflict
	case errors.Is(err, storage.ErrStoreUnavailable),
		errors.Is(err, storage.ErrDownloadFailure),
		errors.Is(err, vision.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// readImage reads the multipart image field, capped at maxBytes.
func readImage(c *gin.Context, maxBytes int64) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	file, _, err := c.Request.FormFile(imageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return nil, false
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is empty"})
		return nil, false
	}
	return data, true
}
