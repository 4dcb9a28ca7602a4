package handler

import (
	"context"
	"errors"
	"net/http"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/afp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// FileProcessor runs one file through certification
type FileProcessor interface {
	ProcessFile(ctx context.Context, file appcert.FileArrival) (*appcert.BatchResult, error)
}

// CertificationHandler processes an uploaded file synchronously
type CertificationHandler struct {
	BaseHandler
	processor FileProcessor
	admin     gin.HandlerFunc
}

// NewCertificationHandler creates a CertificationHandler guarded by admin
func NewCertificationHandler(processor FileProcessor, admin gin.HandlerFunc) *CertificationHandler {
	return &CertificationHandler{processor: processor, admin: admin}
}

// RegisterRoutes registers the certification route
func (h *CertificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/certifications/files", h.admin, h.ProcessFile)
}

// ProcessFile certifies the multipart field "file" and returns the batch
// result: 200 when committed or skipped, 409 when the file is in flight
// elsewhere, 500 when aborted.
func (h *CertificationHandler) ProcessFile(c *gin.Context) {
	name, content, ok := h.readFile(c)
	if !ok {
		return
	}

	result, err := h.processor.ProcessFile(c.Request.Context(), appcert.FileArrival{Name: name, Content: content})
	switch {
	case errors.Is(err, appcert.ErrFileInFlight):
		h.Error(c, http.StatusConflict, dto.ErrCodeFileInFlight, "file is already being processed")
	case result == nil:
		h.HandleError(c, err)
	case result.State == appcert.StateAborted:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, dto.Response{
			Success: false,
			Data:    result,
			Error:   &dto.ErrorInfo{Code: dto.ErrCodeFileAborted, Message: result.Reason},
		})
	default:
		h.Success(c, result)
	}
}
