package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/afp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// UploadHandler accepts claim files into the incoming prefix
type UploadHandler struct {
	BaseHandler
	uploads *appcert.UploadService
}

// NewUploadHandler creates an UploadHandler
func NewUploadHandler(uploads *appcert.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// RegisterRoutes registers the upload route
func (h *UploadHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads", h.Upload)
}

// Upload stores the multipart field "file" and returns its blob name
func (h *UploadHandler) Upload(c *gin.Context) {
	name, content, ok := h.readFile(c)
	if !ok {
		return
	}

	result, err := h.uploads.Upload(c.Request.Context(), name, content)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// readFile reads the multipart "file" field. On failure it has already
// written the response.
func (h *BaseHandler) readFile(c *gin.Context) (string, []byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, "File exceeds maximum allowed size")
			return "", nil, false
		}
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidFile, "multipart field \"file\" is required")
		return "", nil, false
	}

	content, err := readMultipart(fh)
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidFile, "could not read uploaded file")
		return "", nil, false
	}
	return fh.Filename, content, true
}

func readMultipart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
