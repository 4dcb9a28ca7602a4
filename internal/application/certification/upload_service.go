package certification

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/afp/backend/internal/domain/shared"
	csvimport "github.com/afp/backend/internal/infrastructure/import"
	"github.com/afp/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadResult is returned after a claim file is stored
type UploadResult struct {
	BlobName string `json:"blob_name"`
	Size     int    `json:"size"`
}

// UploadService stores incoming claim files under the incoming prefix,
// where the arrival poller picks them up.
type UploadService struct {
	storage ObjectStorage
	prefix  string
	now     func() time.Time
	newID   func() string
}

// NewUploadService creates an UploadService writing under prefix
func NewUploadService(storage ObjectStorage, prefix string) *UploadService {
	return &UploadService{
		storage: storage,
		prefix:  prefix,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// Upload validates and stores one claim file
func (s *UploadService) Upload(ctx context.Context, filename string, content []byte) (*UploadResult, error) {
	name := sanitizeFilename(filename)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_FILE", "file name is required")
	}
	if !csvimport.IsSupported(name) {
		return nil, shared.NewDomainError("UNSUPPORTED_FILE_TYPE", "only .csv and .xlsx files are accepted")
	}
	if len(content) == 0 {
		return nil, shared.NewDomainError("EMPTY_FILE", "file is empty")
	}
	if strings.EqualFold(path.Ext(name), ".csv") && !utf8.Valid(content) {
		return nil, shared.NewDomainError("INVALID_ENCODING", "CSV files must be UTF-8 encoded")
	}

	key := fmt.Sprintf("%s%s-%s-%s", s.prefix, s.now().UTC().Format("20060102-150405"), s.newID(), name)
	if err := s.storage.Upload(ctx, key, content, contentType(name)); err != nil {
		return nil, fmt.Errorf("store %s: %w", key, err)
	}

	logger.L(ctx).Info("claim file uploaded", zap.String("blob_name", key), zap.Int("size", len(content)))
	return &UploadResult{BlobName: key, Size: len(content)}, nil
}

// sanitizeFilename keeps the base name and drops path separators a client may send
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func contentType(name string) string {
	if strings.EqualFold(path.Ext(name), ".xlsx") {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}
