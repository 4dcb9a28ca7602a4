package dto

import "net/http"

// Error codes returned in ErrorInfo.Code
const (
	ErrCodeInternal      = "ERR_INTERNAL"
	ErrCodeUnavailable   = "ERR_UNAVAILABLE"
	ErrCodeValidation    = "ERR_VALIDATION"
	ErrCodeBadRequest    = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput  = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON   = "ERR_INVALID_JSON"
	ErrCodeInvalidLimit  = "ERR_INVALID_LIMIT"
	ErrCodeInvalidStatus = "ERR_INVALID_STATUS"
	ErrCodeInvalidFile   = "ERR_INVALID_FILE"
	ErrCodeUnsupported   = "ERR_UNSUPPORTED_FILE_TYPE"
	ErrCodeEmptyFile     = "ERR_EMPTY_FILE"
	ErrCodeEncoding      = "ERR_INVALID_ENCODING"
	ErrCodeTooLarge      = "ERR_REQUEST_TOO_LARGE"
	ErrCodeUnauthorized  = "ERR_UNAUTHORIZED"
	ErrCodeForbidden     = "ERR_FORBIDDEN"
	ErrCodeTokenInvalid  = "ERR_TOKEN_INVALID"
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeConflict      = "ERR_CONFLICT"
	ErrCodeFileInFlight  = "ERR_FILE_IN_FLIGHT"
	ErrCodeFileAborted   = "ERR_FILE_ABORTED"
)

var errorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:      http.StatusInternalServerError,
	ErrCodeUnavailable:   http.StatusServiceUnavailable,
	ErrCodeValidation:    http.StatusBadRequest,
	ErrCodeBadRequest:    http.StatusBadRequest,
	ErrCodeInvalidInput:  http.StatusBadRequest,
	ErrCodeInvalidJSON:   http.StatusBadRequest,
	ErrCodeInvalidLimit:  http.StatusBadRequest,
	ErrCodeInvalidStatus: http.StatusBadRequest,
	ErrCodeInvalidFile:   http.StatusBadRequest,
	ErrCodeUnsupported:   http.StatusUnsupportedMediaType,
	ErrCodeEmptyFile:     http.StatusBadRequest,
	ErrCodeEncoding:      http.StatusBadRequest,
	ErrCodeTooLarge:      http.StatusRequestEntityTooLarge,
	ErrCodeUnauthorized:  http.StatusUnauthorized,
	ErrCodeForbidden:     http.StatusForbidden,
	ErrCodeTokenInvalid:  http.StatusUnauthorized,
	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeConflict:      http.StatusConflict,
	ErrCodeFileInFlight:  http.StatusConflict,
	ErrCodeFileAborted:   http.StatusInternalServerError,
}

// GetHTTPStatus returns the status for an error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

var domainCodeMapping = map[string]string{
	"NOT_FOUND":             ErrCodeNotFound,
	"INVALID_INPUT":         ErrCodeInvalidInput,
	"INVALID_LIMIT":         ErrCodeInvalidLimit,
	"INVALID_STATUS":        ErrCodeInvalidStatus,
	"INVALID_FILE":          ErrCodeInvalidFile,
	"UNSUPPORTED_FILE_TYPE": ErrCodeUnsupported,
	"EMPTY_FILE":            ErrCodeEmptyFile,
	"INVALID_ENCODING":      ErrCodeEncoding,
	"UNAUTHORIZED":          ErrCodeUnauthorized,
	"FORBIDDEN":             ErrCodeForbidden,
	"CONFLICT":              ErrCodeConflict,
	"UNAVAILABLE":           ErrCodeUnavailable,
}

// NormalizeErrorCode maps a domain error code to its API code. Unknown
// codes are returned unchanged.
func NormalizeErrorCode(code string) string {
	if c, ok := domainCodeMapping[code]; ok {
		return c
	}
	return code
}
