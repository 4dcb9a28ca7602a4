package handler

import (
	"errors"
	"net/http"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/afp/backend/internal/domain/certification"
	"github.com/afp/backend/internal/domain/shared"
	"github.com/afp/backend/internal/infrastructure/logger"
	"github.com/afp/backend/internal/interfaces/http/dto"
	"github.com/afp/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BaseHandler provides common response helpers
type BaseHandler struct{}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// List sends a 200 response with listing meta
func (h *BaseHandler) List(c *gin.Context, data any, count, limit, offset int) {
	c.JSON(http.StatusOK, dto.NewListResponse(data, count, limit, offset))
}

// Created sends a 201 response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error envelope with an explicit status
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// HandleError maps err to a response. Domain errors keep their code and
// message. Anything else is logged and reported as a generic 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	switch {
	case errors.As(err, &domainErr):
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
	case errors.Is(err, appcert.ErrFileInFlight):
		h.Error(c, http.StatusConflict, dto.ErrCodeFileInFlight, err.Error())
	case errors.Is(err, certification.ErrLockTimeout):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Ledger entries are busy, retry later")
	default:
		_ = c.Error(err)
		logger.GetGinLogger(c).Error("request failed", zap.Error(err))
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
	}
}
