package handler

import (
	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/afp/backend/internal/interfaces/http/dto"
	"github.com/afp/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// RecordHandler serves the processed and raw audit tables
type RecordHandler struct {
	BaseHandler
	records *appcert.RecordService
}

// NewRecordHandler creates a RecordHandler
func NewRecordHandler(records *appcert.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

// RegisterRoutes registers the record routes
func (h *RecordHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/records", h.ListProcessed)
	rg.GET("/raw-records", h.ListRaw)
}

// ListProcessed lists processed records newest first, optionally by status
func (h *RecordHandler) ListProcessed(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}
	recs, err := h.records.ListProcessed(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.List(c, dto.ToProcessedRecordResponses(recs), len(recs), effectiveLimit(q.Limit), 0)
}

// ListRaw lists raw records newest first
func (h *RecordHandler) ListRaw(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}
	recs, err := h.records.ListRaw(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.List(c, dto.ToRawRecordResponses(recs), len(recs), effectiveLimit(q.Limit), 0)
}

func (h *RecordHandler) bindQuery(c *gin.Context) (appcert.RecordQuery, bool) {
	var q dto.RecordListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return appcert.RecordQuery{}, false
	}
	query := appcert.RecordQuery{Status: q.Status, Source: q.Source}
	if q.Limit != nil {
		query.Limit = *q.Limit
	}
	return query, true
}

func effectiveLimit(limit int) int {
	if limit == 0 {
		return appcert.DefaultRecordLimit
	}
	return limit
}
