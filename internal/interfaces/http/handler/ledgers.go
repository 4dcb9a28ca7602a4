package handler

import (
	"context"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/afp/backend/internal/domain/certification"
	"github.com/afp/backend/internal/interfaces/http/dto"
	"github.com/afp/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// LedgerHandler lists and seeds the PO and category ledgers
type LedgerHandler struct {
	BaseHandler
	ledgers *appcert.LedgerService
	admin   gin.HandlerFunc
}

// NewLedgerHandler creates a LedgerHandler whose seed routes are guarded by admin
func NewLedgerHandler(ledgers *appcert.LedgerService, admin gin.HandlerFunc) *LedgerHandler {
	return &LedgerHandler{ledgers: ledgers, admin: admin}
}

// RegisterRoutes registers the ledger routes
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/ledgers")
	g.GET("/pos", h.ListPOs)
	g.GET("/categories", h.ListCategories)
	g.PUT("/pos", h.admin, h.SeedPOs)
	g.PUT("/categories", h.admin, h.SeedCategories)
}

// ListPOs lists PO entries ordered by id
func (h *LedgerHandler) ListPOs(c *gin.Context) {
	h.list(c, h.ledgers.ListPOs)
}

// ListCategories lists category entries ordered by id
func (h *LedgerHandler) ListCategories(c *gin.Context) {
	h.list(c, h.ledgers.ListCategories)
}

// SeedPOs upserts the posted PO entries
func (h *LedgerHandler) SeedPOs(c *gin.Context) {
	h.seed(c, h.ledgers.SeedPOs)
}

// SeedCategories upserts the posted category entries
func (h *LedgerHandler) SeedCategories(c *gin.Context) {
	h.seed(c, h.ledgers.SeedCategories)
}

type listFunc func(ctx context.Context, f certification.LedgerFilter) ([]appcert.LedgerEntry, error)

type seedFunc func(ctx context.Context, entries []appcert.LedgerEntry) error

func (h *LedgerHandler) list(c *gin.Context, fn listFunc) {
	var q dto.LedgerListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	entries, err := fn(c.Request.Context(), certification.LedgerFilter{Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.List(c, entries, len(entries), q.Limit, q.Offset)
}

func (h *LedgerHandler) seed(c *gin.Context, fn seedFunc) {
	var reqs []dto.LedgerEntryRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	for i := range reqs {
		if err := binding.Validator.ValidateStruct(&reqs[i]); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	if err := fn(c.Request.Context(), dto.ToLedgerEntries(reqs)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.SeedResponse{Upserted: len(reqs)})
}
