package dto

import (
	"time"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/afp/backend/internal/domain/certification"
	"github.com/shopspring/decimal"
)

// ProcessedRecordResponse is one certified row
type ProcessedRecordResponse struct {
	ID                      uint64          `json:"id"`
	SourceBlob              string          `json:"source_blob"`
	RowNumber               int             `json:"row_number"`
	Project                 string          `json:"project"`
	CostCategory            string          `json:"cost_category"`
	PO                      string          `json:"po"`
	CostAmount              decimal.Decimal `json:"cost_amount"`
	Certification           string          `json:"certification"`
	CertifiedCost           decimal.Decimal `json:"certified_cost"`
	PORemainingBefore       decimal.Decimal `json:"po_remaining_before"`
	CategoryRemainingBefore decimal.Decimal `json:"category_remaining_before"`
	ErrorMessage            *string         `json:"error_message"`
	RawPayload              string          `json:"raw_payload"`
	ProcessedAt             time.Time       `json:"processed_at"`
}

// ToProcessedRecordResponses converts processed records
func ToProcessedRecordResponses(recs []certification.ProcessedRecord) []ProcessedRecordResponse {
	out := make([]ProcessedRecordResponse, len(recs))
	for i, r := range recs {
		out[i] = ProcessedRecordResponse{
			ID:                      r.ID,
			SourceBlob:              r.SourceBlob,
			RowNumber:               r.RowNumber,
			Project:                 r.Project,
			CostCategory:            r.CostCategory,
			PO:                      r.PO,
			CostAmount:              r.CostAmount,
			Certification:           r.Certification.String(),
			CertifiedCost:           r.CertifiedCost,
			PORemainingBefore:       r.PORemainingBefore,
			CategoryRemainingBefore: r.CategoryRemainingBefore,
			ErrorMessage:            r.ErrorMessage,
			RawPayload:              r.RawPayload,
			ProcessedAt:             r.ProcessedAt,
		}
	}
	return out
}

// RawRecordResponse is one ingested row as received
type RawRecordResponse struct {
	ID           uint64              `json:"id"`
	SourceBlob   string              `json:"source_blob"`
	RowNumber    int                 `json:"row_number"`
	Project      *string             `json:"project"`
	CostCategory *string             `json:"cost_category"`
	PO           *string             `json:"po"`
	CostAmount   decimal.NullDecimal `json:"cost_amount"`
	RawPayload   string              `json:"raw_payload"`
	IngestedAt   time.Time           `json:"ingested_at"`
}

// ToRawRecordResponses converts raw records
func ToRawRecordResponses(recs []certification.RawRecord) []RawRecordResponse {
	out := make([]RawRecordResponse, len(recs))
	for i, r := range recs {
		out[i] = RawRecordResponse{
			ID:           r.ID,
			SourceBlob:   r.SourceBlob,
			RowNumber:    r.RowNumber,
			Project:      r.Project,
			CostCategory: r.CostCategory,
			PO:           r.PO,
			CostAmount:   r.CostAmount,
			RawPayload:   r.RawPayload,
			IngestedAt:   r.IngestedAt,
		}
	}
	return out
}

// RecordListQuery binds the record listing query string
type RecordListQuery struct {
	Limit  *int   `form:"limit" binding:"omitempty,min=1,max=1000"`
	Status string `form:"status"`
	Source string `form:"source"`
}

// LedgerListQuery binds the ledger listing query string
type LedgerListQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// LedgerEntryRequest is one seed tuple
type LedgerEntryRequest struct {
	ID           string           `json:"id" binding:"required,max=64"`
	Limit        *decimal.Decimal `json:"limit" binding:"required"`
	TotalClaimed *decimal.Decimal `json:"total_claimed"`
}

// ToLedgerEntries converts seed requests; a missing total_claimed is zero
func ToLedgerEntries(reqs []LedgerEntryRequest) []appcert.LedgerEntry {
	out := make([]appcert.LedgerEntry, len(reqs))
	for i, r := range reqs {
		claimed := decimal.Zero
		if r.TotalClaimed != nil {
			claimed = *r.TotalClaimed
		}
		out[i] = appcert.LedgerEntry{ID: r.ID, Limit: *r.Limit, TotalClaimed: claimed}
	}
	return out
}

// SeedResponse reports how many entries were upserted
type SeedResponse struct {
	Upserted int `json:"upserted"`
}
