package certification

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/afp/backend/internal/domain/certification"
	"github.com/afp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// LedgerEntry is one seed tuple or listing row for either ledger
type LedgerEntry struct {
	ID           string          `json:"id"`
	Limit        decimal.Decimal `json:"limit"`
	TotalClaimed decimal.Decimal `json:"total_claimed"`
	Remaining    decimal.Decimal `json:"remaining"`
}

// LedgerService seeds and lists the PO and category ledgers. Seeding must
// happen before any claim references an id.
type LedgerService struct {
	repo certification.LedgerRepository
}

// NewLedgerService creates a LedgerService
func NewLedgerService(repo certification.LedgerRepository) *LedgerService {
	return &LedgerService{repo: repo}
}

// SeedPOs upserts PO entries
func (s *LedgerService) SeedPOs(ctx context.Context, entries []LedgerEntry) error {
	if err := validateEntries(entries); err != nil {
		return err
	}
	pos := make([]certification.POLimit, len(entries))
	for i, e := range entries {
		pos[i] = certification.POLimit{
			PO:           e.ID,
			POValue:      e.Limit.Round(certification.AmountScale),
			TotalClaimed: e.TotalClaimed.Round(certification.AmountScale),
		}
	}
	if err := s.repo.UpsertPOs(ctx, pos); err != nil {
		return fmt.Errorf("seed PO ledger: %w", err)
	}
	return nil
}

// SeedCategories upserts category entries
func (s *LedgerService) SeedCategories(ctx context.Context, entries []LedgerEntry) error {
	if err := validateEntries(entries); err != nil {
		return err
	}
	cats := make([]certification.CategoryLimit, len(entries))
	for i, e := range entries {
		cats[i] = certification.CategoryLimit{
			CategoryID:    e.ID,
			CategoryLimit: e.Limit.Round(certification.AmountScale),
			TotalClaimed:  e.TotalClaimed.Round(certification.AmountScale),
		}
	}
	if err := s.repo.UpsertCategories(ctx, cats); err != nil {
		return fmt.Errorf("seed category ledger: %w", err)
	}
	return nil
}

// ListPOs returns PO entries ordered by id
func (s *LedgerService) ListPOs(ctx context.Context, filter certification.LedgerFilter) ([]LedgerEntry, error) {
	pos, err := s.repo.ListPOs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list PO ledger: %w", err)
	}
	out := make([]LedgerEntry, len(pos))
	for i, po := range pos {
		out[i] = LedgerEntry{ID: po.PO, Limit: po.POValue, TotalClaimed: po.TotalClaimed, Remaining: po.Remaining()}
	}
	return out, nil
}

// ListCategories returns category entries ordered by id
func (s *LedgerService) ListCategories(ctx context.Context, filter certification.LedgerFilter) ([]LedgerEntry, error) {
	cats, err := s.repo.ListCategories(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list category ledger: %w", err)
	}
	out := make([]LedgerEntry, len(cats))
	for i, c := range cats {
		out[i] = LedgerEntry{ID: c.CategoryID, Limit: c.CategoryLimit, TotalClaimed: c.TotalClaimed, Remaining: c.Remaining()}
	}
	return out, nil
}

func validateEntries(entries []LedgerEntry) error {
	if len(entries) == 0 {
		return shared.NewDomainError("INVALID_INPUT", "at least one ledger entry is required")
	}
	seen := make(map[string]struct{}, len(entries))
	var errs []error
	for i, e := range entries {
		switch {
		case e.ID == "":
			errs = append(errs, fmt.Errorf("entry %d: id is required", i))
		case utf8.RuneCountInString(e.ID) > certification.MaxIdentifierLength:
			errs = append(errs, fmt.Errorf("entry %d: id exceeds %d characters", i, certification.MaxIdentifierLength))
		}
		if _, dup := seen[e.ID]; dup && e.ID != "" {
			errs = append(errs, fmt.Errorf("entry %d: duplicate id %q", i, e.ID))
		}
		seen[e.ID] = struct{}{}
		if e.Limit.IsNegative() {
			errs = append(errs, fmt.Errorf("entry %d: limit cannot be negative", i))
		}
		if !certification.AmountInRange(e.Limit.Round(certification.AmountScale)) {
			errs = append(errs, fmt.Errorf("entry %d: limit must be below %s", i, certification.MaxAmount))
		}
		if e.TotalClaimed.IsNegative() {
			errs = append(errs, fmt.Errorf("entry %d: total_claimed cannot be negative", i))
		}
		if !certification.AmountInRange(e.TotalClaimed.Round(certification.AmountScale)) {
			errs = append(errs, fmt.Errorf("entry %d: total_claimed must be below %s", i, certification.MaxAmount))
		}
	}
	if len(errs) > 0 {
		return shared.NewDomainError("INVALID_INPUT", errors.Join(errs...).Error())
	}
	return nil
}
