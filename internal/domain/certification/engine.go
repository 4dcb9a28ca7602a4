package certification

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Decision is the result of certifying one claim.
type Decision struct {
	Outcome                 Outcome
	Certified               decimal.Decimal
	PORemainingBefore       decimal.Decimal
	CategoryRemainingBefore decimal.Decimal
	// ErrorMessage is empty unless the claim was rejected.
	ErrorMessage string
}

// Certify decides how much of claim can be accepted against both ledgers
// and applies the certified amount through locker. Both entries are locked
// PO first, then category, before anything is compared.
//
// Business rejections (unknown entries, exhausted budgets) come back as a
// deauthorized Decision. The error return is reserved for storage failures.
func Certify(ctx context.Context, claim Claim, locker LedgerLocker) (Decision, error) {
	po, poFound, err := locker.LockPO(ctx, claim.POID)
	if err != nil {
		return Decision{}, fmt.Errorf("lock PO %q: %w", claim.POID, err)
	}
	category, catFound, err := locker.LockCategory(ctx, claim.CategoryID)
	if err != nil {
		return Decision{}, fmt.Errorf("lock category %q: %w", claim.CategoryID, err)
	}

	if !poFound || !catFound {
		var missing []string
		if !poFound {
			missing = append(missing, fmt.Sprintf("PO '%s' not found", claim.POID))
		}
		if !catFound {
			missing = append(missing, fmt.Sprintf("Category '%s' not found", claim.CategoryID))
		}
		return Decision{
			Outcome:                 OutcomeDeauthorized,
			Certified:               decimal.Zero,
			PORemainingBefore:       remainingIf(poFound, po),
			CategoryRemainingBefore: remainingIf(catFound, category),
			ErrorMessage:            strings.Join(missing, "; "),
		}, nil
	}

	poRemaining := po.Remaining()
	catRemaining := category.Remaining()
	d := Decision{
		PORemainingBefore:       poRemaining,
		CategoryRemainingBefore: catRemaining,
	}

	if poRemaining.IsZero() || catRemaining.IsZero() {
		var exhausted []string
		if poRemaining.IsZero() {
			exhausted = append(exhausted, fmt.Sprintf("PO '%s' has no remaining value", claim.POID))
		}
		if catRemaining.IsZero() {
			exhausted = append(exhausted, fmt.Sprintf("Category '%s' has no remaining limit", claim.CategoryID))
		}
		d.Outcome = OutcomeDeauthorized
		d.Certified = decimal.Zero
		d.ErrorMessage = strings.Join(exhausted, "; ")
		return d, nil
	}

	d.Certified = decimal.Min(claim.CostAmount, poRemaining, catRemaining)
	if d.Certified.Equal(claim.CostAmount) {
		d.Outcome = OutcomeAuthorized
	} else {
		d.Outcome = OutcomePartiallyAuthorized
	}

	if d.Certified.IsPositive() {
		if err := locker.ApplyPO(ctx, claim.POID, d.Certified); err != nil {
			return Decision{}, fmt.Errorf("apply PO %q: %w", claim.POID, err)
		}
		if err := locker.ApplyCategory(ctx, claim.CategoryID, d.Certified); err != nil {
			return Decision{}, fmt.Errorf("apply category %q: %w", claim.CategoryID, err)
		}
	}
	return d, nil
}

func remainingIf(found bool, b Balance) decimal.Decimal {
	if !found {
		return decimal.Zero
	}
	return b.Remaining()
}
