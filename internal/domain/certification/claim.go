package certification

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Column names every claim file must carry.
const (
	ColumnProject      = "project"
	ColumnCostCategory = "cost_category"
	ColumnCostAmount   = "cost_amount"
	ColumnPO           = "PO"
)

// MissingPlaceholder is stored for identifiers that were blank in the input.
const MissingPlaceholder = "(missing)"

// AmountScale is the number of decimal places amounts are stored with.
const AmountScale = 2

// Column widths of the audit and ledger tables, in characters.
const (
	MaxProjectLength    = 255
	MaxIdentifierLength = 64
	MaxSourceLength     = 512
)

// maxAmountExponent bounds the exponent ParseAmount accepts, so that
// rescaling an input such as 1e999999999 cannot allocate without limit.
const maxAmountExponent = 64

// MaxAmount is the exclusive upper bound of a NUMERIC(18,2) amount.
var MaxAmount = decimal.New(1, 16)

// AmountInRange reports whether d fits the stored amount precision.
func AmountInRange(d decimal.Decimal) bool {
	return d.Abs().LessThan(MaxAmount)
}

// RequiredColumns returns the header set a file needs before any row is read.
func RequiredColumns() []string {
	return []string{ColumnProject, ColumnCostCategory, ColumnCostAmount, ColumnPO}
}

// Claim is a validated claim row.
type Claim struct {
	Project    string
	CategoryID string
	POID       string
	CostAmount decimal.Decimal
}

// ValidationFailure describes a row that could not become a Claim. The
// identifier fields hold what could be salvaged for the audit trail.
type ValidationFailure struct {
	Reason     string
	Project    string
	CategoryID string
	POID       string
}

// ValidationResult holds exactly one of Claim or Failure.
type ValidationResult struct {
	Claim   *Claim
	Failure *ValidationFailure
}

// Valid reports whether the row produced a claim
func (r ValidationResult) Valid() bool {
	return r.Claim != nil
}

// ValidateRow turns a raw row into a Claim or a ValidationFailure. It never
// returns an error: failures are a normal result.
func ValidateRow(fields map[string]string) ValidationResult {
	project := strings.TrimSpace(fields[ColumnProject])
	category := strings.TrimSpace(fields[ColumnCostCategory])
	po := strings.TrimSpace(fields[ColumnPO])

	if project == "" || category == "" || po == "" {
		return ValidationResult{Failure: &ValidationFailure{
			Reason:     "Missing required project/cost_category/PO value",
			Project:    orPlaceholder(project),
			CategoryID: orPlaceholder(category),
			POID:       orPlaceholder(po),
		}}
	}

	if reason := identifierTooLong(project, category, po); reason != "" {
		return ValidationResult{Failure: &ValidationFailure{
			Reason:     reason,
			Project:    project,
			CategoryID: category,
			POID:       po,
		}}
	}

	rawCost := fields[ColumnCostAmount]
	cost, err := ParseAmount(rawCost)
	if err != nil {
		return ValidationResult{Failure: &ValidationFailure{
			Reason:     fmt.Sprintf("Invalid cost_amount value: %s", rawCost),
			Project:    project,
			CategoryID: category,
			POID:       po,
		}}
	}
	if cost.IsNegative() {
		return ValidationResult{Failure: &ValidationFailure{
			Reason:     "cost_amount cannot be negative",
			Project:    project,
			CategoryID: category,
			POID:       po,
		}}
	}

	cost = cost.Round(AmountScale)
	if !AmountInRange(cost) {
		return ValidationResult{Failure: &ValidationFailure{
			Reason:     fmt.Sprintf("cost_amount out of range: %s", strings.TrimSpace(rawCost)),
			Project:    project,
			CategoryID: category,
			POID:       po,
		}}
	}

	return ValidationResult{Claim: &Claim{
		Project:    project,
		CategoryID: category,
		POID:       po,
		CostAmount: cost,
	}}
}

func identifierTooLong(project, category, po string) string {
	var long []string
	if utf8.RuneCountInString(project) > MaxProjectLength {
		long = append(long, fmt.Sprintf("project exceeds %d characters", MaxProjectLength))
	}
	if utf8.RuneCountInString(category) > MaxIdentifierLength {
		long = append(long, fmt.Sprintf("cost_category exceeds %d characters", MaxIdentifierLength))
	}
	if utf8.RuneCountInString(po) > MaxIdentifierLength {
		long = append(long, fmt.Sprintf("PO exceeds %d characters", MaxIdentifierLength))
	}
	return strings.Join(long, "; ")
}

// ParseAmount parses a monetary amount. Surrounding whitespace is ignored.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if exp := d.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return decimal.Zero, fmt.Errorf("amount exponent %d out of range", exp)
	}
	return d, nil
}

// RawFields is the best-effort extraction stored on the raw record. Fields
// that are blank, malformed or wider than their column are nil.
type RawFields struct {
	Project      *string
	CostCategory *string
	PO           *string
	CostAmount   decimal.NullDecimal
}

// ExtractRawFields pulls whatever can be read from a row without validating it.
func ExtractRawFields(fields map[string]string) RawFields {
	var out RawFields
	out.Project = fittingOrNil(fields[ColumnProject], MaxProjectLength)
	out.CostCategory = fittingOrNil(fields[ColumnCostCategory], MaxIdentifierLength)
	out.PO = fittingOrNil(fields[ColumnPO], MaxIdentifierLength)
	if amount, err := ParseAmount(fields[ColumnCostAmount]); err == nil {
		if amount = amount.Round(AmountScale); AmountInRange(amount) {
			out.CostAmount = decimal.NewNullDecimal(amount)
		}
	}
	return out
}

func orPlaceholder(s string) string {
	if s == "" {
		return MissingPlaceholder
	}
	return s
}

func fittingOrNil(s string, width int) *string {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > width {
		return nil
	}
	return &s
}

// clip shortens s to at most width characters.
func clip(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	return string([]rune(s)[:width])
}
