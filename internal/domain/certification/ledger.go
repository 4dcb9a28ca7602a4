package certification

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is a locked snapshot of one ledger entry.
type Balance struct {
	Limit   decimal.Decimal
	Claimed decimal.Decimal
}

// Remaining returns max(limit - claimed, 0)
func (b Balance) Remaining() decimal.Decimal {
	r := b.Limit.Sub(b.Claimed)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// POLimit is an entry of the purchase-order ledger.
type POLimit struct {
	PO           string          `gorm:"column:po;type:varchar(64);primaryKey"`
	POValue      decimal.Decimal `gorm:"column:po_value;type:decimal(18,2);not null"`
	TotalClaimed decimal.Decimal `gorm:"column:total_claimed;type:decimal(18,2);not null;default:0"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;not null"`
}

// TableName returns the table name for GORM
func (POLimit) TableName() string {
	return "po_limits"
}

func (p POLimit) Balance() Balance {
	return Balance{Limit: p.POValue, Claimed: p.TotalClaimed}
}

// Remaining returns the value still available on the PO
func (p POLimit) Remaining() decimal.Decimal {
	return p.Balance().Remaining()
}

// CategoryLimit is an entry of the cost-category ledger.
type CategoryLimit struct {
	CategoryID    string          `gorm:"column:category_id;type:varchar(64);primaryKey"`
	CategoryLimit decimal.Decimal `gorm:"column:category_limit;type:decimal(18,2);not null"`
	TotalClaimed  decimal.Decimal `gorm:"column:total_claimed;type:decimal(18,2);not null;default:0"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;not null"`
}

// TableName returns the table name for GORM
func (CategoryLimit) TableName() string {
	return "category_limits"
}

func (c CategoryLimit) Balance() Balance {
	return Balance{Limit: c.CategoryLimit, Claimed: c.TotalClaimed}
}

// Remaining returns the limit still available on the category
func (c CategoryLimit) Remaining() decimal.Decimal {
	return c.Balance().Remaining()
}
