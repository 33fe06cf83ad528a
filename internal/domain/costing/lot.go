package costing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lot is a quantity of one SKU received together at a single unit cost.
// A lot is created by exactly one receipt movement and is owned exclusively
// by its SKU's ledger; remaining quantity only ever decreases.
type Lot struct {
	ID           uuid.UUID       `json:"id"`
	SKU          string          `json:"sku"`
	BatchNumber  string          `json:"batch_number,omitempty"`
	ReceiptDate  time.Time       `json:"receipt_date"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	OriginalQty  decimal.Decimal `json:"original_qty"`
	RemainingQty decimal.Decimal `json:"remaining_qty"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	ReceiptRef   string          `json:"receipt_ref"`

	// seq preserves insertion order for same-day receipts
	seq int
}

// NewLotFromReceipt opens a new lot for a validated receipt movement
func NewLotFromReceipt(m Movement, seq int) *Lot {
	id := m.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Lot{
		ID:           id,
		SKU:          m.SKU,
		BatchNumber:  m.BatchNumber,
		ReceiptDate:  m.Date,
		ExpiryDate:   m.ExpiryDate,
		OriginalQty:  m.Quantity,
		RemainingQty: m.Quantity,
		UnitCost:     m.UnitCost,
		ReceiptRef:   m.DocumentRef,
		seq:          seq,
	}
}

// Deduct reduces the remaining quantity, capped at what the lot holds.
// Returns the quantity actually deducted.
func (l *Lot) Deduct(quantity decimal.Decimal) decimal.Decimal {
	if quantity.GreaterThan(l.RemainingQty) {
		deducted := l.RemainingQty
		l.RemainingQty = decimal.Zero
		return deducted
	}
	l.RemainingQty = l.RemainingQty.Sub(quantity)
	return quantity
}

// HasStock returns true if the lot still holds quantity
func (l *Lot) HasStock() bool {
	return l.RemainingQty.GreaterThan(decimal.Zero)
}

// TotalValue returns remaining quantity times unit cost
func (l *Lot) TotalValue() decimal.Decimal {
	return l.RemainingQty.Mul(l.UnitCost)
}

// AgeDays returns the lot's age in whole days relative to the given as-of date
func (l *Lot) AgeDays(asOf time.Time) int {
	if asOf.Before(l.ReceiptDate) {
		return 0
	}
	return int(asOf.Sub(l.ReceiptDate).Hours() / 24)
}

// DaysUntilExpiry returns whole days until expiry relative to asOf, -1 if the
// lot has no expiry date. Already-expired lots return a negative count.
func (l *Lot) DaysUntilExpiry(asOf time.Time) int {
	if l.ExpiryDate == nil {
		return -1
	}
	return int(l.ExpiryDate.Sub(asOf).Hours() / 24)
}

// clone returns an independent copy used for dry-run working sets
func (l *Lot) clone() *Lot {
	c := *l
	return &c
}
