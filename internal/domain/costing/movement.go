package costing

import (
	"sort"
	"time"

	"github.com/erp/costing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementKind identifies the direction and nature of a stock movement
type MovementKind string

const (
	// MovementKindReceipt is an inbound receipt that opens a new lot
	MovementKindReceipt MovementKind = "RECEIPT"
	// MovementKindIssue is an outbound sale/consumption
	MovementKindIssue MovementKind = "ISSUE"
	// MovementKindWriteOff is an outbound loss (damage, expiry, shrinkage)
	MovementKindWriteOff MovementKind = "WRITE_OFF"
)

// IsValid checks if the movement kind is valid
func (k MovementKind) IsValid() bool {
	switch k {
	case MovementKindReceipt, MovementKindIssue, MovementKindWriteOff:
		return true
	}
	return false
}

// String returns the string representation
func (k MovementKind) String() string {
	return string(k)
}

// IsOutbound returns true for kinds that consume open lots
func (k MovementKind) IsOutbound() bool {
	return k == MovementKindIssue || k == MovementKindWriteOff
}

// Movement is a single row of the append-only movement log. Movements are
// immutable once recorded; the log is the only source of truth for a SKU's
// lot state, which is re-derived by replay on every query.
type Movement struct {
	ID          uuid.UUID       `json:"id"`
	SKU         string          `json:"sku" validate:"required"`
	Date        time.Time       `json:"date" validate:"required"`
	Kind        MovementKind    `json:"kind" validate:"required,oneof=RECEIPT ISSUE WRITE_OFF"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`  // receipts only
	UnitPrice   decimal.Decimal `json:"unit_price"` // issues only
	DocumentRef string          `json:"document_ref"`
	BatchNumber string          `json:"batch_number,omitempty"`
	ExpiryDate  *time.Time      `json:"expiry_date,omitempty"`
	// Seq is the movement's position in the original log. Same-day ties are
	// broken by Seq so that replay never reorders rows recorded on one date.
	Seq int `json:"seq"`
}

// Validate checks the movement for data-quality problems. A non-nil error
// means the row must be skipped during replay, not that replay should abort.
func (m Movement) Validate() error {
	if !m.Kind.IsValid() {
		return shared.NewDomainError("UNSUPPORTED_KIND", "Unsupported movement kind: "+string(m.Kind))
	}
	if m.SKU == "" {
		return shared.NewDomainError("MISSING_SKU", "Movement has no SKU")
	}
	if m.Date.IsZero() {
		return shared.NewDomainError("MISSING_DATE", "Movement has no date")
	}
	if m.Quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("NON_POSITIVE_QUANTITY", "Movement quantity must be positive")
	}
	if m.Kind == MovementKindReceipt && m.UnitCost.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("MISSING_UNIT_COST", "Receipt movement has no unit cost")
	}
	if m.UnitCost.IsNegative() || m.UnitPrice.IsNegative() {
		return shared.NewDomainError("NEGATIVE_AMOUNT", "Movement carries a negative amount")
	}
	return nil
}

// SortMovements sorts movements chronologically in place, breaking same-day
// ties by original log order. The sort is stable so rows without a Seq keep
// their relative order too.
func SortMovements(movements []Movement) {
	sort.SliceStable(movements, func(i, j int) bool {
		di, dj := movements[i].Date, movements[j].Date
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return movements[i].Seq < movements[j].Seq
	})
}
