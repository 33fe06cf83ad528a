package costing

import (
	"time"

	"github.com/erp/costing/internal/domain/costing"
	"github.com/shopspring/decimal"
)

// AllocationRequest asks for an outbound quantity to be allocated across a
// SKU's open lots. Apply selects between a side-effect-free preview and the
// applied consumption step; both run the exact same allocation path.
type AllocationRequest struct {
	SKU      string          `json:"sku" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
	Policy   string          `json:"policy" validate:"required,oneof=FIFO FEFO"`
	AsOf     time.Time       `json:"as_of" validate:"required"`
	Apply    bool            `json:"apply"`
}

// AllocationPreview is what an operator sees before committing an outbound
// transaction: current stock, the exact per-lot draw, and the shortfall flag.
type AllocationPreview struct {
	SKU            string                  `json:"sku"`
	CurrentStock   decimal.Decimal         `json:"current_stock"`
	Plan           *costing.AllocationPlan `json:"plan"`
	RemainingStock decimal.Decimal         `json:"remaining_stock"`
	Shortfall      bool                    `json:"shortfall"`
	// SkippedMovements counts malformed history rows that replay passed over
	// while reconstructing the ledger for this preview
	SkippedMovements int `json:"skipped_movements"`
}
