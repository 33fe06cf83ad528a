package costing

import (
	"sort"
	"time"

	"github.com/erp/costing/internal/domain/shared"
	"github.com/erp/costing/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationPolicyType defines the consumption order for outbound allocation
type AllocationPolicyType string

const (
	// AllocationPolicyFIFO consumes the earliest-received open lot first
	AllocationPolicyFIFO AllocationPolicyType = "FIFO"
	// AllocationPolicyFEFO consumes the soonest-to-expire open lot first
	AllocationPolicyFEFO AllocationPolicyType = "FEFO"
)

// IsValid checks if the policy type is valid
func (t AllocationPolicyType) IsValid() bool {
	switch t {
	case AllocationPolicyFIFO, AllocationPolicyFEFO:
		return true
	}
	return false
}

// String returns the string representation
func (t AllocationPolicyType) String() string {
	return string(t)
}

// AllAllocationPolicyTypes returns all valid allocation policy types
func AllAllocationPolicyTypes() []AllocationPolicyType {
	return []AllocationPolicyType{AllocationPolicyFIFO, AllocationPolicyFEFO}
}

// LotDraw is one line of an allocation plan: the quantity taken from a single
// lot and the cost basis it carries.
type LotDraw struct {
	LotID        uuid.UUID       `json:"lot_id"`
	BatchNumber  string          `json:"batch_number,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	LineCost     decimal.Decimal `json:"line_cost"`
	AgeDays      int             `json:"age_days"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	LotExhausted bool            `json:"lot_exhausted"`
}

// AllocationPlan is the complete result of planning an outbound allocation.
// It is computed without mutating the ledger; the same plan is what Apply
// later executes, so a previewed draw can never diverge from the recorded one.
type AllocationPlan struct {
	Policy              AllocationPolicyType `json:"policy"`
	RequestedQty        decimal.Decimal      `json:"requested_qty"`
	Draws               []LotDraw            `json:"draws"`
	TotalAllocated      decimal.Decimal      `json:"total_allocated"`
	TotalCost           decimal.Decimal      `json:"total_cost"`
	WeightedAverageCost decimal.Decimal      `json:"weighted_average_cost"`
	Shortfall           bool                 `json:"shortfall"`
	ShortfallQty        decimal.Decimal      `json:"shortfall_qty"`
	// ShortfallUnitCost is the queue's weighted-average cost at the moment of
	// the shortfall; the unsatisfiable remainder is charged at this rate, never
	// at zero cost.
	ShortfallUnitCost decimal.Decimal `json:"shortfall_unit_cost"`
	ShortfallCost     decimal.Decimal `json:"shortfall_cost"`
}

// ChargedCost returns the full cost basis of the allocation: the cost of the
// lots actually drawn plus the shortfall remainder charged at average cost.
func (p *AllocationPlan) ChargedCost() decimal.Decimal {
	return p.TotalCost.Add(p.ShortfallCost)
}

// AllocationPolicy plans which lots an outbound quantity is drawn from.
// Plan is side-effect free; applying a plan is the ledger's job.
type AllocationPolicy interface {
	strategy.Strategy
	// PolicyType returns the allocation policy type
	PolicyType() AllocationPolicyType
	// Plan computes the per-lot draw for the requested quantity without
	// mutating the given lots
	Plan(asOf time.Time, requestedQty decimal.Decimal, lots []*Lot) (*AllocationPlan, error)
}

// PolicyFor returns the allocation policy for the given type
func PolicyFor(t AllocationPolicyType) (AllocationPolicy, error) {
	switch t {
	case AllocationPolicyFIFO:
		return NewFIFOAllocationPolicy(), nil
	case AllocationPolicyFEFO:
		return NewFEFOAllocationPolicy(), nil
	default:
		return nil, shared.ErrInvalidPolicy
	}
}

// FIFOAllocationPolicy consumes lots strictly in receipt-date order, with
// same-day ties broken by original insertion order.
type FIFOAllocationPolicy struct {
	strategy.BaseStrategy
}

// NewFIFOAllocationPolicy creates a new FIFO allocation policy
func NewFIFOAllocationPolicy() *FIFOAllocationPolicy {
	return &FIFOAllocationPolicy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fifo_allocation",
			strategy.StrategyTypeAllocation,
			"Oldest received first - consumes lots in receipt date order",
		),
	}
}

// PolicyType returns the allocation policy type
func (s *FIFOAllocationPolicy) PolicyType() AllocationPolicyType {
	return AllocationPolicyFIFO
}

// Plan computes a FIFO draw over the open lots
func (s *FIFOAllocationPolicy) Plan(asOf time.Time, requestedQty decimal.Decimal, lots []*Lot) (*AllocationPlan, error) {
	if requestedQty.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidQuantity
	}

	ordered := openLots(lots)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ReceiptDate.Equal(ordered[j].ReceiptDate) {
			return ordered[i].ReceiptDate.Before(ordered[j].ReceiptDate)
		}
		return ordered[i].seq < ordered[j].seq
	})

	return planDraws(AllocationPolicyFIFO, asOf, requestedQty, ordered), nil
}

// FEFOAllocationPolicy consumes the lot closest to expiry first. Lots without
// an expiry date sort last, by receipt date. The policy works on a re-sorted
// working copy; the canonical receipt-ordered queue is never touched.
type FEFOAllocationPolicy struct {
	strategy.BaseStrategy
}

// NewFEFOAllocationPolicy creates a new FEFO allocation policy
func NewFEFOAllocationPolicy() *FEFOAllocationPolicy {
	return &FEFOAllocationPolicy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fefo_allocation",
			strategy.StrategyTypeAllocation,
			"Soonest to expire first - consumes lots in expiry date order",
		),
	}
}

// PolicyType returns the allocation policy type
func (s *FEFOAllocationPolicy) PolicyType() AllocationPolicyType {
	return AllocationPolicyFEFO
}

// Plan computes a FEFO draw over the open lots
func (s *FEFOAllocationPolicy) Plan(asOf time.Time, requestedQty decimal.Decimal, lots []*Lot) (*AllocationPlan, error) {
	if requestedQty.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidQuantity
	}

	ordered := openLots(lots)
	sort.SliceStable(ordered, func(i, j int) bool {
		ie, je := ordered[i].ExpiryDate, ordered[j].ExpiryDate
		if ie != nil && je != nil {
			if !ie.Equal(*je) {
				return ie.Before(*je)
			}
		} else if ie != nil {
			return true
		} else if je != nil {
			return false
		}
		if !ordered[i].ReceiptDate.Equal(ordered[j].ReceiptDate) {
			return ordered[i].ReceiptDate.Before(ordered[j].ReceiptDate)
		}
		return ordered[i].seq < ordered[j].seq
	})

	return planDraws(AllocationPolicyFEFO, asOf, requestedQty, ordered), nil
}

// openLots returns a working copy holding only lots with remaining quantity
func openLots(lots []*Lot) []*Lot {
	open := make([]*Lot, 0, len(lots))
	for _, lot := range lots {
		if lot.HasStock() {
			open = append(open, lot)
		}
	}
	return open
}

// planDraws walks the ordered lots, taking from each the minimum of its
// remaining quantity and the still-unsatisfied portion of the request.
func planDraws(policy AllocationPolicyType, asOf time.Time, requestedQty decimal.Decimal, ordered []*Lot) *AllocationPlan {
	remaining := requestedQty
	draws := make([]LotDraw, 0)
	totalAllocated := decimal.Zero
	totalCost := decimal.Zero

	for _, lot := range ordered {
		if remaining.IsZero() {
			break
		}

		takeQty := decimal.Min(remaining, lot.RemainingQty)
		lineCost := takeQty.Mul(lot.UnitCost)

		draws = append(draws, LotDraw{
			LotID:        lot.ID,
			BatchNumber:  lot.BatchNumber,
			Quantity:     takeQty,
			UnitCost:     lot.UnitCost,
			LineCost:     lineCost,
			AgeDays:      lot.AgeDays(asOf),
			ExpiryDate:   lot.ExpiryDate,
			LotExhausted: takeQty.Equal(lot.RemainingQty),
		})

		totalAllocated = totalAllocated.Add(takeQty)
		totalCost = totalCost.Add(lineCost)
		remaining = remaining.Sub(takeQty)
	}

	plan := &AllocationPlan{
		Policy:         policy,
		RequestedQty:   requestedQty,
		Draws:          draws,
		TotalAllocated: totalAllocated,
		TotalCost:      totalCost,
		ShortfallQty:   remaining,
		Shortfall:      remaining.GreaterThan(decimal.Zero),
	}

	if totalAllocated.GreaterThan(decimal.Zero) {
		plan.WeightedAverageCost = totalCost.Div(totalAllocated).Round(4)
	}

	if plan.Shortfall {
		plan.ShortfallUnitCost = weightedAverageCost(ordered)
		plan.ShortfallCost = plan.ShortfallQty.Mul(plan.ShortfallUnitCost)
	}

	return plan
}

// weightedAverageCost computes the queue's average cost over open lots
func weightedAverageCost(lots []*Lot) decimal.Decimal {
	totalQty := decimal.Zero
	totalValue := decimal.Zero
	for _, lot := range lots {
		totalQty = totalQty.Add(lot.RemainingQty)
		totalValue = totalValue.Add(lot.TotalValue())
	}
	if totalQty.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return totalValue.Div(totalQty).Round(4)
}
