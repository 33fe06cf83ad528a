package costing

import (
	"github.com/erp/costing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SkippedMovement records a malformed movement that replay passed over. One
// bad historical row must not zero out the rest of a SKU's ledger.
type SkippedMovement struct {
	Movement Movement `json:"movement"`
	Reason   string   `json:"reason"`
}

// ReplayObserver is called once per applied outbound movement with the plan
// that was consumed at that point of the replay.
type ReplayObserver func(m Movement, plan *AllocationPlan)

// Ledger is the per-SKU queue of open lots, reconstructed from the movement
// log. Canonical order is receipt order; expiry-ordered views are working
// copies taken by the FEFO policy. The ledger holds no state between replay
// invocations and is discarded after use.
type Ledger struct {
	sku      string
	lots     []*Lot
	received decimal.Decimal
	deducted decimal.Decimal
	skipped  []SkippedMovement
	// shortfalls counts applied outbound movements that could not be fully
	// covered by open lots
	shortfalls int
	nextSeq    int
}

// NewLedger creates an empty ledger for a SKU
func NewLedger(sku string) *Ledger {
	return &Ledger{
		sku:      sku,
		lots:     make([]*Lot, 0),
		received: decimal.Zero,
		deducted: decimal.Zero,
		skipped:  make([]SkippedMovement, 0),
	}
}

// SKU returns the SKU this ledger belongs to
func (l *Ledger) SKU() string {
	return l.sku
}

// OpenLots returns the open lots in canonical receipt order. The slice is a
// copy; the lots themselves stay owned by the ledger.
func (l *Ledger) OpenLots() []*Lot {
	open := make([]*Lot, 0, len(l.lots))
	for _, lot := range l.lots {
		if lot.HasStock() {
			open = append(open, lot)
		}
	}
	return open
}

// TotalStock returns the sum of remaining quantities across open lots
func (l *Ledger) TotalStock() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		total = total.Add(lot.RemainingQty)
	}
	return total
}

// TotalValue returns the sum of remaining quantity times unit cost per lot
func (l *Ledger) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		total = total.Add(lot.TotalValue())
	}
	return total
}

// WeightedAverageCost returns total value over total stock, zero when empty
func (l *Ledger) WeightedAverageCost() decimal.Decimal {
	return weightedAverageCost(l.lots)
}

// Skipped returns the malformed movements replay passed over
func (l *Ledger) Skipped() []SkippedMovement {
	return l.skipped
}

// Shortfalls returns how many applied outbound movements hit a shortfall
func (l *Ledger) Shortfalls() int {
	return l.shortfalls
}

// Allocate plans an outbound draw against the current queue and, when apply
// is true, executes it. Preview and commit share this single path so the plan
// an operator is shown is exactly what gets deducted.
func (l *Ledger) Allocate(m Movement, policyType AllocationPolicyType, apply bool) (*AllocationPlan, error) {
	policy, err := PolicyFor(policyType)
	if err != nil {
		return nil, err
	}

	plan, err := policy.Plan(m.Date, m.Quantity, l.lots)
	if err != nil {
		return nil, err
	}

	if apply {
		if err := l.Apply(plan); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// Apply executes a previously computed allocation plan, deducting each draw
// from its lot and dropping lots whose remaining quantity reaches zero.
func (l *Ledger) Apply(plan *AllocationPlan) error {
	if plan == nil {
		return shared.NewDomainError("INVALID_PLAN", "Allocation plan cannot be nil")
	}

	byID := make(map[uuid.UUID]*Lot, len(l.lots))
	for _, lot := range l.lots {
		byID[lot.ID] = lot
	}

	for _, draw := range plan.Draws {
		lot, ok := byID[draw.LotID]
		if !ok {
			return shared.NewDomainError("LOT_NOT_FOUND", "Planned lot is not in the ledger: "+draw.LotID.String())
		}
		deducted := lot.Deduct(draw.Quantity)
		if !deducted.Equal(draw.Quantity) {
			return shared.NewDomainError("DEDUCTION_MISMATCH", "Planned draw exceeds lot remaining quantity")
		}
		l.deducted = l.deducted.Add(deducted)
	}

	if plan.Shortfall {
		l.shortfalls++
	}

	l.dropExhausted()
	return l.checkInvariant()
}

// receive opens a new lot at the back of the canonical queue
func (l *Ledger) receive(m Movement) {
	lot := NewLotFromReceipt(m, l.nextSeq)
	l.nextSeq++
	l.lots = append(l.lots, lot)
	l.received = l.received.Add(m.Quantity)
}

// dropExhausted removes lots with zero remaining quantity from the queue
func (l *Ledger) dropExhausted() {
	open := l.lots[:0]
	for _, lot := range l.lots {
		if lot.HasStock() {
			open = append(open, lot)
		}
	}
	l.lots = open
}

// checkInvariant verifies the ledger's accounting identity: the sum of open
// remaining quantities equals total received minus total deducted, no lot is
// negative, and canonical order is non-decreasing by receipt date.
func (l *Ledger) checkInvariant() error {
	sum := decimal.Zero
	for i, lot := range l.lots {
		if lot.RemainingQty.IsNegative() {
			return shared.ErrLedgerInvariant
		}
		if i > 0 && lot.ReceiptDate.Before(l.lots[i-1].ReceiptDate) {
			return shared.ErrLedgerInvariant
		}
		sum = sum.Add(lot.RemainingQty)
	}
	if !sum.Equal(l.received.Sub(l.deducted)) {
		return shared.ErrLedgerInvariant
	}
	return nil
}

// BuildLedger replays a SKU's complete movement history into the final queue
// of open lots. Outbound movements are consumed with the given policy.
// Malformed movements are skipped and recorded, never aborting the replay.
func BuildLedger(sku string, movements []Movement, policyType AllocationPolicyType) (*Ledger, error) {
	return ReplayLedger(sku, movements, policyType, nil)
}

// ReplayLedger is BuildLedger with an observer invoked for every applied
// outbound movement, carrying the plan consumed at that point of the replay.
func ReplayLedger(sku string, movements []Movement, policyType AllocationPolicyType, observer ReplayObserver) (*Ledger, error) {
	if !policyType.IsValid() {
		return nil, shared.ErrInvalidPolicy
	}

	history := make([]Movement, len(movements))
	copy(history, movements)
	SortMovements(history)

	ledger := NewLedger(sku)
	for _, m := range history {
		if err := m.Validate(); err != nil {
			ledger.skipped = append(ledger.skipped, SkippedMovement{Movement: m, Reason: err.Error()})
			continue
		}

		switch m.Kind {
		case MovementKindReceipt:
			ledger.receive(m)
			if err := ledger.checkInvariant(); err != nil {
				return nil, err
			}
		case MovementKindIssue, MovementKindWriteOff:
			plan, err := ledger.Allocate(m, policyType, true)
			if err != nil {
				return nil, err
			}
			if observer != nil {
				observer(m, plan)
			}
		}
	}
	return ledger, nil
}
