package costing

import (
	"github.com/shopspring/decimal"
)

// ProfitRecord is the realized cost and profit of one outbound movement,
// costed with the lots consumed at that point of the replay. Records are
// derived, never stored; recomputing from the same history yields identical
// records, which is what makes them auditable.
type ProfitRecord struct {
	Movement Movement        `json:"movement"`
	Quantity decimal.Decimal `json:"quantity"`
	// Revenue is quantity times unit price for issues; write-offs have none
	Revenue       decimal.Decimal `json:"revenue"`
	COGS          decimal.Decimal `json:"cogs"`
	Profit        decimal.Decimal `json:"profit"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
	Shortfall     bool            `json:"shortfall"`
	// WriteOff separates damage/loss write-offs from sales so callers can
	// aggregate them apart
	WriteOff bool `json:"write_off"`
}

// ReplayProfit replays a SKU's full movement history from empty state with
// the oldest-first policy and emits one profit record per outbound movement.
// A sale in an earlier period is costed with that period's consumed lots,
// never with hindsight from today's averages.
func ReplayProfit(sku string, movements []Movement) ([]ProfitRecord, *Ledger, error) {
	records := make([]ProfitRecord, 0)

	ledger, err := ReplayLedger(sku, movements, AllocationPolicyFIFO, func(m Movement, plan *AllocationPlan) {
		records = append(records, newProfitRecord(m, plan))
	})
	if err != nil {
		return nil, nil, err
	}
	return records, ledger, nil
}

// newProfitRecord derives the cost/profit line for one applied outbound plan
func newProfitRecord(m Movement, plan *AllocationPlan) ProfitRecord {
	cogs := plan.ChargedCost().Round(2)

	rec := ProfitRecord{
		Movement:  m,
		Quantity:  m.Quantity,
		COGS:      cogs,
		Shortfall: plan.Shortfall,
		WriteOff:  m.Kind == MovementKindWriteOff,
	}

	if m.Kind == MovementKindIssue {
		rec.Revenue = m.Quantity.Mul(m.UnitPrice).Round(2)
	} else {
		rec.Revenue = decimal.Zero
	}

	rec.Profit = rec.Revenue.Sub(rec.COGS)
	if rec.Revenue.GreaterThan(decimal.Zero) {
		rec.MarginPercent = rec.Profit.Div(rec.Revenue).Mul(decimal.NewFromInt(100)).Round(2)
	} else {
		rec.MarginPercent = decimal.Zero
	}

	return rec
}
