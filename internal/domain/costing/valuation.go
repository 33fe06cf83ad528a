package costing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultAgingThresholdDays flags stock as aging once the oldest open lot
// exceeds this many days on hand.
const DefaultAgingThresholdDays = 90

// LotValuation is the valuation of a single open lot as of a given date
type LotValuation struct {
	LotID        uuid.UUID       `json:"lot_id"`
	BatchNumber  string          `json:"batch_number,omitempty"`
	ReceiptDate  time.Time       `json:"receipt_date"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	RemainingQty decimal.Decimal `json:"remaining_qty"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Value        decimal.Decimal `json:"value"`
	AgeDays      int             `json:"age_days"`
}

// Valuation is the point-in-time value of a SKU's open lots. It is derived
// from a ledger snapshot and never persisted.
type Valuation struct {
	SKU                 string          `json:"sku"`
	AsOf                time.Time       `json:"as_of"`
	TotalStock          decimal.Decimal `json:"total_stock"`
	TotalValue          decimal.Decimal `json:"total_value"`
	WeightedAverageCost decimal.Decimal `json:"weighted_average_cost"`
	Lots                []LotValuation  `json:"lots"`
	MaxAgeDays          int             `json:"max_age_days"`
	Aging               bool            `json:"aging"`
}

// Valuate computes the valuation of a ledger snapshot with the default
// aging threshold.
func Valuate(ledger *Ledger, asOf time.Time) Valuation {
	return ValuateWithThreshold(ledger, asOf, DefaultAgingThresholdDays)
}

// ValuateWithThreshold computes the valuation of a ledger snapshot, flagging
// the SKU as aging when the oldest open lot exceeds agingThresholdDays.
func ValuateWithThreshold(ledger *Ledger, asOf time.Time, agingThresholdDays int) Valuation {
	open := ledger.OpenLots()

	v := Valuation{
		SKU:  ledger.SKU(),
		AsOf: asOf,
		Lots: make([]LotValuation, 0, len(open)),
	}

	totalStock := decimal.Zero
	totalValue := decimal.Zero
	for _, lot := range open {
		age := lot.AgeDays(asOf)
		if age > v.MaxAgeDays {
			v.MaxAgeDays = age
		}
		value := lot.TotalValue().Round(2)
		v.Lots = append(v.Lots, LotValuation{
			LotID:        lot.ID,
			BatchNumber:  lot.BatchNumber,
			ReceiptDate:  lot.ReceiptDate,
			ExpiryDate:   lot.ExpiryDate,
			RemainingQty: lot.RemainingQty,
			UnitCost:     lot.UnitCost,
			Value:        value,
			AgeDays:      age,
		})
		totalStock = totalStock.Add(lot.RemainingQty)
		totalValue = totalValue.Add(lot.TotalValue())
	}

	v.TotalStock = totalStock
	v.TotalValue = totalValue.Round(2)
	if totalStock.GreaterThan(decimal.Zero) {
		v.WeightedAverageCost = totalValue.Div(totalStock).Round(4)
	} else {
		v.WeightedAverageCost = decimal.Zero
	}
	v.Aging = v.MaxAgeDays > agingThresholdDays

	return v
}
