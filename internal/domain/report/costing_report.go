package report

import (
	"time"

	"github.com/erp/costing/internal/domain/costing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AgingBucket groups open lots by days on hand
type AgingBucket string

const (
	AgingBucket0To30  AgingBucket = "0-30"
	AgingBucket31To60 AgingBucket = "31-60"
	AgingBucket61To90 AgingBucket = "61-90"
	AgingBucket90Plus AgingBucket = "90+"
)

// BucketForAge returns the aging bucket for a lot age in days
func BucketForAge(days int) AgingBucket {
	switch {
	case days <= 30:
		return AgingBucket0To30
	case days <= 60:
		return AgingBucket31To60
	case days <= 90:
		return AgingBucket61To90
	default:
		return AgingBucket90Plus
	}
}

// LotAgingRow is one open lot placed into an aging bucket
type LotAgingRow struct {
	LotID       uuid.UUID       `json:"lot_id"`
	BatchNumber string          `json:"batch_number,omitempty"`
	ReceiptDate time.Time       `json:"receipt_date"`
	Quantity    decimal.Decimal `json:"quantity"`
	Value       decimal.Decimal `json:"value"`
	AgeDays     int             `json:"age_days"`
	Bucket      AgingBucket     `json:"aging_bucket"`
}

// SKUAgingReport is the per-SKU aging/deadstock read model derived from a
// valuation snapshot
type SKUAgingReport struct {
	SKU        string          `json:"sku"`
	AsOf       time.Time       `json:"as_of"`
	Rows       []LotAgingRow   `json:"rows"`
	TotalStock decimal.Decimal `json:"total_stock"`
	TotalValue decimal.Decimal `json:"total_value"`
	MaxAgeDays int             `json:"max_age_days"`
	// Deadstock mirrors the valuation's aging flag: the oldest open lot has
	// been on hand beyond the configured threshold
	Deadstock bool `json:"deadstock"`
}

// BuildAgingReport derives the aging report from a valuation snapshot
func BuildAgingReport(v costing.Valuation) SKUAgingReport {
	rows := make([]LotAgingRow, 0, len(v.Lots))
	for _, lot := range v.Lots {
		rows = append(rows, LotAgingRow{
			LotID:       lot.LotID,
			BatchNumber: lot.BatchNumber,
			ReceiptDate: lot.ReceiptDate,
			Quantity:    lot.RemainingQty,
			Value:       lot.Value,
			AgeDays:     lot.AgeDays,
			Bucket:      BucketForAge(lot.AgeDays),
		})
	}

	return SKUAgingReport{
		SKU:        v.SKU,
		AsOf:       v.AsOf,
		Rows:       rows,
		TotalStock: v.TotalStock,
		TotalValue: v.TotalValue,
		MaxAgeDays: v.MaxAgeDays,
		Deadstock:  v.Aging,
	}
}
