package costing

import (
	"context"
	"testing"
	"time"

	domain "github.com/erp/costing/internal/domain/costing"
	"github.com/erp/costing/internal/domain/shared"
	"github.com/erp/costing/internal/infrastructure/eventsource/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T, movements ...domain.Movement) *Service {
	t.Helper()
	source := memory.NewMovementSource()
	source.AppendAll(movements...)
	return NewService(ServiceConfig{Source: source})
}

func receipt(sku string, date time.Time, qty, unitCost float64) domain.Movement {
	return domain.Movement{
		SKU:      sku,
		Date:     date,
		Kind:     domain.MovementKindReceipt,
		Quantity: decimal.NewFromFloat(qty),
		UnitCost: decimal.NewFromFloat(unitCost),
	}
}

func issue(sku string, date time.Time, qty, unitPrice float64) domain.Movement {
	return domain.Movement{
		SKU:       sku,
		Date:      date,
		Kind:      domain.MovementKindIssue,
		Quantity:  decimal.NewFromFloat(qty),
		UnitPrice: decimal.NewFromFloat(unitPrice),
	}
}

func TestServiceValuation(t *testing.T) {
	ctx := context.Background()

	t.Run("values stock from replayed history", func(t *testing.T) {
		svc := newTestService(t,
			receipt("SKU-001", day(1), 100, 10),
			issue("SKU-001", day(5), 30, 25),
		)

		v, err := svc.Valuation(ctx, "SKU-001", day(10))
		require.NoError(t, err)

		assert.True(t, v.TotalStock.Equal(decimal.NewFromInt(70)))
		assert.True(t, v.TotalValue.Equal(decimal.NewFromInt(700)))
		assert.True(t, v.WeightedAverageCost.Equal(decimal.NewFromInt(10)))
	})

	t.Run("unknown SKU is not found, not zero stock", func(t *testing.T) {
		svc := newTestService(t)

		_, err := svc.Valuation(ctx, "MISSING", day(1))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestServiceAllocate(t *testing.T) {
	ctx := context.Background()

	history := func() []domain.Movement {
		return []domain.Movement{
			receipt("SKU-001", day(1), 10, 1),
			receipt("SKU-001", day(2), 10, 2),
		}
	}

	t.Run("preview does not consume stock", func(t *testing.T) {
		svc := newTestService(t, history()...)

		preview, err := svc.Allocate(ctx, AllocationRequest{
			SKU:      "SKU-001",
			Quantity: decimal.NewFromInt(15),
			Policy:   "FIFO",
			AsOf:     day(3),
		})
		require.NoError(t, err)

		assert.True(t, preview.CurrentStock.Equal(decimal.NewFromInt(20)))
		assert.True(t, preview.RemainingStock.Equal(decimal.NewFromInt(5)))
		assert.True(t, preview.Plan.TotalCost.Equal(decimal.NewFromInt(20)))
		assert.False(t, preview.Shortfall)

		// the source holds no applied movement, so a fresh preview sees the
		// same stock again
		again, err := svc.Allocate(ctx, AllocationRequest{
			SKU:      "SKU-001",
			Quantity: decimal.NewFromInt(15),
			Policy:   "FIFO",
			AsOf:     day(3),
		})
		require.NoError(t, err)
		assert.True(t, again.CurrentStock.Equal(decimal.NewFromInt(20)))
	})

	t.Run("shortfall is flagged, not an error", func(t *testing.T) {
		svc := newTestService(t, receipt("SKU-001", day(1), 10, 10))

		preview, err := svc.Allocate(ctx, AllocationRequest{
			SKU:      "SKU-001",
			Quantity: decimal.NewFromInt(100),
			Policy:   "FIFO",
			AsOf:     day(2),
		})
		require.NoError(t, err)

		assert.True(t, preview.Shortfall)
		assert.True(t, preview.Plan.ShortfallQty.Equal(decimal.NewFromInt(90)))
		assert.True(t, preview.Plan.ShortfallUnitCost.Equal(decimal.NewFromInt(10)))
		assert.True(t, preview.RemainingStock.IsZero())
	})

	t.Run("FEFO draws the sooner-expiring lot", func(t *testing.T) {
		expiring := receipt("SKU-001", day(5), 10, 2)
		exp := day(10)
		expiring.ExpiryDate = &exp

		svc := newTestService(t, receipt("SKU-001", day(1), 10, 1), expiring)

		preview, err := svc.Allocate(ctx, AllocationRequest{
			SKU:      "SKU-001",
			Quantity: decimal.NewFromInt(5),
			Policy:   "FEFO",
			AsOf:     day(6),
		})
		require.NoError(t, err)

		require.Len(t, preview.Plan.Draws, 1)
		assert.True(t, preview.Plan.Draws[0].UnitCost.Equal(decimal.NewFromInt(2)))
	})

	t.Run("rejects invalid requests", func(t *testing.T) {
		svc := newTestService(t, history()...)

		tests := []struct {
			name string
			req  AllocationRequest
		}{
			{"missing sku", AllocationRequest{Quantity: decimal.NewFromInt(1), Policy: "FIFO", AsOf: day(1)}},
			{"unknown policy", AllocationRequest{SKU: "SKU-001", Quantity: decimal.NewFromInt(1), Policy: "LIFO", AsOf: day(1)}},
			{"missing as-of date", AllocationRequest{SKU: "SKU-001", Quantity: decimal.NewFromInt(1), Policy: "FIFO"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.Allocate(ctx, tt.req)
				assert.Error(t, err)
			})
		}
	})

	t.Run("non-positive quantity is rejected by the policy", func(t *testing.T) {
		svc := newTestService(t, history()...)

		_, err := svc.Allocate(ctx, AllocationRequest{
			SKU:      "SKU-001",
			Quantity: decimal.NewFromInt(-5),
			Policy:   "FIFO",
			AsOf:     day(1),
		})
		assert.Error(t, err)
	})
}

func TestServiceProfitHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("one record per outbound movement", func(t *testing.T) {
		svc := newTestService(t,
			receipt("SKU-001", day(1), 100, 10),
			issue("SKU-001", day(5), 30, 25),
		)

		records, err := svc.ProfitHistory(ctx, "SKU-001")
		require.NoError(t, err)

		require.Len(t, records, 1)
		assert.True(t, records[0].COGS.Equal(decimal.NewFromInt(300)))
		assert.True(t, records[0].Profit.Equal(decimal.NewFromInt(450)))
		assert.True(t, records[0].MarginPercent.Equal(decimal.NewFromInt(60)))
	})

	t.Run("all SKUs keyed by SKU", func(t *testing.T) {
		svc := newTestService(t,
			receipt("SKU-A", day(1), 10, 1),
			issue("SKU-A", day(2), 5, 3),
			receipt("SKU-B", day(1), 10, 2),
		)

		all, err := svc.ProfitHistoryAll(ctx)
		require.NoError(t, err)

		require.Len(t, all, 2)
		assert.Len(t, all["SKU-A"], 1)
		assert.Empty(t, all["SKU-B"])
	})
}

func TestServiceForecast(t *testing.T) {
	ctx := context.Background()

	t.Run("burn rate from trailing issue volume", func(t *testing.T) {
		asOf := day(10)
		movements := []domain.Movement{receipt("SKU-001", day(1), 64, 2)}
		// 5 units on each of days 4..10 except days 6 and 9: 25 over the
		// 7-day window ending at asOf
		for _, d := range []int{4, 5, 7, 8, 10} {
			movements = append(movements, issue("SKU-001", day(d), 5, 4))
		}
		svc := newTestService(t, movements...)

		f, err := svc.Forecast(ctx, "SKU-001", asOf)
		require.NoError(t, err)

		assert.True(t, f.BurnRate.Round(2).Equal(decimal.RequireFromString("3.57")),
			"got %s", f.BurnRate)
		// 39 left at 25/7 per day
		assert.True(t, f.DaysRemaining.Round(2).Equal(decimal.RequireFromString("10.92")),
			"got %s", f.DaysRemaining)
		assert.Equal(t, domain.RiskTierHigh, f.RiskTier)
		assert.False(t, f.NoConsumption)
	})

	t.Run("issues outside the window are ignored", func(t *testing.T) {
		svc := newTestService(t,
			receipt("SKU-001", day(1), 100, 2),
			issue("SKU-001", day(2), 50, 4),
		)

		f, err := svc.Forecast(ctx, "SKU-001", day(30))
		require.NoError(t, err)

		assert.True(t, f.BurnRate.IsZero())
		assert.True(t, f.NoConsumption)
		assert.Equal(t, domain.RiskTierLow, f.RiskTier)
	})

	t.Run("write-offs do not count as demand", func(t *testing.T) {
		writeOff := domain.Movement{
			SKU:      "SKU-001",
			Date:     day(9),
			Kind:     domain.MovementKindWriteOff,
			Quantity: decimal.NewFromInt(20),
		}
		svc := newTestService(t, receipt("SKU-001", day(1), 100, 2), writeOff)

		f, err := svc.Forecast(ctx, "SKU-001", day(10))
		require.NoError(t, err)

		assert.True(t, f.BurnRate.IsZero())
		assert.True(t, f.NoConsumption)
	})
}

func TestServiceAgingReport(t *testing.T) {
	ctx := context.Background()

	t.Run("flags deadstock past the configured threshold", func(t *testing.T) {
		source := memory.NewMovementSource()
		source.Append(receipt("SKU-001", day(1), 10, 2))
		svc := NewService(ServiceConfig{Source: source, AgingThresholdDays: 30})

		rep, err := svc.AgingReport(ctx, "SKU-001", day(1).AddDate(0, 0, 45))
		require.NoError(t, err)

		assert.True(t, rep.Deadstock)
		require.Len(t, rep.Rows, 1)
		assert.Equal(t, 45, rep.Rows[0].AgeDays)
	})
}
