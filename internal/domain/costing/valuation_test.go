package costing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuate(t *testing.T) {
	t.Run("values open lots as of a date", func(t *testing.T) {
		ledger, err := BuildLedger("SKU-001", []Movement{
			receiptOn(day(1), 100, 10),
			issueOn(day(5), 30, 25),
		}, AllocationPolicyFIFO)
		require.NoError(t, err)

		v := Valuate(ledger, day(10))

		assert.Equal(t, "SKU-001", v.SKU)
		assert.True(t, v.TotalStock.Equal(decimal.NewFromInt(70)))
		assert.True(t, v.TotalValue.Equal(decimal.NewFromInt(700)))
		// issues do not reprice the remaining stock
		assert.True(t, v.WeightedAverageCost.Equal(decimal.NewFromInt(10)))
		require.Len(t, v.Lots, 1)
		assert.Equal(t, 9, v.Lots[0].AgeDays)
		assert.Equal(t, 9, v.MaxAgeDays)
		assert.False(t, v.Aging)
	})

	t.Run("weighted average blends lot costs", func(t *testing.T) {
		ledger, err := BuildLedger("SKU-001", []Movement{
			receiptOn(day(1), 3, 1),
			receiptOn(day(2), 4, 2),
		}, AllocationPolicyFIFO)
		require.NoError(t, err)

		v := Valuate(ledger, day(3))

		assert.True(t, v.WeightedAverageCost.Equal(decimal.RequireFromString("1.5714")),
			"got %s", v.WeightedAverageCost)
	})

	t.Run("empty ledger values to zero", func(t *testing.T) {
		v := Valuate(NewLedger("SKU-001"), day(1))

		assert.True(t, v.TotalStock.IsZero())
		assert.True(t, v.TotalValue.IsZero())
		assert.True(t, v.WeightedAverageCost.IsZero())
		assert.Empty(t, v.Lots)
		assert.False(t, v.Aging)
	})

	t.Run("aging flag trips past the threshold", func(t *testing.T) {
		ledger, err := BuildLedger("SKU-001", []Movement{
			receiptOn(day(1), 10, 2),
		}, AllocationPolicyFIFO)
		require.NoError(t, err)

		assert.False(t, ValuateWithThreshold(ledger, day(1).AddDate(0, 0, 90), 90).Aging)
		assert.True(t, ValuateWithThreshold(ledger, day(1).AddDate(0, 0, 91), 90).Aging)
	})

	t.Run("fractional quantities round money to cents", func(t *testing.T) {
		ledger, err := BuildLedger("SKU-001", []Movement{
			receiptOn(day(1), 3.333, 1.99),
		}, AllocationPolicyFIFO)
		require.NoError(t, err)

		v := Valuate(ledger, day(2))

		// 3.333 * 1.99 = 6.63267
		assert.True(t, v.TotalValue.Equal(decimal.RequireFromString("6.63")), "got %s", v.TotalValue)
	})
}
