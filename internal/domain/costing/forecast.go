package costing

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskTier classifies how urgently a projected stockout needs attention
type RiskTier string

const (
	RiskTierCritical RiskTier = "CRITICAL"
	RiskTierHigh     RiskTier = "HIGH"
	RiskTierLow      RiskTier = "LOW"
)

// Tier boundaries are exclusive of the next tier: exactly 14 days remaining
// is LOW, not HIGH.
var (
	riskCriticalBelowDays = decimal.NewFromInt(7)
	riskHighBelowDays     = decimal.NewFromInt(14)
)

// StockoutDaysCap is the sentinel for "no projected stockout". Days remaining
// is capped here instead of carrying an unrepresentable infinity.
const StockoutDaysCap = 9999

// ForecastConfig controls the burn rate window. These are policy knobs, not
// constants: hosts configure them per deployment.
type ForecastConfig struct {
	// WindowDays is the trailing window length the burn rate averages over
	WindowDays int
	// IncludeZeroDays counts zero-consumption days in the average when true;
	// when false the rate averages over active days only
	IncludeZeroDays bool
}

// DefaultForecastConfig returns the default forecasting policy
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		WindowDays:      7,
		IncludeZeroDays: true,
	}
}

// Forecast projects when a SKU runs out of stock at recent consumption
// velocity. Purely derived, recomputed on demand.
type Forecast struct {
	SKU           string          `json:"sku"`
	BurnRate      decimal.Decimal `json:"burn_rate"`
	DaysRemaining decimal.Decimal `json:"days_remaining"`
	StockoutDate  time.Time       `json:"stockout_date"`
	RiskTier      RiskTier        `json:"risk_tier"`
	// NoConsumption marks a zero or negative burn rate; DaysRemaining then
	// holds the capped sentinel
	NoConsumption bool `json:"no_consumption"`
}

// BurnRate computes the average daily consumption over the trailing window.
// dailyQuantities is ordered oldest first; only the last WindowDays entries
// are considered.
func BurnRate(dailyQuantities []decimal.Decimal, cfg ForecastConfig) decimal.Decimal {
	window := dailyQuantities
	if cfg.WindowDays > 0 && len(window) > cfg.WindowDays {
		window = window[len(window)-cfg.WindowDays:]
	}
	if len(window) == 0 {
		return decimal.Zero
	}

	total := decimal.Zero
	activeDays := 0
	for _, qty := range window {
		total = total.Add(qty)
		if qty.GreaterThan(decimal.Zero) {
			activeDays++
		}
	}

	days := len(window)
	if !cfg.IncludeZeroDays {
		days = activeDays
	}
	if days == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(days)))
}

// PredictStockout projects days remaining and a stockout date from current
// stock and a burn rate, classifying the result into a risk tier.
func PredictStockout(sku string, currentStock, burnRate decimal.Decimal, asOf time.Time) Forecast {
	if burnRate.LessThanOrEqual(decimal.Zero) {
		return Forecast{
			SKU:           sku,
			BurnRate:      burnRate,
			DaysRemaining: decimal.NewFromInt(StockoutDaysCap),
			StockoutDate:  asOf.AddDate(0, 0, StockoutDaysCap),
			RiskTier:      RiskTierLow,
			NoConsumption: true,
		}
	}

	days := decimal.Zero
	if currentStock.GreaterThan(decimal.Zero) {
		days = currentStock.Div(burnRate)
	}

	wholeDays := int(days.IntPart())
	if wholeDays > StockoutDaysCap {
		wholeDays = StockoutDaysCap
		days = decimal.NewFromInt(StockoutDaysCap)
	}

	return Forecast{
		SKU:           sku,
		BurnRate:      burnRate,
		DaysRemaining: days,
		StockoutDate:  asOf.AddDate(0, 0, wholeDays),
		RiskTier:      tierForDays(days),
		NoConsumption: false,
	}
}

// tierForDays classifies days remaining into a risk tier
func tierForDays(days decimal.Decimal) RiskTier {
	switch {
	case days.LessThan(riskCriticalBelowDays):
		return RiskTierCritical
	case days.LessThan(riskHighBelowDays):
		return RiskTierHigh
	default:
		return RiskTierLow
	}
}
