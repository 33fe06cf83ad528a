package costing

import (
	"context"
	"time"

	"github.com/erp/costing/internal/domain/costing"
	"github.com/erp/costing/internal/domain/report"
	"github.com/erp/costing/internal/domain/shared"
	"github.com/erp/costing/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MovementSource supplies the complete, per-SKU movement history. It is the
// engine's only external collaborator: how movements are stored or queried is
// the host application's concern. Implementations must return the full
// history as one batch; partial or streaming replay is unsupported.
type MovementSource interface {
	// Movements returns the SKU's complete history, chronologically sorted.
	// Unknown SKUs return shared.ErrNotFound.
	Movements(ctx context.Context, sku string) ([]costing.Movement, error)
	// SKUs returns all SKUs the source knows about
	SKUs(ctx context.Context) ([]string, error)
}

// ServiceConfig holds the service's collaborators and policy knobs
type ServiceConfig struct {
	Source             MovementSource
	Logger             *zap.Logger
	Metrics            *telemetry.CostingMetrics // optional
	Forecast           costing.ForecastConfig
	AgingThresholdDays int
}

// Service is the costing engine facade. Every query re-derives lot state by
// replaying the SKU's history; no state survives between calls, so concurrent
// invocations for different SKUs are independent.
type Service struct {
	source             MovementSource
	logger             *zap.Logger
	metrics            *telemetry.CostingMetrics
	validate           *validator.Validate
	forecastCfg        costing.ForecastConfig
	agingThresholdDays int
}

// NewService creates a new costing service
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	forecastCfg := cfg.Forecast
	if forecastCfg.WindowDays <= 0 {
		forecastCfg = costing.DefaultForecastConfig()
	}
	threshold := cfg.AgingThresholdDays
	if threshold <= 0 {
		threshold = costing.DefaultAgingThresholdDays
	}

	return &Service{
		source:             cfg.Source,
		logger:             logger,
		metrics:            cfg.Metrics,
		validate:           validator.New(),
		forecastCfg:        forecastCfg,
		agingThresholdDays: threshold,
	}
}

// Valuation reports current stock, value and weighted-average cost for a SKU
// as of the given date.
func (s *Service) Valuation(ctx context.Context, sku string, asOf time.Time) (costing.Valuation, error) {
	ledger, err := s.replay(ctx, sku)
	if err != nil {
		return costing.Valuation{}, err
	}
	return costing.ValuateWithThreshold(ledger, asOf, s.agingThresholdDays), nil
}

// Allocate previews, and optionally applies, an outbound allocation. The
// preview path and the applied path are the same code: the returned plan is
// exactly what Apply deducts.
func (s *Service) Allocate(ctx context.Context, req AllocationRequest) (*AllocationPreview, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	ledger, err := s.replay(ctx, req.SKU)
	if err != nil {
		return nil, err
	}

	currentStock := ledger.TotalStock()
	outbound := costing.Movement{
		SKU:      req.SKU,
		Date:     req.AsOf,
		Kind:     costing.MovementKindIssue,
		Quantity: req.Quantity,
	}

	plan, err := ledger.Allocate(outbound, costing.AllocationPolicyType(req.Policy), req.Apply)
	if err != nil {
		return nil, err
	}

	if plan.Shortfall {
		s.logger.Warn("allocation shortfall",
			zap.String("sku", req.SKU),
			zap.String("policy", req.Policy),
			zap.String("requested", req.Quantity.String()),
			zap.String("shortfall", plan.ShortfallQty.String()),
		)
		if s.metrics != nil {
			s.metrics.RecordShortfall(ctx, req.SKU, req.Policy)
		}
	}

	return &AllocationPreview{
		SKU:              req.SKU,
		CurrentStock:     currentStock,
		Plan:             plan,
		RemainingStock:   currentStock.Sub(plan.TotalAllocated),
		Shortfall:        plan.Shortfall,
		SkippedMovements: len(ledger.Skipped()),
	}, nil
}

// ProfitHistory replays the SKU's full history and returns one profit record
// per outbound movement, costed with the lots consumed at that point.
func (s *Service) ProfitHistory(ctx context.Context, sku string) ([]costing.ProfitRecord, error) {
	history, err := s.source.Movements(ctx, sku)
	if err != nil {
		return nil, err
	}

	records, ledger, err := costing.ReplayProfit(sku, history)
	if err != nil {
		return nil, err
	}
	s.observeReplay(ctx, ledger)
	return records, nil
}

// ProfitHistoryAll replays every known SKU and returns profit records keyed
// by SKU. Grouping into time series is the caller's responsibility.
func (s *Service) ProfitHistoryAll(ctx context.Context) (map[string][]costing.ProfitRecord, error) {
	skus, err := s.source.SKUs(ctx)
	if err != nil {
		return nil, err
	}

	all := make(map[string][]costing.ProfitRecord, len(skus))
	for _, sku := range skus {
		records, err := s.ProfitHistory(ctx, sku)
		if err != nil {
			return nil, err
		}
		all[sku] = records
	}
	return all, nil
}

// Forecast projects stockout timing for a SKU from its recent issue velocity
func (s *Service) Forecast(ctx context.Context, sku string, asOf time.Time) (costing.Forecast, error) {
	history, err := s.source.Movements(ctx, sku)
	if err != nil {
		return costing.Forecast{}, err
	}

	ledger, err := costing.BuildLedger(sku, history, costing.AllocationPolicyFIFO)
	if err != nil {
		return costing.Forecast{}, err
	}
	s.observeReplay(ctx, ledger)

	daily := dailyConsumption(history, asOf, s.forecastCfg.WindowDays)
	rate := costing.BurnRate(daily, s.forecastCfg)
	return costing.PredictStockout(sku, ledger.TotalStock(), rate, asOf), nil
}

// AgingReport derives the per-lot aging/deadstock report for a SKU
func (s *Service) AgingReport(ctx context.Context, sku string, asOf time.Time) (report.SKUAgingReport, error) {
	valuation, err := s.Valuation(ctx, sku, asOf)
	if err != nil {
		return report.SKUAgingReport{}, err
	}
	return report.BuildAgingReport(valuation), nil
}

// replay reconstructs the SKU's ledger from its full history
func (s *Service) replay(ctx context.Context, sku string) (*costing.Ledger, error) {
	history, err := s.source.Movements(ctx, sku)
	if err != nil {
		return nil, err
	}

	ledger, err := costing.BuildLedger(sku, history, costing.AllocationPolicyFIFO)
	if err != nil {
		return nil, err
	}
	s.observeReplay(ctx, ledger)
	return ledger, nil
}

// observeReplay logs and counts one completed replay
func (s *Service) observeReplay(ctx context.Context, ledger *costing.Ledger) {
	if skipped := ledger.Skipped(); len(skipped) > 0 {
		s.logger.Warn("replay skipped malformed movements",
			zap.String("sku", ledger.SKU()),
			zap.Int("count", len(skipped)),
		)
	}
	s.logger.Debug("ledger replayed",
		zap.String("sku", ledger.SKU()),
		zap.String("stock", ledger.TotalStock().String()),
		zap.Int("shortfalls", ledger.Shortfalls()),
	)

	if s.metrics != nil {
		s.metrics.RecordReplay(ctx, ledger.SKU())
		s.metrics.RecordSkippedMovements(ctx, ledger.SKU(), len(ledger.Skipped()))
	}
}

// dailyConsumption buckets issue quantities per calendar day over the
// trailing window ending at asOf, oldest day first. Write-offs are excluded:
// the burn rate models demand, not loss events.
func dailyConsumption(history []costing.Movement, asOf time.Time, windowDays int) []decimal.Decimal {
	daily := make([]decimal.Decimal, windowDays)
	for i := range daily {
		daily[i] = decimal.Zero
	}

	windowStart := dateOnly(asOf).AddDate(0, 0, -(windowDays - 1))
	for _, m := range history {
		if m.Kind != costing.MovementKindIssue {
			continue
		}
		if err := m.Validate(); err != nil {
			continue
		}
		day := dateOnly(m.Date)
		offset := int(day.Sub(windowStart).Hours() / 24)
		if offset < 0 || offset >= windowDays {
			continue
		}
		daily[offset] = daily[offset].Add(m.Quantity)
	}
	return daily
}

// dateOnly truncates a timestamp to its UTC calendar date
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
