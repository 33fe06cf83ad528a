package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics constructor is given no meter.
var ErrMeterNil = errors.New("NewCostingMetrics: meter cannot be nil")

// CostingMetrics tracks costing engine activity: ledger replays, malformed
// movements skipped during replay, and outbound shortfalls.
type CostingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	replayTotal          *Counter
	movementSkippedTotal *Counter
	shortfallTotal       *Counter
}

// CostingMetricsConfig holds configuration for costing metrics.
type CostingMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewCostingMetrics creates a new CostingMetrics instance.
func NewCostingMetrics(cfg CostingMetricsConfig) (*CostingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cm := &CostingMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	cm.replayTotal, err = NewCounter(
		cfg.Meter,
		"costing_ledger_replay_total",
		"Total number of ledger replays performed",
		"{replays}",
	)
	if err != nil {
		return nil, err
	}

	cm.movementSkippedTotal, err = NewCounter(
		cfg.Meter,
		"costing_movement_skipped_total",
		"Total number of malformed movements skipped during replay",
		"{movements}",
	)
	if err != nil {
		return nil, err
	}

	cm.shortfallTotal, err = NewCounter(
		cfg.Meter,
		"costing_allocation_shortfall_total",
		"Total number of outbound allocations that hit a shortfall",
		"{allocations}",
	)
	if err != nil {
		return nil, err
	}

	return cm, nil
}

// RecordReplay records one completed ledger replay for a SKU.
func (cm *CostingMetrics) RecordReplay(ctx context.Context, sku string) {
	cm.replayTotal.Inc(ctx, attribute.String("sku", sku))
}

// RecordSkippedMovements records malformed movements skipped during a replay.
func (cm *CostingMetrics) RecordSkippedMovements(ctx context.Context, sku string, count int) {
	if count <= 0 {
		return
	}
	cm.movementSkippedTotal.Add(ctx, int64(count), attribute.String("sku", sku))
}

// RecordShortfall records an outbound allocation that could not be fully
// covered by open lots.
func (cm *CostingMetrics) RecordShortfall(ctx context.Context, sku string, policy string) {
	cm.shortfallTotal.Inc(ctx,
		attribute.String("sku", sku),
		attribute.String("policy", policy),
	)
}
