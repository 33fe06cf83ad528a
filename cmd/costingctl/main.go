// costingctl replays a movement log from a CSV file and prints the requested
// costing view as JSON. It is an inspection tool for operators and a reference
// for embedding the engine; the movement log itself lives wherever the host
// application keeps it.
//
// Usage:
//
//	costingctl -file movements.csv -sku SKU-001 -op valuation
//	costingctl -file movements.csv -sku SKU-001 -op forecast -as-of 2025-03-10
//
// CSV columns: sku,date,kind,quantity,unit_cost,unit_price,document_ref,batch_number,expiry_date
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	costingapp "github.com/erp/costing/internal/application/costing"
	"github.com/erp/costing/internal/domain/costing"
	"github.com/erp/costing/internal/infrastructure/config"
	"github.com/erp/costing/internal/infrastructure/eventsource/memory"
	"github.com/erp/costing/internal/infrastructure/logger"
	"github.com/erp/costing/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		file     = flag.String("file", "", "movement log CSV file")
		sku      = flag.String("sku", "", "SKU to inspect")
		op       = flag.String("op", "valuation", "valuation | profit | forecast | aging | preview")
		asOfFlag = flag.String("as-of", "", "as-of date (YYYY-MM-DD), defaults to today")
		qtyFlag  = flag.String("quantity", "", "requested quantity for -op preview")
		policy   = flag.String("policy", "FIFO", "allocation policy for -op preview (FIFO | FEFO)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	var metrics *telemetry.CostingMetrics
	if meterProvider.IsEnabled() {
		metrics, err = telemetry.NewCostingMetrics(telemetry.CostingMetricsConfig{
			Meter:  meterProvider.Meter("costingctl"),
			Logger: log,
		})
		if err != nil {
			log.Fatal("Failed to create costing metrics", zap.Error(err))
		}
	}

	if *file == "" || *sku == "" {
		flag.Usage()
		os.Exit(2)
	}

	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	if *asOfFlag != "" {
		asOf, err = time.Parse(dateLayout, *asOfFlag)
		if err != nil {
			log.Fatal("Invalid -as-of date", zap.String("value", *asOfFlag), zap.Error(err))
		}
	}

	source, err := loadMovements(*file)
	if err != nil {
		log.Fatal("Failed to load movement log", zap.String("file", *file), zap.Error(err))
	}

	svc := costingapp.NewService(costingapp.ServiceConfig{
		Source:  source,
		Logger:  log,
		Metrics: metrics,
		Forecast: costing.ForecastConfig{
			WindowDays:      cfg.Forecast.WindowDays,
			IncludeZeroDays: cfg.Forecast.IncludeZeroDays,
		},
		AgingThresholdDays: cfg.Aging.ThresholdDays,
	})

	result, err := run(ctx, svc, *op, *sku, asOf, *qtyFlag, *policy)
	if err != nil {
		log.Fatal("Operation failed", zap.String("op", *op), zap.String("sku", *sku), zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatal("Failed to encode result", zap.Error(err))
	}
}

// run dispatches one engine operation
func run(ctx context.Context, svc *costingapp.Service, op, sku string, asOf time.Time, qty, policy string) (any, error) {
	switch op {
	case "valuation":
		return svc.Valuation(ctx, sku, asOf)
	case "profit":
		return svc.ProfitHistory(ctx, sku)
	case "forecast":
		return svc.Forecast(ctx, sku, asOf)
	case "aging":
		return svc.AgingReport(ctx, sku, asOf)
	case "preview":
		quantity, err := decimal.NewFromString(qty)
		if err != nil {
			return nil, fmt.Errorf("invalid -quantity %q: %w", qty, err)
		}
		return svc.Allocate(ctx, costingapp.AllocationRequest{
			SKU:      sku,
			Quantity: quantity,
			Policy:   policy,
			AsOf:     asOf,
		})
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}

// loadMovements reads the CSV movement log into an in-memory source. A header
// row is detected and skipped.
func loadMovements(path string) (*memory.MovementSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	source := memory.NewMovementSource()
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		if line == 1 && record[0] == "sku" {
			continue
		}

		m, err := parseMovement(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		source.Append(m)
	}
	return source, nil
}

// parseMovement converts one CSV record into a movement. Malformed values are
// reported here; data-quality problems inside a well-formed movement are left
// for replay to skip and record.
func parseMovement(record []string) (costing.Movement, error) {
	if len(record) < 4 {
		return costing.Movement{}, fmt.Errorf("expected at least 4 columns, got %d", len(record))
	}

	date, err := time.Parse(dateLayout, record[1])
	if err != nil {
		return costing.Movement{}, fmt.Errorf("invalid date %q: %w", record[1], err)
	}

	quantity, err := decimal.NewFromString(record[3])
	if err != nil {
		return costing.Movement{}, fmt.Errorf("invalid quantity %q: %w", record[3], err)
	}

	m := costing.Movement{
		SKU:      record[0],
		Date:     date,
		Kind:     costing.MovementKind(record[2]),
		Quantity: quantity,
	}

	if v := field(record, 4); v != "" {
		if m.UnitCost, err = decimal.NewFromString(v); err != nil {
			return costing.Movement{}, fmt.Errorf("invalid unit_cost %q: %w", v, err)
		}
	}
	if v := field(record, 5); v != "" {
		if m.UnitPrice, err = decimal.NewFromString(v); err != nil {
			return costing.Movement{}, fmt.Errorf("invalid unit_price %q: %w", v, err)
		}
	}
	m.DocumentRef = field(record, 6)
	m.BatchNumber = field(record, 7)
	if v := field(record, 8); v != "" {
		expiry, err := time.Parse(dateLayout, v)
		if err != nil {
			return costing.Movement{}, fmt.Errorf("invalid expiry_date %q: %w", v, err)
		}
		m.ExpiryDate = &expiry
	}
	return m, nil
}

// field returns the i-th column or empty when the record is short
func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return record[i]
}
