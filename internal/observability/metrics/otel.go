package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// PushConfig configures OTLP export of the business counters. Prometheus
// scraping on /metrics is always on; this is an additional push path.
type PushConfig struct {
	Enabled          bool
	ServiceName      string
	ExporterEndpoint string
	ExporterProtocol string
	Interval         time.Duration
}

// otelInstruments mirror the money-related counters over OTLP.
type otelInstruments struct {
	paymentEvents metric.Int64Counter
	ledgerEntries metric.Int64Counter
	rateLimit     metric.Int64Counter
}

// NewMeterProvider configures and registers the global meter provider.
func NewMeterProvider(lc fx.Lifecycle, cfg PushConfig, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled || strings.TrimSpace(cfg.ExporterEndpoint) == "" {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics export initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// NewWithMeter builds the Prometheus collectors and attaches OTLP counters
// from provider.
func NewWithMeter(cfg PushConfig, provider metric.MeterProvider) (*Metrics, error) {
	m := New()
	if provider == nil {
		return m, nil
	}

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "vindesk"
	}
	meter := provider.Meter(name)

	paymentEvents, err := meter.Int64Counter("vindesk.payment.events")
	if err != nil {
		return nil, err
	}
	ledgerEntries, err := meter.Int64Counter("vindesk.ledger.entries")
	if err != nil {
		return nil, err
	}
	rateLimit, err := meter.Int64Counter("vindesk.rate_limit.decisions")
	if err != nil {
		return nil, err
	}
	m.otel = &otelInstruments{
		paymentEvents: paymentEvents,
		ledgerEntries: ledgerEntries,
		rateLimit:     rateLimit,
	}
	return m, nil
}

func (o *otelInstruments) addPayment(status, tier string) {
	if o == nil {
		return
	}
	o.paymentEvents.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("tier", tier),
	))
}

func (o *otelInstruments) addLedger(direction string, n int) {
	if o == nil {
		return
	}
	o.ledgerEntries.Add(context.Background(), int64(n), metric.WithAttributes(
		attribute.String("direction", direction),
	))
}

func (o *otelInstruments) addRateLimit(decision string) {
	if o == nil {
		return
	}
	o.rateLimit.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("decision", decision),
	))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
