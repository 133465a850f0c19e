package infra

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/tnqbao/gau-review-orchestrator/config"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry owns the global tracer and meter providers.
// Without an OTLP endpoint the otel no-op providers stay installed.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

func InitTelemetry(cfg *config.EnvConfig) *Telemetry {
	if cfg.Grafana.OTLPEndpoint == "" {
		return &Telemetry{}
	}

	ctx := context.Background()
	res := serviceResource(cfg)
	t := &Telemetry{}

	var traceExporter *otlptrace.Exporter
	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Grafana.OTLPEndpoint))
	if err != nil {
		log.Printf("Warning: OTLP trace exporter unavailable: %v", err)
	} else {
		t.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(t.tracerProvider)
	}

	metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Grafana.OTLPEndpoint))
	if err != nil {
		log.Printf("Warning: OTLP metric exporter unavailable: %v", err)
	} else {
		t.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
				sdkmetric.WithInterval(30*time.Second))),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(t.meterProvider)

		if err := runtime.Start(runtime.WithMeterProvider(t.meterProvider)); err != nil {
			log.Printf("Warning: runtime metrics unavailable: %v", err)
		}
	}

	return t
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tracerProvider != nil {
		errs = append(errs, t.tracerProvider.Shutdown(ctx))
	}
	if t.meterProvider != nil {
		errs = append(errs, t.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func serviceResource(cfg *config.EnvConfig) *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", cfg.Grafana.ServiceName),
		attribute.String("deployment.environment", cfg.Environment.Mode),
		attribute.String("service.namespace", cfg.Environment.Group),
	)
}
