package otel

import (
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// NewLocalMeterProvider returns a meter provider for runs without an OTLP
// collector. Instruments aggregate in process and are only read through the
// given readers, so with none the measurements are dropped at collection.
func NewLocalMeterProvider(serviceName string, readers ...sdkmetric.Reader) *sdkmetric.MeterProvider {
	opts := make([]sdkmetric.Option, 0, len(readers)+1)
	opts = append(opts, sdkmetric.WithResource(NewResource(serviceName, nil)))
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	return sdkmetric.NewMeterProvider(opts...)
}

// NewResource describes the running service. The service name always wins
// over a service.name entry in extra.
func NewResource(serviceName string, extra map[string]string) *resource.Resource {
	attrs := make([]attribute.KeyValue, 0, len(extra)+1)
	attrs = append(attrs, attributesFromMap(extra)...)
	attrs = append(attrs, semconv.ServiceNameKey.String(serviceName))
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}
