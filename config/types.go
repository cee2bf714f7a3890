package config

import (
	"strings"

	"zenbeasts/observability/otel"
)

// TelemetryConfig controls the optional OTLP exporters. Both signals default
// to off so a bare config file runs without a collector.
type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// OtelConfig converts the TOML section into the exporter configuration,
// stamping in the service identity.
func (t TelemetryConfig) OtelConfig(service, environment string) otel.Config {
	return otel.Config{
		ServiceName: service,
		Environment: environment,
		Endpoint:    strings.TrimSpace(t.Endpoint),
		Insecure:    t.Insecure,
		Headers:     otel.ParseHeaders(t.Headers),
		Metrics:     t.Metrics,
		Traces:      t.Traces,
	}
}
