package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		for _, k := range []string{
			"OTEL_ENABLED", "OTEL_SERVICE_NAME", "OTEL_SERVICE_VERSION",
			"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_PROTOCOL",
			"OTEL_EXPORTER_OTLP_HEADERS", "OTEL_EXPORTER_OTLP_INSECURE",
			"OTEL_TRACES_SAMPLER", "OTEL_RESOURCE_ATTRIBUTES",
		} {
			t.Setenv(k, "")
		}
		cfg := LoadFromEnv()
		assert.False(t, cfg.Enabled)
		assert.Equal(t, DefaultServiceName, cfg.ServiceName)
		assert.Equal(t, "unknown", cfg.ServiceVersion)
		assert.Equal(t, "grpc", cfg.Protocol)
		assert.Empty(t, cfg.Headers)
		assert.False(t, cfg.Insecure)
	})

	t.Run("Custom", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "TRUE")
		t.Setenv("OTEL_SERVICE_NAME", "heapql-web")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
		t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf")
		t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Bearer abc")
		t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
		t.Setenv("OTEL_TRACES_SAMPLER", "traceidratio")
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
		t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "env=prod,team=jvm")

		cfg := LoadFromEnv()
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "heapql-web", cfg.ServiceName)
		assert.Equal(t, "http://collector:4318", cfg.Endpoint)
		assert.Equal(t, "http/protobuf", cfg.Protocol)
		assert.Equal(t, map[string]string{"Authorization": "Bearer abc"}, cfg.Headers)
		assert.True(t, cfg.Insecure)
		assert.Equal(t, "traceidratio", cfg.Sampler)
		assert.Equal(t, "0.25", cfg.SamplerArg)
		assert.Equal(t, map[string]string{"env": "prod", "team": "jvm"}, cfg.ResourceAttrs)
	})
}

func TestParseKeyValuePairs(t *testing.T) {
	tests := []struct {
		input string
		want  map[string]string
	}{
		{"", map[string]string{}},
		{"a=1", map[string]string{"a": "1"}},
		{" a = 1 , b=2 ", map[string]string{"a": "1", "b": "2"}},
		{"token=x=y", map[string]string{"token": "x=y"}},
		{"=novalue,noequals,,c=", map[string]string{"c": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseKeyValuePairs(tt.input))
		})
	}
}

func TestSplitEndpoint(t *testing.T) {
	ep, plain := splitEndpoint("http://collector:4317")
	assert.Equal(t, "collector:4317", ep)
	assert.True(t, plain)

	ep, plain = splitEndpoint("https://collector:4317")
	assert.Equal(t, "collector:4317", ep)
	assert.False(t, plain)

	ep, plain = splitEndpoint("collector:4317")
	assert.Equal(t, "collector:4317", ep)
	assert.False(t, plain)
}
