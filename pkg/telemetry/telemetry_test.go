package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobalConfig() {
	globalConfig = nil
	configOnce = sync.Once{}
}

func TestInit_Disabled(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("OTEL_ENABLED", "")

	ctx := context.Background()
	shutdown, err := Init(ctx)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, Enabled())
}

func TestGetConfig_Cached(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("OTEL_SERVICE_NAME", "test-service")

	cfg := GetConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "test-service", cfg.ServiceName)

	t.Setenv("OTEL_SERVICE_NAME", "other")
	assert.Same(t, cfg, GetConfig())
	resetGlobalConfig()
}
