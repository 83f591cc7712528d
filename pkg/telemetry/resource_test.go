package telemetry

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestPickIP(t *testing.T) {
	assert.Equal(t, "", pickIP(nil))
	assert.Equal(t, "", pickIP([]net.IP{net.ParseIP("127.0.0.1")}))
	assert.Equal(t, "10.0.0.5", pickIP([]net.IP{
		net.ParseIP("127.0.0.1"), net.ParseIP("fe80::1"), net.ParseIP("10.0.0.5"),
	}))
	assert.Equal(t, "fe80::1", pickIP([]net.IP{net.ParseIP("::1"), net.ParseIP("fe80::1")}))
}

func TestGetHostIP(t *testing.T) {
	if ip := getHostIP(); ip != "" {
		assert.NotNil(t, net.ParseIP(ip))
	}
}

func TestBuildResource(t *testing.T) {
	cfg := &Config{
		ServiceName:    "heapql",
		ServiceVersion: "1.2.3",
		ResourceAttrs:  map[string]string{"env": "test"},
	}
	res, err := buildResource(context.Background(), cfg)
	require.NoError(t, err)

	set := res.Set()
	v, ok := set.Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "heapql", v.AsString())
	v, ok = set.Value(attribute.Key("env"))
	require.True(t, ok)
	assert.Equal(t, "test", v.AsString())
}
