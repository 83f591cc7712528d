package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		sampler string
		arg     string
		want    string
	}{
		{"", "", "AlwaysOnSampler"},
		{"always_on", "", "AlwaysOnSampler"},
		{"always_off", "", "AlwaysOffSampler"},
		{"traceidratio", "0.5", "TraceIDRatioBased{0.5}"},
		{"parentbased_always_on", "", "ParentBased{root:AlwaysOnSampler"},
		{"parentbased_traceidratio", "0.1", "ParentBased{root:TraceIDRatioBased{0.1}"},
		{"bogus", "", "AlwaysOnSampler"},
	}
	for _, tt := range tests {
		t.Run(tt.sampler, func(t *testing.T) {
			s := createSampler(&Config{Sampler: tt.sampler, SamplerArg: tt.arg})
			assert.Contains(t, s.Description(), tt.want)
		})
	}
}

func TestParseRatio(t *testing.T) {
	assert.Equal(t, 1.0, parseRatio(""))
	assert.Equal(t, 1.0, parseRatio("abc"))
	assert.Equal(t, 0.3, parseRatio("0.3"))
	assert.Equal(t, 0.0, parseRatio("-2"))
	assert.Equal(t, 1.0, parseRatio("7"))
}
