package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heapql/pkg/config"
	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/model"
)

func TestService_ClassHistogram(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	hist, err := svc.ClassHistogram(ctx, testSnapshot, "")
	require.NoError(t, err)

	byName := map[string]int{}
	categories := map[string]string{}
	for i, e := range hist {
		byName[e.ClassName] = e.Instances
		categories[e.ClassName] = e.Category
		assert.Positive(t, e.ShallowBytes)
		if i > 0 {
			assert.GreaterOrEqual(t, hist[i-1].ShallowBytes, e.ShallowBytes)
		}
	}
	assert.Equal(t, map[string]int{
		"java.lang.String":   2,
		"char[]":             2,
		"com.example.Holder": 1,
		"java.lang.String[]": 1,
	}, byName)
	assert.Equal(t, "jdk", categories["java.lang.String"])
	assert.Equal(t, "primitive", categories["char[]"])
	assert.Equal(t, "application", categories["com.example.Holder"])

	app, err := svc.ClassHistogram(ctx, testSnapshot, "application")
	require.NoError(t, err)
	require.Len(t, app, 1)
	assert.Equal(t, "com.example.Holder", app[0].ClassName)

	_, err = svc.ClassHistogram(ctx, testSnapshot, "nonsense")
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))

	_, err = svc.ClassHistogram(ctx, "missing.hprof", "")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestService_ClassHistogramBusinessPrefixes(t *testing.T) {
	svc := newTestService(t, func(c *config.Config) {
		c.Engine.BusinessPrefixes = []string{"com.example."}
	})

	hist, err := svc.ClassHistogram(context.Background(), testSnapshot, "business")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "com.example.Holder", hist[0].ClassName)
	assert.Equal(t, "business", hist[0].Category)
}

func TestHistogramProfile(t *testing.T) {
	entries := []model.ClassHistogramEntry{
		{ClassName: "java.lang.String", Category: "jdk", Instances: 2, ShallowBytes: 48},
		{ClassName: "com.example.Holder", Category: "application", Instances: 1, ShallowBytes: 33},
		{ClassName: "java.lang.Object[]", Category: "jdk", Instances: 1, ShallowBytes: 32},
	}
	p := HistogramProfile(testSnapshot, entries)
	require.NoError(t, p.CheckValid())

	var buf bytes.Buffer
	require.NoError(t, p.Write(&buf))
	parsed, err := profile.Parse(&buf)
	require.NoError(t, err)

	require.Len(t, parsed.SampleType, 2)
	assert.Equal(t, "space", parsed.SampleType[1].Type)
	require.Len(t, parsed.Sample, 3)
	// Three classes plus two categories.
	assert.Len(t, parsed.Function, 5)

	leaf := parsed.Sample[0].Location[0].Line[0].Function.Name
	caller := parsed.Sample[0].Location[1].Line[0].Function.Name
	assert.Equal(t, "java.lang.String", leaf)
	assert.Equal(t, "jdk", caller)
	assert.Equal(t, []int64{2, 48}, parsed.Sample[0].Value)
	assert.Same(t, parsed.Sample[0].Location[1], parsed.Sample[2].Location[1])
}
