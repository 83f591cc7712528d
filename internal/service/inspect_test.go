package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/heapql/pkg/errors"
)

func TestService_Inspect(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	d, err := svc.Inspect(ctx, testSnapshot, "0x200")
	require.NoError(t, err)
	assert.Equal(t, "512", d.ID)
	assert.Equal(t, "com.example.Holder", d.ClassName)
	assert.NotEmpty(t, d.Root)
	assert.Positive(t, d.RetainedSize)
	require.Len(t, d.Fields, 3)
	assert.Equal(t, "name", d.Fields[0].Name)
	assert.Contains(t, d.Fields[0].HTML, "file://instance/java.lang.String@513")
	assert.Equal(t, "size", d.Fields[1].Name)
	assert.Equal(t, "42", d.Fields[1].Text)
	assert.Equal(t, "true", d.Fields[2].Text)
	require.Len(t, d.Referees, 1)
	assert.Equal(t, "513", d.Referees[0].ObjectID)
	assert.NotEmpty(t, d.Paths)

	d, err = svc.Inspect(ctx, testSnapshot, "513")
	require.NoError(t, err)
	ids := make([]string, 0, len(d.Referrers))
	for _, r := range d.Referrers {
		ids = append(ids, r.ObjectID)
	}
	assert.ElementsMatch(t, []string{"512", "514"}, ids)
	assert.NotEmpty(t, d.Root)
}

func TestService_InspectArray(t *testing.T) {
	svc := newTestService(t)

	d, err := svc.Inspect(context.Background(), testSnapshot, "514")
	require.NoError(t, err)
	require.Len(t, d.Fields, 2)
	assert.Equal(t, "[0]", d.Fields[0].Name)
	assert.Equal(t, "[1]", d.Fields[1].Name)
}

func TestService_InspectErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Inspect(ctx, testSnapshot, "not-an-id")
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))

	_, err = svc.Inspect(ctx, testSnapshot, "0xdead")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.Inspect(ctx, "missing.hprof", "1")
	assert.True(t, apperrors.IsNotFound(err))
}
