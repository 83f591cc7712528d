package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatus_String(t *testing.T) {
	tests := []struct {
		status   RunStatus
		expected string
	}{
		{RunStatusRunning, "running"},
		{RunStatusSucceeded, "succeeded"},
		{RunStatusFailed, "failed"},
		{RunStatusCancelled, "cancelled"},
		{RunStatus(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

func TestRunStatus_IsFinal(t *testing.T) {
	assert.False(t, RunStatusRunning.IsFinal())
	assert.True(t, RunStatusSucceeded.IsFinal())
	assert.True(t, RunStatusFailed.IsFinal())
	assert.True(t, RunStatusCancelled.IsFinal())
}

func TestQueryRun_Finish(t *testing.T) {
	run := NewQueryRun("run-1", "app.hprof", "select 1")
	assert.Equal(t, RunStatusRunning, run.Status)

	run.StartedAt = time.Now().Add(-time.Second)
	run.Finish(RunStatusSucceeded, 12, true)

	assert.Equal(t, RunStatusSucceeded, run.Status)
	assert.Equal(t, 12, run.Rows)
	assert.True(t, run.Truncated)
	assert.GreaterOrEqual(t, run.Duration, time.Second)
}

func TestSavedQuery_HasTag(t *testing.T) {
	q := &SavedQuery{Name: "strings", Tags: []string{"Memory", "strings"}}
	assert.True(t, q.HasTag("memory"))
	assert.False(t, q.HasTag("threads"))
}

func TestQueryResult_JSON(t *testing.T) {
	res := &QueryResult{
		RunID: "run-1",
		Rows:  []ResultRow{{Text: "java.lang.String#1", HTML: "<a>", ObjectID: "4096"}},
	}
	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, false, decoded["truncated"])
	rows := decoded["rows"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "4096", rows[0].(map[string]interface{})["object_id"])
	assert.Equal(t, 1, res.Len())
}
