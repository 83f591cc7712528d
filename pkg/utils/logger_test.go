package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(9).String())
}

func TestDefaultLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDefaultLogger(LevelWarn, &buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("loaded %d classes", 12)
	logger.Error("plain %d%%", 100)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] loaded 12 classes")
	assert.Contains(t, out, "[ERROR] plain 100%")

	logger.SetLevel(LevelDebug)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "[DEBUG] now visible")
}

func TestDefaultLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	base := NewDefaultLogger(LevelInfo, &buf)
	logger := base.WithField("snapshot", "a.hprof").WithFields(map[string]interface{}{"run": 7, "b": true})

	logger.Info("done")
	assert.Contains(t, buf.String(), "[INFO] b=true run=7 snapshot=a.hprof done")

	buf.Reset()
	base.Info("no fields")
	assert.Contains(t, buf.String(), "[INFO] no fields")
}

func TestDefaultLogger_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDefaultLogger(LevelInfo, &buf)
	child := logger.WithField("worker", 1)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				logger.Info("line %d", i)
			} else {
				child.Info("line %d", i)
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 20)
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("debug", "")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, l.(*DefaultLogger).level)

	path := filepath.Join(t.TempDir(), "logs", "heapql.log")
	l, err = NewLogger("warn", path)
	require.NoError(t, err)
	l.Warn("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		" Info ":  LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestGlobalLogger(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	null := &NullLogger{}
	SetGlobalLogger(null)
	assert.Same(t, null, GetGlobalLogger())
}

func TestNullLogger(t *testing.T) {
	l := &NullLogger{}
	l.Info("ignored %d", 1)
	assert.Same(t, l, l.WithField("k", "v"))
	assert.Same(t, l, l.WithFields(nil))
}
