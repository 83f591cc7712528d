package utils

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_Phases(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	timer := NewTimer("hprof load", WithClock(clock))

	records := timer.Start("records")
	clock.Advance(300 * time.Millisecond)
	assert.Equal(t, 300*time.Millisecond, records.Stop())

	build := timer.Start("build")
	clock.Advance(100 * time.Millisecond)
	build.Stop()
	clock.Advance(time.Second)
	assert.Equal(t, 100*time.Millisecond, build.Stop(), "second Stop keeps the first duration")

	phases := timer.Phases()
	require.Len(t, phases, 2)
	assert.Equal(t, "records", phases[0].Name)
	assert.Equal(t, "build", phases[1].Name)
	assert.Equal(t, 1400*time.Millisecond, timer.Total())
	assert.Equal(t, 100*time.Millisecond, timer.Duration("build"))
	assert.Zero(t, timer.Duration("missing"))
	assert.Zero(t, timer.StopPhase("missing"))

	slow := timer.Slowest(1)
	require.Len(t, slow, 1)
	assert.Equal(t, "records", slow[0].Name)
}

func TestTimer_UnstoppedPhaseIsHidden(t *testing.T) {
	timer := NewTimer("x", WithClock(NewMockClock(time.Unix(0, 0))))
	timer.Start("open")
	assert.Empty(t, timer.Phases())
}

func TestTimer_Disabled(t *testing.T) {
	var buf bytes.Buffer
	timer := NewTimer("quiet", WithEnabled(false), WithLogger(NewDefaultLogger(LevelInfo, &buf)))
	timer.Start("a").Stop()
	timer.PrintSummary()
	assert.Empty(t, timer.Phases())
	assert.Empty(t, buf.String())
}

func TestTimer_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	clock := NewMockClock(time.Unix(0, 0))
	timer := NewTimer("heap build", WithClock(clock), WithLogger(NewDefaultLogger(LevelInfo, &buf)))

	pt := timer.Start("classes")
	clock.Advance(50 * time.Millisecond)
	pt.Stop()
	clock.Advance(50 * time.Millisecond)

	assert.Contains(t, timer.Summary(), "heap build: 100ms")
	timer.PrintSummary()
	out := buf.String()
	assert.Contains(t, out, "heap build: 100ms")
	assert.Contains(t, out, "classes")
	assert.Contains(t, out, "50.0%")
}

func TestTimer_TimeFunc(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	timer := NewTimer("t", WithClock(clock))

	boom := errors.New("boom")
	d, err := timer.TimeFunc("step", func() error {
		clock.Advance(time.Second)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, time.Second, d)
}
