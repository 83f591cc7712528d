package utils

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Phase is one timed step of a Timer.
type Phase struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	done     bool
}

// PhaseTimer stops a phase; Stop is idempotent so it can be deferred.
type PhaseTimer struct {
	timer *Timer
	name  string
}

// Stop ends the phase and returns its duration.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.StopPhase(pt.name)
}

// Timer measures named phases of a longer operation, such as dump loading
// or index building, and reports them through a Logger.
type Timer struct {
	mu      sync.Mutex
	name    string
	start   time.Time
	phases  map[string]*Phase
	order   []string
	logger  Logger
	enabled bool
	clock   Clock
}

// TimerOption configures a Timer.
type TimerOption func(*Timer)

// WithLogger sets the logger PrintSummary writes to.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithEnabled turns the timer on or off. A disabled timer records nothing.
func WithEnabled(enabled bool) TimerOption {
	return func(t *Timer) { t.enabled = enabled }
}

// WithClock replaces the system clock.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) { t.clock = clock }
}

// NewTimer creates a running timer.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:    name,
		phases:  make(map[string]*Phase),
		logger:  &NullLogger{},
		enabled: true,
		clock:   NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.clock.Now()
	return t
}

// Start begins a phase. Starting a phase that already exists restarts it.
func (t *Timer) Start(name string) *PhaseTimer {
	pt := &PhaseTimer{timer: t, name: name}
	if !t.enabled {
		return pt
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.phases[name]; !ok {
		t.order = append(t.order, name)
	}
	t.phases[name] = &Phase{Name: name, Start: t.clock.Now()}
	return pt
}

// StopPhase ends a phase and returns its duration, or 0 for unknown phases.
func (t *Timer) StopPhase(name string) time.Duration {
	if !t.enabled {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.phases[name]
	if !ok {
		return 0
	}
	if !p.done {
		p.Duration = t.clock.Since(p.Start)
		p.done = true
	}
	return p.Duration
}

// Duration returns the recorded duration of a stopped phase.
func (t *Timer) Duration(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.phases[name]; ok && p.done {
		return p.Duration
	}
	return 0
}

// Total returns the time elapsed since the timer was created.
func (t *Timer) Total() time.Duration {
	return t.clock.Since(t.start)
}

// Phases returns the stopped phases in start order.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Phase, 0, len(t.order))
	for _, name := range t.order {
		if p := t.phases[name]; p.done {
			out = append(out, *p)
		}
	}
	return out
}

// Slowest returns up to n stopped phases, longest first.
func (t *Timer) Slowest(n int) []Phase {
	phases := t.Phases()
	sort.SliceStable(phases, func(i, j int) bool {
		return phases[i].Duration > phases[j].Duration
	})
	if n >= 0 && n < len(phases) {
		phases = phases[:n]
	}
	return phases
}

// Summary formats the stopped phases with their share of the total.
func (t *Timer) Summary() string {
	total := t.Total()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %v", t.name, total.Round(time.Millisecond))
	for _, p := range t.Phases() {
		pct := 0.0
		if total > 0 {
			pct = float64(p.Duration) / float64(total) * 100
		}
		fmt.Fprintf(&sb, "\n  %-20s %10v %5.1f%%", p.Name, p.Duration.Round(time.Microsecond), pct)
	}
	return sb.String()
}

// PrintSummary logs the summary at info level.
func (t *Timer) PrintSummary() {
	if !t.enabled {
		return
	}
	for _, line := range strings.Split(t.Summary(), "\n") {
		t.logger.Info("%s", line)
	}
}

// TimeFunc runs fn as a phase.
func (t *Timer) TimeFunc(name string, fn func() error) (time.Duration, error) {
	pt := t.Start(name)
	err := fn()
	return pt.Stop(), err
}
