package core

import "sync"

// MetricsState holds process-wide lifecycle counters. All access goes through
// the package functions, which share a single mutex.
type MetricsState struct {
	HandleAcquires    uint32
	Rebinds           uint32
	PresentEnables    uint32
	PresentDisables   uint32
	StabilizerRuns    uint32
	StabilizerCommits uint32
	HostLoops         uint32
	FallbackLoops     uint32
	ZombieResets      uint32
}

var onceMetrics sync.Once
var metricsMu sync.Mutex
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{}
	})
	return nil
}

func metricsAdd(f func(*MetricsState)) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metricsState == nil {
		return
	}
	f(metricsState)
}

func MetricsHandleAcquired() {
	metricsAdd(func(m *MetricsState) { m.HandleAcquires++ })
}

func MetricsRebound() {
	metricsAdd(func(m *MetricsState) { m.Rebinds++ })
}

func MetricsPresentChanged(enabled bool) {
	metricsAdd(func(m *MetricsState) {
		if enabled {
			m.PresentEnables++
		} else {
			m.PresentDisables++
		}
	})
}

func MetricsStabilizerRun() {
	metricsAdd(func(m *MetricsState) { m.StabilizerRuns++ })
}

func MetricsStabilizerCommitted() {
	metricsAdd(func(m *MetricsState) { m.StabilizerCommits++ })
}

func MetricsLoopStarted(fallback bool) {
	metricsAdd(func(m *MetricsState) {
		if fallback {
			m.FallbackLoops++
		} else {
			m.HostLoops++
		}
	})
}

func MetricsZombieReset() {
	metricsAdd(func(m *MetricsState) { m.ZombieResets++ })
}

// MetricsSnapshot returns a copy of the current counters.
func MetricsSnapshot() MetricsState {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metricsState == nil {
		return MetricsState{}
	}
	return *metricsState
}
