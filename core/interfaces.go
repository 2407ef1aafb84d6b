package core

import (
	"fmt"
	"time"
)

// =============================================================================
// Time: the hardware collaborators behind the timer queue
// =============================================================================

// Clock reads the current time of the time driver.
type Clock interface {
	Now() Instant
}

// Alarm is one hardware alarm channel. The executor programs it with the
// earliest pending deadline and uses the callback to get polled again.
type Alarm interface {
	// Set arms the alarm for at, replacing any previous deadline. Set(InstantMax)
	// disarms it. It returns false, without arming, when at is not in the
	// future; the caller must then handle the deadline itself.
	Set(at Instant) bool

	// SetCallback installs the function invoked (from any context) when the
	// alarm fires. ctx is passed back unchanged.
	SetCallback(fn func(ctx any), ctx any)
}

// Pender makes sure an executor's Poll gets called soon. It may be called from
// any goroutine or interrupt handler, including synchronously from inside
// Poll, so it must never call Poll itself.
type Pender func()

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics while being resumed. The task is
// despawned afterwards.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - executorName: The name of the executor that resumed the task
	// - task: The id of the task incarnation
	// - taskName: The diagnostic name of the task
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(executorName string, task TaskID, taskName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(executorName string, task TaskID, taskName string, panicInfo any, stackTrace []byte) {
	fmt.Printf("[Executor %s] Task %s (%s) panic: %v\nStack trace:\n%s",
		executorName, taskName, task, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting executor metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods are called from the executor's own context; they should be
// non-blocking and fast.
type Metrics interface {
	// RecordPollDuration records how long one resume of a task took.
	RecordPollDuration(executorName string, duration time.Duration)

	// RecordTaskPanic records that a task panicked during a resume.
	RecordTaskPanic(executorName string, panicInfo any)

	// RecordRunQueueDepth records how many tasks one drain visited.
	RecordRunQueueDepth(executorName string, depth int)

	// RecordTimerQueueDepth records the timer queue length after a drain.
	RecordTimerQueueDepth(executorName string, depth int)

	// RecordSpawnRejected records a failed spawn (e.g. "busy").
	RecordSpawnRejected(executorName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordPollDuration(executorName string, duration time.Duration) {}
func (m *NilMetrics) RecordTaskPanic(executorName string, panicInfo any)              {}
func (m *NilMetrics) RecordRunQueueDepth(executorName string, depth int)              {}
func (m *NilMetrics) RecordTimerQueueDepth(executorName string, depth int)            {}
func (m *NilMetrics) RecordSpawnRejected(executorName string, reason string)          {}

// =============================================================================
// Config: Configuration for Executor
// =============================================================================

// Config holds configuration options for an Executor.
// All fields are optional; nil handlers are replaced with defaults.
type Config struct {
	// Name labels logs, metrics and traces. Defaults to "executor".
	Name string

	// Logger defaults to NoOpLogger.
	Logger Logger

	// PanicHandler defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics defaults to NilMetrics.
	Metrics Metrics

	// Clock and Alarm back the timer queue. Without an alarm, deadlines are
	// only noticed when something else wakes the executor.
	Clock Clock
	Alarm Alarm

	// Preempt, if set, is called before every task resume. Platforms use it
	// to let pending higher-priority interrupts run first.
	Preempt func()

	// TraceCapacity is the size of the trace ring; 0 disables tracing.
	TraceCapacity int
}

// DefaultConfig returns a config with default handlers.
func DefaultConfig() *Config {
	return &Config{
		Name:          "executor",
		Logger:        NewNoOpLogger(),
		PanicHandler:  &DefaultPanicHandler{},
		Metrics:       &NilMetrics{},
		TraceCapacity: defaultTraceCapacity,
	}
}
