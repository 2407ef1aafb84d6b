package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-executor/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	PollDurationBuckets []float64
	DepthBuckets        []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	pollDurationSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	spawnRejectedTotal  *prom.CounterVec
	drainSize           *prom.HistogramVec
	timerQueueDepth     *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// DefaultPollDurationBuckets suits resumes that take microseconds, not the
// request latencies prom.DefBuckets is tuned for.
var DefaultPollDurationBuckets = prom.ExponentialBuckets(1e-6, 4, 10)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "executor"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	durationBuckets := opts.PollDurationBuckets
	if len(durationBuckets) == 0 {
		durationBuckets = DefaultPollDurationBuckets
	}
	depthBuckets := opts.DepthBuckets
	if len(depthBuckets) == 0 {
		depthBuckets = prom.ExponentialBuckets(1, 2, 8)
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "poll_duration_seconds",
		Help:      "Duration of a single task resume in seconds.",
		Buckets:   durationBuckets,
	}, []string{"executor"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"executor"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "spawn_rejected_total",
		Help:      "Total number of rejected spawns.",
	}, []string{"executor", "reason"})
	drainVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "drain_tasks",
		Help:      "Number of tasks visited by one run queue drain.",
		Buckets:   depthBuckets,
	}, []string{"executor"})
	timerVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "timer_queue_depth",
		Help:      "Tasks waiting on a deadline after the last drain.",
	}, []string{"executor"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if drainVec, err = registerCollector(reg, drainVec); err != nil {
		return nil, err
	}
	if timerVec, err = registerCollector(reg, timerVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		pollDurationSeconds: durationVec,
		taskPanicTotal:      panicVec,
		spawnRejectedTotal:  rejectedVec,
		drainSize:           drainVec,
		timerQueueDepth:     timerVec,
	}, nil
}

// RecordPollDuration records how long one resume took.
func (m *MetricsExporter) RecordPollDuration(executorName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.pollDurationSeconds.WithLabelValues(normalizeLabel(executorName, "unknown")).Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(executorName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(executorName, "unknown")).Inc()
}

// RecordRunQueueDepth records the size of one drain.
func (m *MetricsExporter) RecordRunQueueDepth(executorName string, depth int) {
	if m == nil {
		return
	}
	m.drainSize.WithLabelValues(normalizeLabel(executorName, "unknown")).Observe(float64(depth))
}

// RecordTimerQueueDepth records the timer queue length.
func (m *MetricsExporter) RecordTimerQueueDepth(executorName string, depth int) {
	if m == nil {
		return
	}
	m.timerQueueDepth.WithLabelValues(normalizeLabel(executorName, "unknown")).Set(float64(depth))
}

// RecordSpawnRejected records spawn rejection events.
func (m *MetricsExporter) RecordSpawnRejected(executorName string, reason string) {
	if m == nil {
		return
	}
	m.spawnRejectedTotal.WithLabelValues(normalizeLabel(executorName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
