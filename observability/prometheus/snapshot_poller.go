package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-executor/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExecutorSnapshotProvider provides current executor stats snapshots.
type ExecutorSnapshotProvider interface {
	Stats() core.ExecutorStats
}

// PoolSnapshotProvider provides current task pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports executor/pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	executorsMu sync.RWMutex
	executors   map[string]ExecutorSnapshotProvider

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	tasksSpawned   *prom.GaugeVec
	tasksCompleted *prom.GaugeVec
	tasksPanicked  *prom.GaugeVec
	resumes        *prom.GaugeVec
	activations    *prom.GaugeVec
	spawnRejected  *prom.GaugeVec
	timerQueued    *prom.GaugeVec
	lastPoll       *prom.GaugeVec

	poolCapacity *prom.GaugeVec
	poolSpawned  *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func snapshotGauge(name, help string, labels ...string) *prom.GaugeVec {
	return prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "executor",
		Name:      name,
		Help:      help,
	}, labels)
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	p := &SnapshotPoller{
		interval:  interval,
		executors: make(map[string]ExecutorSnapshotProvider),
		pools:     make(map[string]PoolSnapshotProvider),

		tasksSpawned:   snapshotGauge("tasks_spawned", "Tasks spawned per executor (snapshot).", "executor"),
		tasksCompleted: snapshotGauge("tasks_completed", "Tasks finished per executor (snapshot).", "executor"),
		tasksPanicked:  snapshotGauge("tasks_panicked", "Tasks that panicked per executor (snapshot).", "executor"),
		resumes:        snapshotGauge("resumes", "Task resumes per executor (snapshot).", "executor"),
		activations:    snapshotGauge("activations", "Poll activations per executor (snapshot).", "executor"),
		spawnRejected:  snapshotGauge("spawn_rejected", "Rejected spawns per executor (snapshot).", "executor"),
		timerQueued:    snapshotGauge("timer_queued", "Tasks waiting on a deadline per executor.", "executor"),
		lastPoll:       snapshotGauge("last_poll_timestamp_seconds", "Unix time of the last Poll per executor.", "executor"),

		poolCapacity: snapshotGauge("pool_capacity", "Slots per task pool.", "pool"),
		poolSpawned:  snapshotGauge("pool_spawned", "Occupied slots per task pool.", "pool"),
	}

	for _, g := range []**prom.GaugeVec{
		&p.tasksSpawned, &p.tasksCompleted, &p.tasksPanicked, &p.resumes, &p.activations,
		&p.spawnRejected, &p.timerQueued, &p.lastPoll, &p.poolCapacity, &p.poolSpawned,
	} {
		registered, err := registerCollector(reg, *g)
		if err != nil {
			return nil, err
		}
		*g = registered
	}
	return p, nil
}

// AddExecutor adds or replaces an executor snapshot provider by name.
func (p *SnapshotPoller) AddExecutor(name string, provider ExecutorSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "executor")
	p.executorsMu.Lock()
	p.executors[name] = provider
	p.executorsMu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.executorsMu.RLock()
	for name, provider := range p.executors {
		stats := provider.Stats()
		p.tasksSpawned.WithLabelValues(name).Set(float64(stats.Spawned))
		p.tasksCompleted.WithLabelValues(name).Set(float64(stats.Completed))
		p.tasksPanicked.WithLabelValues(name).Set(float64(stats.Panicked))
		p.resumes.WithLabelValues(name).Set(float64(stats.Resumes))
		p.activations.WithLabelValues(name).Set(float64(stats.Activations))
		p.spawnRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.timerQueued.WithLabelValues(name).Set(float64(stats.TimerQueued))
		if !stats.LastPollAt.IsZero() {
			p.lastPoll.WithLabelValues(name).Set(float64(stats.LastPollAt.UnixNano()) / 1e9)
		}
	}
	p.executorsMu.RUnlock()

	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolCapacity.WithLabelValues(name).Set(float64(stats.Capacity))
		p.poolSpawned.WithLabelValues(name).Set(float64(stats.Spawned))
	}
	p.poolsMu.RUnlock()
}
