package core

import (
	"sync"
	"time"
)

const defaultTraceCapacity = 100

// TraceKind is the kind of a trace record.
type TraceKind int

const (
	TraceTaskNew TraceKind = iota
	TraceTaskExecBegin
	TraceTaskExecEnd
	TraceTaskDone
	TraceSystemIdle
)

func (k TraceKind) String() string {
	switch k {
	case TraceTaskNew:
		return "TaskNew"
	case TraceTaskExecBegin:
		return "ExecBegin"
	case TraceTaskExecEnd:
		return "ExecEnd"
	case TraceTaskDone:
		return "TaskDone"
	case TraceSystemIdle:
		return "SystemIdle"
	default:
		return "Unknown"
	}
}

// TraceRecord captures one scheduling event.
type TraceRecord struct {
	Kind     TraceKind
	Executor string
	Task     TaskID
	TaskName string
	At       time.Time
	Duration time.Duration // ExecEnd only
	Panicked bool          // TaskDone only
}

// traceRing keeps the most recent records. A nil ring records nothing.
// Records are only added from the owning executor's Poll; the mutex is for
// readers on other goroutines.
type traceRing struct {
	mu    sync.Mutex
	items []TraceRecord
	head  int
	count int
}

func newTraceRing(capacity int) *traceRing {
	if capacity <= 0 {
		return nil
	}
	return &traceRing{items: make([]TraceRecord, capacity)}
}

func (h *traceRing) add(record TraceRecord) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// recent returns up to limit records, newest first.
func (h *traceRing) recent(limit int) []TraceRecord {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}
	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]TraceRecord, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}
