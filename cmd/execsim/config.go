package main

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors a workload file.
type Config struct {
	TickHz        uint64           `yaml:"tick_hz"`        // 1000000 (by default)
	DurationMS    int              `yaml:"duration_ms"`    // 1000 (by default)
	TraceCapacity int              `yaml:"trace_capacity"` // 64 (by default)
	Executors     []ExecutorConfig `yaml:"executors"`
	Tasks         []TaskConfig     `yaml:"tasks"`
}

// ExecutorConfig describes one executor instance.
type ExecutorConfig struct {
	Name     string `yaml:"name"`
	Mode     string `yaml:"mode"`     // "thread" or "interrupt"
	IRQ      int    `yaml:"irq"`      // interrupt mode only
	Priority int    `yaml:"priority"` // interrupt mode only, 1..255
}

// TaskConfig describes a pool of identical periodic tasks.
type TaskConfig struct {
	Name       string `yaml:"name"`
	Executor   string `yaml:"executor"`
	Count      int    `yaml:"count"`      // pool size, 1 (by default)
	PeriodUS   int    `yaml:"period_us"`  // 10000 (by default)
	Iterations int    `yaml:"iterations"` // 0 = until the run ends
}

const (
	modeThread    = "thread"
	modeInterrupt = "interrupt"
	maxIRQ        = 255
)

// If the workload file does not say otherwise, one thread-mode executor runs
// a single blinking task.
func defaultConfig() Config {
	return Config{
		TickHz:        1_000_000,
		DurationMS:    1000,
		TraceCapacity: 64,
	}
}

func defaultExecutors() []ExecutorConfig {
	return []ExecutorConfig{{Name: "thread", Mode: modeThread}}
}

func defaultTasks() []TaskConfig {
	return []TaskConfig{{Name: "blink", Executor: "thread", Count: 1, PeriodUS: 100_000}}
}

// LoadConfig reads YAML and overrides defaults; empty path = defaults only.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read workload: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse workload %s: %w", path, err)
		}
	}

	clamp(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// sanity clamps
func clamp(cfg *Config) {
	if cfg.TickHz == 0 {
		cfg.TickHz = 1_000_000
	}
	if cfg.DurationMS <= 0 {
		cfg.DurationMS = 1000
	}
	if cfg.TraceCapacity < 0 {
		cfg.TraceCapacity = 0
	}
	if len(cfg.Executors) == 0 {
		cfg.Executors = defaultExecutors()
	}
	if len(cfg.Tasks) == 0 {
		cfg.Tasks = defaultTasks()
	}
	for i := range cfg.Executors {
		e := &cfg.Executors[i]
		if e.Mode == "" {
			e.Mode = modeThread
		}
		if e.Name == "" {
			e.Name = fmt.Sprintf("%s%d", e.Mode, i)
		}
		if e.Mode == modeInterrupt && e.Priority <= 0 {
			e.Priority = 1
		}
	}
	for i := range cfg.Tasks {
		t := &cfg.Tasks[i]
		if t.Name == "" {
			t.Name = fmt.Sprintf("task%d", i)
		}
		if t.Executor == "" {
			t.Executor = cfg.Executors[0].Name
		}
		if t.Count <= 0 {
			t.Count = 1
		}
		if t.PeriodUS <= 0 {
			t.PeriodUS = 10_000
		}
		if t.Iterations < 0 {
			t.Iterations = 0
		}
	}
}

func validate(cfg Config) error {
	names := make(map[string]bool, len(cfg.Executors))
	irqs := make(map[int]bool)
	threads := 0
	for _, e := range cfg.Executors {
		if names[e.Name] {
			return fmt.Errorf("executor %q defined twice", e.Name)
		}
		names[e.Name] = true

		switch e.Mode {
		case modeThread:
			threads++
		case modeInterrupt:
			if e.IRQ < 0 || e.IRQ > maxIRQ {
				return fmt.Errorf("executor %q: irq %d out of range 0..%d", e.Name, e.IRQ, maxIRQ)
			}
			if irqs[e.IRQ] {
				return fmt.Errorf("executor %q: irq %d already used", e.Name, e.IRQ)
			}
			irqs[e.IRQ] = true
			if e.Priority > 255 {
				return fmt.Errorf("executor %q: priority %d out of range 1..255", e.Name, e.Priority)
			}
		default:
			return fmt.Errorf("executor %q: unknown mode %q", e.Name, e.Mode)
		}
	}
	if threads > 1 {
		return fmt.Errorf("at most one thread-mode executor per core, got %d", threads)
	}
	for _, t := range cfg.Tasks {
		if !names[t.Executor] {
			return fmt.Errorf("task %q: unknown executor %q", t.Name, t.Executor)
		}
	}
	return nil
}
