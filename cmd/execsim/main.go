// Command execsim drives the executor on a simulated core: deterministic
// scenario demos and YAML-described periodic workloads.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/Swind/go-executor/core"
	obs "github.com/Swind/go-executor/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "execsim",
		Usage: "run executor scenarios and workloads on a simulated core",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log debug messages",
			},
		},
		Commands: []*cli.Command{
			scenarioCommand(),
			runCommand(),
		},
	}
}

func loggerFrom(c *cli.Context) core.Logger {
	return &core.DefaultLogger{Verbose: c.Bool("verbose")}
}

func scenarioCommand() *cli.Command {
	return &cli.Command{
		Name:      "scenario",
		Aliases:   []string{"s"},
		Usage:     "run a deterministic scenario (" + strings.Join(scenarioNames(), ", ") + ", or all)",
		ArgsUsage: "NAME",
		Action:    scenarioAction,
	}
}

func scenarioAction(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("scenario name required", 1)
	}
	logger := loggerFrom(c)
	w := c.App.Writer

	if name == "all" {
		for _, s := range scenarios {
			fmt.Fprintf(w, "== scenario %s: %s\n", s.name, s.usage)
			if err := s.run(w, logger); err != nil {
				return cli.Exit(fmt.Sprintf("scenario %s failed: %v", s.name, err), 1)
			}
			fmt.Fprintln(w)
		}
		return nil
	}

	s, ok := findScenario(name)
	if !ok {
		return cli.Exit(fmt.Sprintf("unknown scenario %q", name), 1)
	}
	fmt.Fprintf(w, "== scenario %s: %s\n", s.name, s.usage)
	if err := s.run(w, logger); err != nil {
		return cli.Exit(fmt.Sprintf("scenario %s failed: %v", s.name, err), 1)
	}
	return nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run a periodic workload in real time",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "workload YAML file (defaults only when empty)",
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "override the workload duration",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve Prometheus metrics on this address, e.g. :2112",
			},
			&cli.IntFlag{
				Name:  "trace",
				Usage: "print this many trace records per executor",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := LoadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if d := c.Duration("duration"); d > 0 {
		cfg.DurationMS = int(d / time.Millisecond)
	}
	logger := loggerFrom(c)

	var metrics core.Metrics
	var poller *obs.SnapshotPoller
	var server *http.Server
	if addr := c.String("metrics-addr"); addr != "" {
		reg := prom.NewRegistry()
		exporter, err := obs.NewMetricsExporter("executor", reg, obs.ExporterOptions{})
		if err != nil {
			return cli.Exit(fmt.Sprintf("metrics: %v", err), 1)
		}
		if poller, err = obs.NewSnapshotPoller(reg, 100*time.Millisecond); err != nil {
			return cli.Exit(fmt.Sprintf("metrics: %v", err), 1)
		}
		metrics = exporter

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", core.F("addr", addr), core.F("error", err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		}()
		logger.Info("Serving metrics", core.F("addr", addr))
	}

	sys, err := buildSystem(cfg, logger, metrics)
	if err != nil {
		return cli.Exit(fmt.Sprintf("build workload: %v", err), 1)
	}
	if poller != nil {
		for name, exec := range sys.executors {
			poller.AddExecutor(name, exec)
		}
		for name, pool := range sys.pools {
			poller.AddPool(name, pool)
		}
		poller.Start(c.Context)
		defer poller.Stop()
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	logger.Info("Workload started",
		core.F("executors", len(cfg.Executors)), core.F("tasks", len(cfg.Tasks)),
		core.F("duration_ms", cfg.DurationMS))
	if err := sys.run(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("run: %v", err), 1)
	}
	sys.report(c.App.Writer, c.Int("trace"))
	return nil
}
