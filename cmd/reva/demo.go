package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/reva-ui/reva/internal/config"
	"github.com/reva-ui/reva/pkg/devtools"
	"github.com/reva-ui/reva/pkg/metrics"
	"github.com/reva-ui/reva/pkg/reva"
	"github.com/reva-ui/reva/pkg/tracing"
)

func demoCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a demo component with the inspection server attached",
		Long: `Run a self-mutating demo component and serve its dependency graph.

The demo wires a counter component with computed values and watchers,
mutates it on a timer, and exposes /graph, /events, and /metrics on the
devtools address. Point a browser or websocket client at it to watch the
graph react.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if addr != "" {
				cfg.DevtoolsAddr = addr
			}
			return runDemo(cfg, interval)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to reva.toml")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Devtools listen address (overrides config)")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Mutation interval")

	return cmd
}

func runDemo(cfg config.Config, interval time.Duration) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if cfg.MetricsEnabled {
		detach := metrics.Attach(metrics.WithNamespace(cfg.MetricsNamespace))
		defer detach()
		info("metrics attached (namespace %q)", cfg.MetricsNamespace)
	}
	if cfg.TracingEnabled {
		detach := tracing.Attach(tracing.WithTracerName(cfg.TracerName))
		defer detach()
		info("tracing attached (tracer %q)", cfg.TracerName)
	}

	comp := newDemoComponent(logger)
	defer comp.Destroy()

	dt := devtools.New(&devtools.Config{Logger: logger, ServeMetrics: cfg.MetricsEnabled})
	defer dt.Close()
	dt.Register("demo", comp)

	server := &http.Server{
		Addr:    cfg.DevtoolsAddr,
		Handler: dt.Handler(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n  Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	go mutateLoop(ctx, comp, interval)

	success("demo component registered")
	info("devtools listening on %s", cfg.DevtoolsAddr)
	info("graph:   http://localhost%s/graph", cfg.DevtoolsAddr)
	info("events:  ws://localhost%s/events", cfg.DevtoolsAddr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newDemoComponent builds a counter with a computed chain and a declared
// watcher, enough surface for the graph endpoints to show something real.
func newDemoComponent(logger *slog.Logger) *reva.Component {
	return reva.New(reva.Options{
		Name: "demo",
		Data: map[string]any{
			"count":   0,
			"history": []any{},
		},
		Computed: map[string]any{
			"double": reva.ComputedGetter(func(c *reva.Component) any {
				return c.Get("count").(int) * 2
			}),
			"parity": reva.ComputedGetter(func(c *reva.Component) any {
				if c.Get("count").(int)%2 == 0 {
					return "even"
				}
				return "odd"
			}),
		},
		Watch: map[string]any{
			"count": reva.WatchHandler(func(c *reva.Component, newVal, oldVal any) {
				logger.Info("count changed", "new", newVal, "old", oldVal)
				c.Data().Get("history").(*reva.Array).Push(newVal)
			}),
		},
		Reporter: reva.NewSlogReporter(logger),
	})
}

func mutateLoop(ctx context.Context, comp *reva.Component, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sched, _ := comp.Scheduler().(*reva.BatchScheduler)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			comp.Set("count", comp.Get("count").(int)+1)
			if sched != nil {
				sched.Flush()
			}
		}
	}
}
