package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/miremote/mi-ir-extract/internal/corpus"
	"github.com/miremote/mi-ir-extract/internal/metrics"
	"github.com/miremote/mi-ir-extract/internal/report"
	"github.com/miremote/mi-ir-extract/internal/watch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func installWatchCmd(app *App) error {
	watchCmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Process a directory of brand dumps again whenever they change",
		Long: `Process every brand dump (*.json) of DIR, then again after every burst of changes,
printing a report after each run until interrupted.

With a metrics port, the processing counters are exposed for Prometheus on /metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Debug("Running watch command")
			return app.watchRun(cmd.OutOrStdout(), args[0])
		},
	}

	watchCmd.Flags().StringVar(&app.config.Watch.MetricsHost, "metrics-host", "", "host for the metrics endpoint")
	watchCmd.Flags().IntVar(&app.config.Watch.MetricsPort, "metrics-port", 0, "port for the metrics endpoint, disabled if 0")
	watchCmd.Flags().DurationVar(&app.config.Watch.Debounce, "debounce", watch.DefaultDebounce, "quiet period after a change before processing")

	app.cmd.AddCommand(watchCmd)
	return app.viper.BindPFlags(watchCmd.Flags())
}

func (a App) watchRun(stdout io.Writer, dir string) error {
	registry := prometheus.NewRegistry()
	proc, err := a.newProcessor(registry)
	if err != nil {
		return err
	}

	var outMu sync.Mutex
	w := watch.New(dir, proc, func(_ context.Context, res corpus.Result) error {
		outMu.Lock()
		defer outMu.Unlock()
		return report.New(res).Write(stdout, report.Text)
	}, watch.WithDebounce(a.config.Watch.Debounce), watch.WithLogger(slog.Default()))

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()

	var wg sync.WaitGroup
	var metricsErr error
	if a.config.Watch.MetricsPort != 0 {
		server := metrics.New(metrics.Config{Host: a.config.Watch.MetricsHost, Port: a.config.Watch.MetricsPort}, registry)
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Stop watching if metrics fail.
			defer cancel()
			metricsErr = server.Run(ctx)
		}()
	}

	err = w.Run(ctx)
	cancel()
	wg.Wait()

	if errors.Is(err, context.Canceled) && a.ctx.Err() != nil {
		err = nil
	}
	if metricsErr != nil {
		return errors.Join(err, fmt.Errorf("metrics: %v", metricsErr))
	}
	return err
}
