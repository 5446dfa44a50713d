package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gopluginhost/pluginhost/metrics"
	"github.com/gopluginhost/pluginhost/runtime"
)

// newServeCommand starts a long-lived host: an initial scan, a
// fsnotify-driven watcher that re-scans on directory changes, and a
// Prometheus metrics endpoint, until interrupted.
func newServeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Scan, watch plug-in directories, and serve Prometheus metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, boot, collector, err := buildContext(flags)
			if err != nil {
				return err
			}

			if chain := ctx.Scan(boot.ScanFlags()); chain.HasErrors() {
				collector.RecordFailure("*", "scan")
			}
			collector.SetStateCounts(ctx.StateCounts())

			watcher, err := runtime.NewWatcher(ctx, boot.ScanFlags(), nil)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))
			srv := &http.Server{Addr: boot.MetricsListenAddr, Handler: mux}

			errCh := make(chan error, 2)
			go func() { errCh <- watcher.Run(runCtx) }()
			go func() { errCh <- srv.ListenAndServe() }()

			<-runCtx.Done()
			shutdownCtx, cancel := context.WithCancel(context.Background())
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)

			collector.SetStateCounts(ctx.StateCounts())
			return nil
		},
	}
}
