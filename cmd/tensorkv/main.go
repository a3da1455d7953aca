// Command tensorkv runs the tensor key-value service: the storage engine
// behind an HTTP/JSON API, with prometheus metrics and declarative store
// bootstrap.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tensorkv/tensorkv/internal/config"
	"github.com/tensorkv/tensorkv/internal/engine"
	"github.com/tensorkv/tensorkv/internal/metrics"
	"github.com/tensorkv/tensorkv/internal/server"
)

// version is stamped by the build; "dev" otherwise.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tensorkv",
		Short:         "tensorkv is a sharded in-memory tensor key-value store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newStartCmd(), newVersionCmd())
	return root
}

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the tensorkv server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tensorkv version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tensorkv %s\n", version)
		},
	}
}

// run assembles the process and blocks until a signal or a fatal listener
// error tears it down.
func run(ctx context.Context, cfg config.Config) error {
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}

	m := metrics.New()
	eng := engine.New(engine.WithObserver(m))

	for _, b := range cfg.BootstrapStores {
		if err := eng.CreateStore(b.Name, b.Position, b.Range); err != nil {
			return err
		}
		logger.Info("bootstrapped store",
			"store", b.Name, "position", b.Position, "range", b.Range)
	}

	opts := []server.Option{
		server.WithMaxRequestBytes(cfg.MaxRequestBytes),
		server.WithChunkSize(cfg.ChunkSize),
	}
	if cfg.MetricsAddr == "" {
		// No dedicated metrics listener: expose /metrics on the API server.
		opts = append(opts, server.WithMetrics(m))
	}
	handler := server.New(eng, logger, opts...)

	apiSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sampler := metrics.NewSampler(m, eng.Stores, cfg.SampleInterval, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api server listening", "addr", cfg.ListenAddr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics server listening", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	sampler.Start(ctx)

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down", "grace", cfg.ShutdownGrace)
		sampler.Stop()

		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := apiSrv.Shutdown(drainCtx); err != nil {
			logger.Error("api server shutdown", "err", err)
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(drainCtx); err != nil {
				logger.Error("metrics server shutdown", "err", err)
			}
		}
		return nil
	})

	err = g.Wait()
	logger.Info("stopped")
	return err
}
