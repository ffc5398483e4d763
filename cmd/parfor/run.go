package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/baxromumarov/parfor"
	"github.com/baxromumarov/parfor/metrics"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

type runOptions struct {
	configPath  string
	workers     int
	items       int
	cost        time.Duration
	nested      int
	failEvery   int
	logLevel    string
	metricsAddr string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic parallel-for workload",
		Long: `Run calls a busy-waiting callback for every integer in [0, items),
optionally starting a nested range from each callback, and prints the
scheduler statistics once the run completes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkload(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML config file (PARFOR_* environment variables override it)")
	f.IntVar(&opts.workers, "workers", 0, "target thread count, overrides config (0 keeps config/GOMAXPROCS)")
	f.IntVar(&opts.items, "items", 10000, "number of outer items")
	f.DurationVar(&opts.cost, "cost", 50*time.Microsecond, "busy-wait per item")
	f.IntVar(&opts.nested, "nested", 0, "size of the nested range started by every outer item")
	f.IntVar(&opts.failEvery, "fail-every", 0, "fail every Nth outer item (0 disables)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level, overrides config")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	return cmd
}

func runWorkload(ctx context.Context, stdout, stderr io.Writer, opts runOptions) error {
	cfg, err := parfor.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return pkgerrors.Wrapf(err, "invalid log level %q", cfg.LogLevel)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Respect container CPU quotas before GOMAXPROCS is read below.
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug().Msgf(format, args...)
	}))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to set GOMAXPROCS from CPU quota")
	}
	defer undo()

	obs := metrics.NewObserver("parfor")
	schedOpts := append(cfg.Options(),
		parfor.WithLogger(logger),
		parfor.WithOnEvent(obs.Observe),
	)
	s := parfor.New(cfg.CPUs(), schedOpts...)
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close scheduler")
		}
	}()

	if opts.metricsAddr != "" {
		stop, err := serveMetrics(opts.metricsAddr, s, obs, logger)
		if err != nil {
			return err
		}
		defer stop(ctx)
	}

	logger.Info().
		Int("workers", s.Workers()).
		Int("items", opts.items).
		Dur("cost", opts.cost).
		Int("nested", opts.nested).
		Msg("starting workload")

	start := time.Now()
	runErr := parfor.ForRange(s, 0, opts.items, func(i int) error {
		spin(opts.cost)
		if opts.failEvery > 0 && i%opts.failEvery == 0 {
			return fmt.Errorf("synthetic failure")
		}
		if opts.nested > 0 {
			return parfor.ForRange(s, 0, opts.nested, func(int) error {
				spin(opts.cost)
				return nil
			})
		}
		return nil
	})
	elapsed := time.Since(start)

	st := s.Stats()
	fmt.Fprintf(stdout, "elapsed:            %s\n", elapsed)
	fmt.Fprintf(stdout, "workers (target):   %d\n", st.Workers)
	fmt.Fprintf(stdout, "workers (created):  %d (active %d, ready %d, reserve %d)\n",
		st.Created, st.Active, st.Ready, st.Reserve)
	fmt.Fprintf(stdout, "runs completed:     %d\n", st.RunsCompleted)
	fmt.Fprintf(stdout, "bundles dispatched: %d\n", st.BundlesDispatched)
	fmt.Fprintf(stdout, "items processed:    %d\n", st.ItemsProcessed)

	if runErr != nil {
		failed := len(parfor.FailedItems(runErr))
		fmt.Fprintf(stdout, "failed items:       %d\n", failed)
		return pkgerrors.Errorf("%d items failed", failed)
	}
	return nil
}

func serveMetrics(addr string, s *parfor.Scheduler, obs *metrics.Observer, logger zerolog.Logger) (func(context.Context), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(s, "parfor"), obs)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to listen on %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// spin burns CPU for d without yielding the thread.
func spin(d time.Duration) {
	for start := time.Now(); time.Since(start) < d; {
	}
}
