package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/askiada/go-autoprof/internal/config"
	"github.com/askiada/go-autoprof/pkg/pipeline"
	"github.com/askiada/go-autoprof/pkg/pipeline/drawer"
	"github.com/askiada/go-autoprof/pkg/pipeline/metrics"
	"github.com/askiada/go-autoprof/pkg/pipeline/model"
	"github.com/askiada/go-autoprof/pkg/steps"
)

func runCmd(root *rootFlags) *cobra.Command {
	var (
		metricsAddr string
		drawFile    string
	)

	cmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Process the images of a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}

			var hooks []model.PipelineOption
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				col, err := metrics.New(reg)
				if err != nil {
					return err
				}
				hooks = append(hooks, col)

				shutdown := serveMetrics(metricsAddr, reg)
				defer shutdown()
			}
			if drawFile != "" {
				hooks = append(hooks, drawer.PipelineDrawer(drawer.NewDOTDrawer(drawFile)))
			}

			provider, release := tracerProvider(root.trace, slog.Default())
			defer release()

			pipe, err := newPipeline(cfg,
				pipeline.WithTracerProvider(provider),
				pipeline.WithPipelineOptions(hooks...),
			)
			if err != nil {
				return err
			}

			return process(ctx, pipe, cfg)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address during the run")
	cmd.Flags().StringVar(&drawFile, "draw", "", "write the sequence graph with mean step times to this DOT file")

	return cmd
}

// newPipeline builds a pipeline with the built-in steps, configured by cfg.
func newPipeline(cfg *config.Config, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	pipe, err := pipeline.New(append([]pipeline.Option{pipeline.WithLogger(slog.Default())}, opts...)...)
	if err != nil {
		return nil, err
	}

	catalogue := steps.Methods()
	pipe.UpdateMethods(catalogue)

	err = cfg.Apply(pipe, catalogue)
	if err != nil {
		return nil, errors.Wrap(err, "unable to configure pipeline")
	}

	err = pipe.Validate()
	if err != nil {
		slog.Warn("jobs reaching these steps will fail", "error", err)
	}

	return pipe, nil
}

func process(ctx context.Context, pipe *pipeline.Pipeline, cfg *config.Config) error {
	if !cfg.ProcessMode.List() {
		outcome := pipe.ProcessImage(ctx, cfg.Options)
		if outcome.Failed() {
			return errors.Wrapf(outcome.Err, "unable to process %s", outcome.Job)
		}

		return nil
	}

	res, err := pipe.ProcessList(ctx, cfg.Options)
	if err != nil {
		return err
	}
	for _, i := range res.Failed() {
		slog.Warn("image failed", "run_id", res.RunID, "job", res.Outcomes[i].Job, "error", res.Outcomes[i].Err)
	}

	return nil
}

const shutdownTimeout = 5 * time.Second

// serveMetrics serves reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: shutdownTimeout}

	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
