package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mohans/capturex"
	"github.com/mohans/capturex/llm"
	"github.com/mohans/capturex/notion"
	"github.com/mohans/capturex/pipeline"
)

var (
	workerCount int
	metricsAddr string
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume the job queue until SIGINT or SIGTERM",
	RunE:  runWorkers,
}

func init() {
	workerCmd.Flags().IntVarP(&workerCount, "workers", "n", 0, "number of worker loops (overrides config)")
	workerCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address (overrides config)")
}

func runWorkers(cmd *cobra.Command, args []string) error {
	if workerCount > 0 {
		cfg.Worker.Count = workerCount
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := capturex.NewMetrics(reg)

	gen, err := llm.NewGenAIGenerator(ctx, llm.GenAIConfig{
		APIKey:    cfg.LLM.APIKey,
		RateLimit: rate.Limit(cfg.LLM.RateLimit),
		Burst:     cfg.LLM.Burst,
	})
	if err != nil {
		return err
	}
	opts := llm.Options{Logger: logger, Metrics: metrics}
	planner := llm.NewPlanner(gen, llm.StageConfig{
		Model:      cfg.LLM.PlanModel,
		Timeout:    cfg.LLM.PlanTimeout,
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
	}, opts)
	researcher := llm.NewResearcher(gen, llm.StageConfig{
		Model:      cfg.LLM.ResearchModel,
		Timeout:    cfg.LLM.ResearchTimeout,
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
	}, opts)
	committer := notion.New(notion.Config{
		Secret:     cfg.Notion.Secret,
		DatabaseID: cfg.Notion.DatabaseID,
		TitleProp:  cfg.Notion.TitleProp,
		DueProp:    cfg.Notion.DueProp,
		Version:    cfg.Notion.Version,
		Timeout:    cfg.Notion.Timeout,
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		Logger:     logger,
		Metrics:    metrics,
	})
	orch := pipeline.NewOrchestrator(planner, researcher, committer, pipeline.Config{
		Logger:  logger,
		Metrics: metrics,
	})

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	for i := 0; i < cfg.Worker.Count; i++ {
		w := capturex.NewWorker(b.queue, b.store, orch, capturex.WorkerConfig{
			ID:         fmt.Sprintf("worker-%d", i),
			PopTimeout: cfg.Worker.PopTimeout,
			RecordTTL:  cfg.Store.RecordTTL,
			Logger:     logger,
			Metrics:    metrics,
		})
		g.Go(func() error { return w.Run(gctx) })
	}

	logger.Info("workers started",
		zap.Int("count", cfg.Worker.Count),
		zap.String("queue", cfg.Redis.QueueKey),
		zap.String("store", cfg.Store.Backend),
	)
	err = g.Wait()
	logger.Info("workers stopped")
	return err
}
