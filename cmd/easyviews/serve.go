package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/djlord-it/easy-views/internal/api"
	"github.com/djlord-it/easy-views/internal/config"
	"github.com/djlord-it/easy-views/internal/metrics"
	"github.com/djlord-it/easy-views/internal/observer"
	"github.com/djlord-it/easy-views/internal/transport/channel"
	"github.com/djlord-it/easy-views/internal/visitor"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the deletion observer and (with RETENTION) the pruner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

// startMetrics registers the Prometheus sink and serves it on its own port.
// Both return values are nil when metrics are disabled.
func startMetrics(cfg config.Config) (*metrics.PrometheusSink, *http.Server) {
	if !cfg.MetricsEnabled {
		log.Println("easyviews: METRICS_ENABLED not set; metrics disabled")
		return nil, nil
	}

	sink := metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
	log.Printf("easyviews: metrics enabled (port=%d, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promhttp.Handler())
	server := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.MetricsPort),
		Handler: mux,
	}
	go func() {
		log.Printf("easyviews: metrics server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("easyviews: metrics server error: %v", err)
		}
	}()
	return sink, server
}

func runServe(cfg config.Config) error {
	logConfigWarnings(&cfg)

	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	metricsSink, metricsServer := startMetrics(cfg)

	deps, err := buildEngine(cfg, b.store, metricsSink)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer deps.Close()

	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewEventBus(cfg.EventBusBufferSize, busOpts...)

	obs := observer.New(deps.engine).WithDrainTimeout(cfg.ObserverDrainTimeout)
	if metricsSink != nil {
		obs = obs.WithMetrics(metricsSink)
	}

	resolver := visitor.NewResolver(cfg.VisitorCookie, cfg.TrustXForwardedFor)
	apiHandler := api.NewHandler(deps.engine, resolver).
		WithHealthChecker(b.db).
		WithEvents(bus).
		WithAdminKey(cfg.APIJWTKey).
		WithRecordLimit(cfg.RecordRatePerSecond, cfg.RecordBurst)
	if metricsSink != nil {
		apiHandler = apiHandler.WithMetrics(metricsSink)
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler,
	}

	go func() {
		log.Printf("easyviews: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("easyviews: http server error: %v", err)
		}
	}()

	// Separate contexts for pruner and observer enable ordered shutdown.
	observerCtx, cancelObserver := context.WithCancel(context.Background())
	var observerWg sync.WaitGroup
	observerWg.Add(1)
	go func() {
		defer observerWg.Done()
		obs.Run(observerCtx, bus.Channel())
	}()

	var prunerWg sync.WaitGroup
	var cancelPruner context.CancelFunc
	if cfg.Retention > 0 {
		var prunerCtx context.Context
		prunerCtx, cancelPruner = context.WithCancel(context.Background())
		prunerWg.Add(1)
		go func() {
			defer prunerWg.Done()
			if err := runPruning(prunerCtx, cfg, b, metricsSink); err != nil {
				log.Printf("easyviews: pruner error: %v", err)
			}
		}()
		log.Printf("easyviews: pruner enabled (retention=%s, schedule=%q)", cfg.Retention, cfg.PruneSchedule)
	} else {
		log.Println("easyviews: RETENTION not set; pruner disabled")
	}

	log.Printf("easyviews: started (driver=%s, http=%s)", cfg.DatabaseDriver, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("easyviews: received signal %v, shutting down", received)

	// Phase 1: Stop pruner
	if cancelPruner != nil {
		log.Println("easyviews: stopping pruner...")
		cancelPruner()
		prunerWg.Wait()
		log.Println("easyviews: pruner stopped")
	}

	// Phase 2: Stop HTTP server (no new deletion events emitted)
	log.Println("easyviews: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("easyviews: http server shutdown error: %v", err)
	}
	log.Println("easyviews: http server stopped")

	// Phase 3: Stop observer (will drain buffered events before returning)
	log.Println("easyviews: stopping observer (draining events)...")
	cancelObserver()
	observerWg.Wait()
	log.Println("easyviews: observer stopped")

	// Phase 4: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		log.Println("easyviews: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("easyviews: metrics server shutdown error: %v", err)
		}
		log.Println("easyviews: metrics server stopped")
	}

	log.Println("easyviews: stopped")
	return nil
}
