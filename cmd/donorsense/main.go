package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"donorsense/internal/api"
	"donorsense/internal/cfg"
	"donorsense/internal/dashboard"
	"donorsense/internal/donors"
	"donorsense/internal/ensemble"
	"donorsense/internal/features"
	"donorsense/internal/metrics"
	"donorsense/internal/monitor"
	"donorsense/internal/predict"
	"donorsense/internal/registry"
	"donorsense/internal/service"
	"donorsense/internal/storage"
	"donorsense/internal/stream"
	"donorsense/internal/training"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize components
	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage initialization failed")
	}
	defer store.Close()

	reg := registry.New(store, mw)
	trainer := training.NewTrainer(reg, mw, c.ValidationSplit)
	queue := training.NewQueue(trainer, c.TrainingWorkers, mw)
	queue.Start(ctx)

	engine := predict.NewEngine(predict.NewCache(), mw)
	combiner := ensemble.NewCombiner(reg, engine, mw)
	window := features.NewWindow(c.DriftWindowSize)
	evaluator := monitor.NewEvaluator(reg, store, window, mw)

	scheduler := monitor.NewScheduler(evaluator, c.MonitorSchedule)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("monitoring scheduler failed to start")
	}

	donorClient := initializeDonorClient(c)
	feed := initializeFeed(c, mw)

	svc := service.New(service.Deps{
		Registry:  reg,
		Store:     store,
		Trainer:   trainer,
		Queue:     queue,
		Engine:    engine,
		Combiner:  combiner,
		Evaluator: evaluator,
		Window:    window,
		Donors:    donorClient,
		Feed:      feed,
		Metrics:   mw,
	})

	// Create communication channels
	events := make(chan stream.DonationEvent, 64)
	errors := make(chan error, 32)

	// Start background goroutines
	var wg sync.WaitGroup
	startErrorHandler(ctx, &wg, errors, m)
	if feed != nil {
		startStreamHandler(ctx, &wg, feed, c, events, errors)
		startDonationHandler(ctx, &wg, svc, events)
	}

	apiServer := api.NewServer(svc, c.APIPort)
	go func() {
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("API server failed")
			cancel()
		}
	}()

	startMetricsServer(ctx, c)
	dash := initializeDashboard(c, svc)

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, &wg, apiServer, dash, scheduler, queue)
}

// initializeDonorClient builds the donor datastore client if DONOR_BASE_URL is configured
func initializeDonorClient(c cfg.Settings) *donors.Client {
	if !c.DonorAPIEnabled() {
		log.Info().Msg("Donor datastore not configured, prediction requests must carry features")
		return nil
	}
	return donors.NewClient(c.DonorAPIKey, c.DonorAPISecret, c.DonorBaseURL, c.RESTTimeout, c.DonorAPIRPS)
}

// initializeFeed builds the donation stream consumer if DONOR_STREAM_URL is configured
func initializeFeed(c cfg.Settings, mw *metrics.MetricsWrapper) *stream.WS {
	if !c.StreamEnabled() {
		log.Info().Msg("Donation stream not configured, outcomes must be recorded via the API")
		return nil
	}
	return stream.NewWS(c.DonorStreamURL, mw)
}

// initializeDashboard starts the operations dashboard if DASHBOARD_PORT is configured
func initializeDashboard(c cfg.Settings, svc *service.Service) *dashboard.Dashboard {
	if !c.DashboardEnabled() {
		return nil
	}
	dash := dashboard.New(svc, c.DashboardPort)
	if err := dash.Start(); err != nil {
		log.Error().Err(err).Msg("operations dashboard failed to start")
		return nil
	}
	return dash
}

// startStreamHandler starts the donation feed connection handler
func startStreamHandler(ctx context.Context, wg *sync.WaitGroup, feed *stream.WS, c cfg.Settings, events chan stream.DonationEvent, errors chan error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := feed.Stream(ctx, events, errors, c.PingInterval); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Donation stream ended")
			errors <- err
		}
	}()
}

// startDonationHandler starts the goroutine that turns donation events into
// recorded outcomes and drift window samples
func startDonationHandler(ctx context.Context, wg *sync.WaitGroup, svc *service.Service, events chan stream.DonationEvent) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				svc.HandleDonation(ctx, ev)
			}
		}
	}()
}

// startErrorHandler starts the background error handling goroutine
func startErrorHandler(ctx context.Context, wg *sync.WaitGroup, errors chan error, m *metrics.Metrics) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errors:
				log.Error().Err(err).Msg("background error")
				m.ErrorsTotal.Inc()
			}
		}
	}()
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	go func() {
		mux := http.NewServeMux()

		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// waitForShutdown waits for shutdown signals and unwinds components in order
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, apiServer *api.Server, dash *dashboard.Dashboard, scheduler *monitor.Scheduler, queue *training.Queue) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")

	// Stop accepting requests before tearing the engine down underneath them
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown failed")
	}
	if dash != nil {
		if err := dash.Stop(); err != nil {
			log.Error().Err(err).Msg("dashboard shutdown failed")
		}
	}

	cancel()
	scheduler.Stop()
	queue.Stop()

	// Wait for all goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
