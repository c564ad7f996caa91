package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/aggregator"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/backend"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/influxdb"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/logger"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/models"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/processor"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Service+"-consumer")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	// Create context that can be canceled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subscriber, err := backend.OpenSubscriber(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect transport", zap.String("backend", cfg.Transport.Backend), zap.Error(err))
	}

	store, archive, err := backend.OpenStore(ctx, cfg, subscriber, zlog)
	if err != nil {
		zlog.Fatal("Failed to open event store", zap.String("store", cfg.Transport.Store), zap.Error(err))
	}
	// Don't use defer for closing here, we'll explicitly close after the consumer is stopped

	agg := aggregator.New(cfg.Aggregator, store, cfg.Transport.UpdatesTopic, zlog)

	// Daily totals from the persisted history
	counts, err := agg.DailyCounts(ctx)
	if err != nil {
		zlog.Error("Failed to compute daily counts", zap.Error(err))
	}
	for _, dc := range counts {
		zlog.Info("daily vehicle count", zap.String("day", dc.Day), zap.Int("count", dc.Count))
	}

	opts := []processor.Option{
		processor.WithRateCallback(func(rp models.RatePoint) {
			zlog.Debug("vehicle rate",
				zap.Float64("rate", rp.Rate),
				zap.Bool("defined", rp.Defined),
				zap.Int("live", rp.Live),
				zap.Int("total", rp.Total),
			)
		}),
	}
	if archive {
		opts = append(opts, processor.WithArchive(store))
	}
	if influxClient, ok := store.(*influxdb.Client); ok {
		if err := influxClient.WriteDailyCounts(counts, cfg.Aggregator.Location()); err != nil {
			zlog.Warn("Failed to write daily counts", zap.Error(err))
		}
		opts = append(opts, processor.WithRateSink(influxClient, cfg.Aggregator.RateInterval))
	}

	// Initialize processor
	proc := processor.NewProcessor(subscriber, agg, cfg.Transport.UpdatesTopic, zlog, opts...)

	// Handle termination signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	runErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		zlog.Info("Starting consumer", zap.String("backend", cfg.Transport.Backend))
		if err := proc.Run(ctx); err != nil {
			runErr <- err
		}
		zlog.Info("Consumer stopped")
	}()

	// Wait for termination signal or a fatal subscription error
	select {
	case <-sigChan:
		zlog.Info("Received termination signal. Shutting down...")
	case err := <-runErr:
		zlog.Error("Consumer failed. Shutting down...", zap.Error(err))
	}

	// Cancel context to stop the consumer
	cancel()

	// Set a deadline for clean shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zlog.Info("Consumer stopped successfully")
	case <-shutdownCtx.Done():
		zlog.Warn("Shutdown timed out, forcing exit")
	}

	// Final rate flush, then release the transport and store
	proc.Stop()

	if err := subscriber.Close(); err != nil {
		zlog.Warn("Failed to close transport", zap.Error(err))
	}
	if archive {
		zlog.Info("Closing event store...")
		if err := store.Close(); err != nil {
			zlog.Warn("Failed to close event store", zap.Error(err))
		}
	}

	zlog.Info("Shutdown complete.")
}
