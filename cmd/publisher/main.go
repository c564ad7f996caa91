package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/backend"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/detect"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/framesource"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/logger"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/publisher"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/segment"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/track"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Service+"-publisher")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	// Stop publishing on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := framesource.OpenDir(cfg.Source.Dir, zlog)
	if err != nil {
		zlog.Fatal("Failed to open frame source", zap.Error(err))
	}

	pub, err := backend.OpenPublisher(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect transport", zap.String("backend", cfg.Transport.Backend), zap.Error(err))
	}
	defer pub.Close()

	detector := detect.NewDetector(
		source,
		segment.NewSegmenter(cfg.Segmenter),
		track.NewTracker(track.NewMatcher(cfg.Tracker), zlog),
		zlog,
	)

	tp := publisher.New(detector, pub, publisher.Config{
		UpdatesTopic:  cfg.Transport.UpdatesTopic,
		FramesTopic:   cfg.Transport.FramesTopic,
		PublishFrames: cfg.Transport.PublishFrames,
	}, zlog)

	zlog.Info("Starting publisher",
		zap.String("backend", cfg.Transport.Backend),
		zap.String("frames", cfg.Source.Dir),
		zap.String("matcher", cfg.Tracker.Matcher),
	)
	if err := tp.Run(ctx); err != nil && ctx.Err() == nil {
		zlog.Error("Publisher failed", zap.Error(err))
		pub.Close()
		zlog.Sync()
		os.Exit(1)
	}
	zlog.Info("Shutdown complete.")
}
