// Package publisher turns detections into traffic-update events on a
// transport.
package publisher

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/codec"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/detect"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/transport"
)

// Annotated frames are published under this schema
const (
	FrameSchemaName    = "video-frame"
	FrameSchemaVersion = "0.1.0"
)

const jpegQuality = 80

// Config names the topics a TrafficPublisher writes to
type Config struct {
	UpdatesTopic  string
	FramesTopic   string
	PublishFrames bool
}

// TrafficPublisher publishes the figure changes of every detection
type TrafficPublisher struct {
	detector  *detect.Detector
	publisher transport.Publisher
	cfg       Config
	logger    *zap.Logger

	events int
	frames int
}

// New creates a publisher
func New(detector *detect.Detector, publisher transport.Publisher, cfg Config, logger *zap.Logger) *TrafficPublisher {
	return &TrafficPublisher{
		detector:  detector,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run publishes until the frame source is exhausted, a publish fails or ctx
// is canceled
func (p *TrafficPublisher) Run(ctx context.Context) error {
	err := p.detector.Run(ctx, p.publish)
	p.logger.Info("publisher finished",
		zap.Int("events", p.events),
		zap.Int("frames", p.frames),
		zap.Error(err),
	)
	return err
}

func (p *TrafficPublisher) publish(ctx context.Context, det detect.Detection) error {
	if len(det.Figures) > 0 {
		payload, err := codec.EncodeFigures(det.Figures)
		if err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", det.Index, err)
		}
		if err := p.publisher.Publish(ctx, p.cfg.UpdatesTopic, payload, codec.SchemaName, codec.SchemaVersion); err != nil {
			return err
		}
		p.events++
		p.logger.Debug("traffic update published",
			zap.Int("frame", det.Index),
			zap.Int("figures", len(det.Figures)),
		)
	}

	if !p.cfg.PublishFrames || det.Frame == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, det.Frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", det.Index, err)
	}
	if err := p.publisher.Publish(ctx, p.cfg.FramesTopic, buf.Bytes(), FrameSchemaName, FrameSchemaVersion); err != nil {
		return err
	}
	p.frames++
	return nil
}
