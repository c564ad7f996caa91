// Package detect runs motion segmentation and identity tracking over a
// frame source.
package detect

import (
	"context"
	"errors"
	"image"
	"io"

	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/framesource"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/models"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/segment"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/track"
)

// Detection is the result of one processed frame
type Detection struct {
	Index   int
	Figures []models.Figure
	Boxes   []models.BoundingBox
	Frame   *image.Gray
}

// Detector owns the background model and live figures for one source
type Detector struct {
	source    framesource.Source
	segmenter *segment.Segmenter
	tracker   *track.Tracker
	logger    *zap.Logger
	frames    int
}

// NewDetector creates a detector over source
func NewDetector(source framesource.Source, segmenter *segment.Segmenter, tracker *track.Tracker, logger *zap.Logger) *Detector {
	return &Detector{
		source:    source,
		segmenter: segmenter,
		tracker:   tracker,
		logger:    logger,
	}
}

// Next processes frames until one yields a detection. It returns io.EOF when
// the source is exhausted or a frame cannot be read, and ctx.Err() when ctx
// is canceled.
func (d *Detector) Next(ctx context.Context) (Detection, error) {
	for {
		img, err := d.source.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Detection{}, ctxErr
			}
			if !errors.Is(err, io.EOF) {
				d.logger.Warn("frame source failed, ending stream", zap.Error(err))
			}
			return Detection{}, io.EOF
		}
		d.frames++

		frame := d.segmenter.Preprocess(img)
		boxes, ok := d.segmenter.Apply(frame)
		if !ok {
			d.logger.Debug("background seeded", zap.Int("frame", d.frames))
			continue
		}

		figures := d.tracker.Update(boxes)
		segment.DrawBoxes(frame, boxes)

		return Detection{
			Index:   d.frames,
			Figures: figures,
			Boxes:   boxes,
			Frame:   frame,
		}, nil
	}
}

// Run calls fn for every detection until the source ends, fn fails or ctx
// is canceled. End of stream is not an error.
func (d *Detector) Run(ctx context.Context, fn func(context.Context, Detection) error) error {
	for {
		det, err := d.Next(ctx)
		if errors.Is(err, io.EOF) {
			d.logger.Info("frame source exhausted", zap.Int("frames", d.frames))
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(ctx, det); err != nil {
			return err
		}
	}
}
