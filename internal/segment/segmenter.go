package segment

import (
	"image"
	"math"

	"github.com/disintegration/gift"
	"gonum.org/v1/gonum/floats"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/config"
	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/models"
)

// Segmenter owns the running background average for one frame source
type Segmenter struct {
	cfg    config.SegmenterConfig
	filter *gift.GIFT
	avg    []float64
	cur    []float64
	width  int
	height int
}

// NewSegmenter creates a segmenter with no background yet
func NewSegmenter(cfg config.SegmenterConfig) *Segmenter {
	filters := []gift.Filter{
		gift.Resize(cfg.Width, cfg.Height, gift.LinearResampling),
		gift.Grayscale(),
	}
	if cfg.BlurSigma > 0 {
		filters = append(filters, gift.GaussianBlur(float32(cfg.BlurSigma)))
	}

	return &Segmenter{
		cfg:    cfg,
		filter: gift.New(filters...),
	}
}

// Preprocess resizes the frame to the working resolution, converts it to
// intensity and blurs it. It is stateless.
func (s *Segmenter) Preprocess(frame image.Image) *image.Gray {
	dst := image.NewGray(s.filter.Bounds(frame.Bounds()))
	s.filter.Draw(dst, frame)
	return dst
}

// Seeded reports whether the background average has been initialised
func (s *Segmenter) Seeded() bool {
	return s.avg != nil
}

// Apply folds a preprocessed frame into the running average and returns the
// boxes of moving regions. The first frame (or the first after a resolution
// change) only seeds the average; ok is false and no boxes are returned.
func (s *Segmenter) Apply(frame *image.Gray) (boxes []models.BoundingBox, ok bool) {
	w, h := frame.Rect.Dx(), frame.Rect.Dy()
	if s.avg == nil || w != s.width || h != s.height {
		s.width, s.height = w, h
		s.avg = make([]float64, w*h)
		s.cur = make([]float64, w*h)
		grayToFloats(frame, s.avg)
		return nil, false
	}

	grayToFloats(frame, s.cur)
	return detectRects(s.cfg, s.avg, s.cur, w, h), true
}

// detectRects updates avg in place with cur and returns the filtered boxes
// of the thresholded, dilated difference mask.
func detectRects(cfg config.SegmenterConfig, avg, cur []float64, w, h int) []models.BoundingBox {
	floats.Scale(1-cfg.Alpha, avg)
	floats.AddScaled(avg, cfg.Alpha, cur)

	m := newMask(w, h)
	cutoff := float64(cfg.Threshold)
	for i, v := range cur {
		if math.Abs(v-saturate(avg[i])) > cutoff {
			m.bits[i] = true
		}
	}

	m = m.dilate(cfg.DilateIterations)

	var boxes []models.BoundingBox
	for _, r := range m.regions() {
		if r.area < float64(cfg.MinArea) || r.area > float64(cfg.MaxArea) {
			continue
		}
		boxes = append(boxes, r.box)
	}
	return boxes
}

// saturate rounds half to even and clamps to [0,255]
func saturate(v float64) float64 {
	return math.Min(255, math.Max(0, math.RoundToEven(v)))
}

func grayToFloats(img *image.Gray, dst []float64) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		out := dst[y*w : (y+1)*w]
		for x, v := range row {
			out[x] = float64(v)
		}
	}
}
