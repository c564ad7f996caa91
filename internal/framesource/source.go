// Package framesource supplies decoded video frames to the detector.
package framesource

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Source yields frames in order. Next returns io.EOF once no frame can be
// read, including when a frame fails to decode.
type Source interface {
	Next(ctx context.Context) (image.Image, error)
}

var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Dir reads frames from image files in a directory, in lexical file name
// order
type Dir struct {
	paths  []string
	pos    int
	logger *zap.Logger
}

// OpenDir lists the frame files in dir
func OpenDir(dir string, logger *zap.Logger) (*Dir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list frames in %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	logger.Info("frame directory opened", zap.String("dir", dir), zap.Int("frames", len(paths)))
	return &Dir{paths: paths, logger: logger}, nil
}

// Len returns the number of frame files found
func (d *Dir) Len() int {
	return len(d.paths)
}

// Next decodes the next frame file
func (d *Dir) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.pos >= len(d.paths) {
		return nil, io.EOF
	}
	path := d.paths[d.pos]
	d.pos++

	img, err := decodeFile(path)
	if err != nil {
		d.logger.Warn("frame unreadable, ending stream", zap.String("path", path), zap.Error(err))
		d.pos = len(d.paths)
		return nil, io.EOF
	}
	return img, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// Slice serves frames held in memory
type Slice struct {
	frames []image.Image
	pos    int
}

// NewSlice creates a source over frames
func NewSlice(frames ...image.Image) *Slice {
	return &Slice{frames: frames}
}

// Next returns the next frame. A nil frame ends the stream.
func (s *Slice) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) || s.frames[s.pos] == nil {
		s.pos = len(s.frames)
		return nil, io.EOF
	}
	img := s.frames[s.pos]
	s.pos++
	return img, nil
}
