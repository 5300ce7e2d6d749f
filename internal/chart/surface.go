// Package chart implements the scoped rendering surface that captures charts drawn
// as a side effect of an operation.
package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// MediaTypePNG is the media type of captured charts.
const MediaTypePNG = "image/png"

// ErrNoSurface is returned when a plotting operation runs outside a capture scope.
var ErrNoSurface = errors.New("no chart surface in scope")

// Image is a captured chart.
type Image struct {
	MediaType string
	Data      []byte
}

// Surface collects at most one plot between Open and Close.
type Surface struct {
	mu     sync.Mutex
	plot   *plot.Plot
	width  vg.Length
	height vg.Length
}

// Option configures a Surface.
type Option func(*Surface)

// WithSize sets the rendered chart size.
func WithSize(width, height vg.Length) Option {
	return func(s *Surface) {
		s.width = width
		s.height = height
	}
}

// Open starts a capture scope. The caller must call Close or Discard.
func Open(opts ...Option) *Surface {
	s := &Surface{width: 6 * vg.Inch, height: 4 * vg.Inch}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Draw hands the scope's plot to fn, creating it on first use.
func (s *Surface) Draw(fn func(p *plot.Plot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plot == nil {
		s.plot = plot.New()
	}
	return fn(s.plot)
}

// Drawn reports whether anything was drawn in this scope.
func (s *Surface) Drawn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plot != nil
}

// Close renders whatever was drawn as PNG and clears the surface.
// It returns nil when nothing was drawn.
func (s *Surface) Close() (*Image, error) {
	s.mu.Lock()
	p := s.plot
	s.plot = nil
	s.mu.Unlock()

	if p == nil {
		return nil, nil
	}

	canvas := vgimg.New(s.width, s.height)
	p.Draw(draw.New(canvas))

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return &Image{MediaType: MediaTypePNG, Data: buf.Bytes()}, nil
}

// Discard clears the surface without rendering. Safe to call after Close.
func (s *Surface) Discard() {
	s.mu.Lock()
	s.plot = nil
	s.mu.Unlock()
}

type surfaceKey struct{}

// WithSurface returns a context carrying s.
func WithSurface(ctx context.Context, s *Surface) context.Context {
	return context.WithValue(ctx, surfaceKey{}, s)
}

// FromContext returns the surface in scope.
func FromContext(ctx context.Context) (*Surface, error) {
	s, ok := ctx.Value(surfaceKey{}).(*Surface)
	if !ok || s == nil {
		return nil, ErrNoSurface
	}
	return s, nil
}
