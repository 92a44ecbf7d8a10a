// Package hot renders in-progress draft shapes onto a screen-space overlay.
//
// The overlay is repainted from scratch on every RenderDrafts call. It keeps
// no dirty state and never touches tile surfaces; settled pixels reach it
// only through a backdrop image that the caller captured and owns.
package hot

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"slices"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/shape"
	"github.com/gogpu/ggtile/surface"
)

// Option configures a Layer.
type Option func(*Layer)

// WithBackground sets the flat fill painted under the backdrop.
func WithBackground(c color.Color) Option {
	return func(l *Layer) {
		l.background = c
	}
}

// WithLogger sets the layer logger. The shared ggtile logger is used otherwise.
func WithLogger(log *slog.Logger) Option {
	return func(l *Layer) {
		l.log = log
	}
}

// Layer is the hot overlay.
//
// Thread safety: Layer is safe for concurrent use.
type Layer struct {
	mu sync.Mutex

	registry *shape.Registry
	surf     *surface.ImageSurface

	viewport   ggtile.Rect
	pixelRatio float64
	background color.Color
	backdrop   *image.RGBA

	log *slog.Logger
}

// New creates an overlay of width x height pixels. A nil registry selects
// the built-in painters.
func New(registry *shape.Registry, width, height int, opts ...Option) *Layer {
	if registry == nil {
		registry = shape.NewDefaultRegistry()
	}
	l := &Layer{
		registry:   registry,
		surf:       surface.NewImageSurface(width, height),
		pixelRatio: 1,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = ggtile.LoggerOr(l.log)
	return l
}

// SetViewport sets the document rectangle shown at the overlay's top-left
// corner and the pixels per document unit.
func (l *Layer) SetViewport(viewport ggtile.Rect, pixelRatio float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.viewport = viewport
	if pixelRatio > 0 {
		l.pixelRatio = pixelRatio
	}
}

// Resize replaces the overlay with a blank one of the given size.
func (l *Layer) Resize(width, height int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.surf.Width() == width && l.surf.Height() == height {
		return
	}
	_ = l.surf.Close()
	l.surf = surface.NewImageSurface(width, height)
}

// SetBackground sets the flat fill. Nil means transparent.
func (l *Layer) SetBackground(c color.Color) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.background = c
}

// SetBackdrop sets the image composited beneath the drafts. It is scaled
// to the overlay size. Nil removes the backdrop. The image is not copied
// and must not be modified while set.
func (l *Layer) SetBackdrop(img *image.RGBA) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backdrop = img
}

// Backdrop returns the current backdrop, nil if none.
func (l *Layer) Backdrop() *image.RGBA {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backdrop
}

// RenderDrafts repaints the overlay: clear, optional flat fill, backdrop,
// then the drafts in z-order under the viewport transform. A painter error
// does not stop the remaining drafts; all errors are returned joined.
func (l *Layer) RenderDrafts(drafts []*shape.Shape) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, err := surface.NewContext(l.surf, ggtile.DocumentToSurface(l.viewport.Min(), l.pixelRatio), l.background)
	if err != nil {
		return err
	}
	ctx.Clear()
	if l.backdrop != nil {
		dst := l.surf.Image()
		if l.backdrop.Bounds().Size() == dst.Bounds().Size() {
			draw.Draw(dst, dst.Bounds(), l.backdrop, l.backdrop.Bounds().Min, draw.Over)
		} else {
			xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), l.backdrop, l.backdrop.Bounds(), draw.Over, nil)
		}
	}

	ordered := slices.Clone(drafts)
	shape.Sort(ordered)

	var errs []error
	for _, s := range ordered {
		if _, err := l.registry.Paint(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		l.log.Warn("hot: draft paint failed", "errors", len(errs))
	}
	return errors.Join(errs...)
}

// Image returns the overlay pixels. The image is reused by the next
// RenderDrafts call.
func (l *Layer) Image() *image.RGBA {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.surf.Image()
}

// Composite draws the overlay over dst at dst's origin.
func (l *Layer) Composite(dst draw.Image) {
	l.mu.Lock()
	defer l.mu.Unlock()

	img := l.surf.Image()
	r := img.Bounds().Add(dst.Bounds().Min)
	draw.Draw(dst, r, img, img.Bounds().Min, draw.Over)
}
