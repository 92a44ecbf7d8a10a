package layers

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/shape"
	"github.com/gogpu/ggtile/surface"
	"github.com/gogpu/ggtile/tile"
	"github.com/gogpu/ggtile/tileindex"
)

// CanvasBackend renders a layer onto one viewport-sized surface that is
// rebaked as a whole whenever anything on the layer changes. It suits
// layers holding few large shapes, such as reference images.
//
// Thread safety: CanvasBackend is safe for concurrent use.
type CanvasBackend struct {
	mu sync.Mutex

	layerID  string
	source   shape.Source
	registry *shape.Registry
	provider surface.Provider
	observer ggtile.Observer
	log      *slog.Logger

	background color.Color
	viewport   ggtile.Rect
	scale      float64
	surf       surface.Surface

	// known holds the shapes of the last bake plus those routed since.
	known map[string]struct{}

	dirty  bool
	hidden bool
}

// NewCanvasBackend creates a canvas backend for layerID. A nil registry
// selects the built-in painters and a nil provider the best registered
// surface provider.
func NewCanvasBackend(layerID string, source shape.Source, registry *shape.Registry, provider surface.Provider) (*CanvasBackend, error) {
	if source == nil {
		return nil, tile.ErrNilSource
	}
	if registry == nil {
		registry = shape.NewDefaultRegistry()
	}
	if provider == nil {
		p, err := surface.OpenProvider("")
		if err != nil {
			return nil, fmt.Errorf("layers: canvas %s: %w", layerID, err)
		}
		provider = p
	}
	return &CanvasBackend{
		layerID:  layerID,
		source:   source,
		registry: registry,
		provider: provider,
		observer: ggtile.NopObserver{},
		log:      ggtile.Logger().With("layer", layerID),
		scale:    1,
		dirty:    true,
		known:    make(map[string]struct{}),
	}, nil
}

// LayerID implements Backend.
func (c *CanvasBackend) LayerID() string { return c.layerID }

// Kind implements Backend.
func (c *CanvasBackend) Kind() Kind { return KindImage }

// UpdateViewport implements Backend. The surface is re-acquired when the
// pixel size changes; any viewport change marks the canvas dirty.
func (c *CanvasBackend) UpdateViewport(viewport ggtile.Rect, scale float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if scale <= 0 {
		scale = 1
	}
	if viewport == c.viewport && scale == c.scale && c.surf != nil {
		return nil
	}
	c.viewport = viewport
	c.scale = scale
	c.dirty = true

	w, h := c.pixelSize()
	if c.surf != nil && c.surf.Width() == w && c.surf.Height() == h {
		return nil
	}
	c.release()
	if viewport.Empty() {
		return nil
	}
	s, err := c.provider.Acquire(tileindex.Coord{}, w, h)
	if err != nil {
		return fmt.Errorf("layers: canvas %s: %w", c.layerID, err)
	}
	if s.Target() == nil {
		c.provider.Release(tileindex.Coord{}, s)
		return fmt.Errorf("layers: canvas %s: %w", c.layerID, surface.ErrNoContext)
	}
	c.surf = s
	return nil
}

// SetRenderIdentity implements Backend.
func (c *CanvasBackend) SetRenderIdentity(ggtile.RenderIdentity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = true
	return nil
}

// RouteShapes implements Backend.
func (c *CanvasBackend) RouteShapes(dirty []*shape.Shape, deleted []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range dirty {
		c.known[s.ID] = struct{}{}
	}
	for _, id := range deleted {
		delete(c.known, id)
	}
	if len(dirty)+len(deleted) > 0 {
		c.dirty = true
	}
}

// Knows implements Backend.
func (c *CanvasBackend) Knows(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.known[id]
	return ok
}

// InvalidateRect implements Backend.
func (c *CanvasBackend) InvalidateRect(r ggtile.Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.viewport.Empty() || r.Intersects(c.viewport) {
		c.dirty = true
	}
}

// Invalidate implements Backend.
func (c *CanvasBackend) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = true
}

// NeedsBake implements Backend.
func (c *CanvasBackend) NeedsBake() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty && c.surf != nil
}

// Bake implements Backend.
func (c *CanvasBackend) Bake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bakeLocked(ctx)
}

func (c *CanvasBackend) bakeLocked(ctx context.Context) error {
	if !c.dirty || c.surf == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	dc, err := surface.NewContext(c.surf, ggtile.DocumentToSurface(c.viewport.Min(), c.scale), c.background)
	if err != nil {
		return err
	}
	dc.Clear()

	clear(c.known)
	var errs []error
	for _, s := range c.source.OrderedShapesForLayer(c.layerID) {
		c.known[s.ID] = struct{}{}
		if b, ok := c.registry.Bounds(s); ok && !b.Intersects(c.viewport) {
			continue
		}
		if _, err := c.registry.Paint(dc, s); err != nil {
			errs = append(errs, err)
		}
	}
	failed := 0
	if len(errs) > 0 {
		failed = 1
		c.log.Warn("layers: canvas bake failed", "errors", len(errs))
	} else {
		c.dirty = false
	}
	c.observer.BakeFinished(ggtile.BakeStats{
		LayerID:  c.layerID,
		Tiles:    1 - failed,
		Failed:   failed,
		Full:     true,
		Duration: time.Since(start),
	})
	if len(errs) > 0 {
		return fmt.Errorf("layers: canvas %s: %w", c.layerID, errors.Join(errs...))
	}
	return nil
}

// SetHidden implements Backend.
func (c *CanvasBackend) SetHidden(hidden bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hidden = hidden
}

// Composite implements Backend.
func (c *CanvasBackend) Composite(dst draw.Image, viewport ggtile.Rect, scale float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hidden {
		return
	}
	c.compositeLocked(dst, viewport, scale)
}

func (c *CanvasBackend) compositeLocked(dst draw.Image, viewport ggtile.Rect, scale float64) {
	if c.surf == nil {
		return
	}
	o := dst.Bounds().Min
	m := ggtile.Translate(float64(o.X), float64(o.Y)).
		Multiply(ggtile.DocumentToSurface(viewport.Min(), scale))
	surface.NewImageContext(dst, m, nil).DrawImage(c.surf.Target(), c.viewport)
}

// Capture implements Backend.
func (c *CanvasBackend) Capture(ctx context.Context, scale float64) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.bakeLocked(ctx)
	if c.surf == nil {
		return nil, err
	}
	if scale <= 0 {
		scale = c.scale
	}
	w := max(1, int(math.Ceil(c.viewport.Width()*scale)))
	h := max(1, int(math.Ceil(c.viewport.Height()*scale)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c.compositeLocked(img, c.viewport, scale)
	return img, err
}

// Close implements Backend.
func (c *CanvasBackend) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.release()
	return nil
}

func (c *CanvasBackend) release() {
	if c.surf != nil {
		c.provider.Release(tileindex.Coord{}, c.surf)
		c.surf = nil
	}
}

func (c *CanvasBackend) pixelSize() (int, int) {
	w := max(1, int(math.Ceil(c.viewport.Width()*c.scale)))
	h := max(1, int(math.Ceil(c.viewport.Height()*c.scale)))
	return w, h
}
