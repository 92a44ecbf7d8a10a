package layers

import (
	"context"
	"image"
	"image/draw"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/shape"
	"github.com/gogpu/ggtile/tile"
)

// Backend is the raster backend of one layer.
type Backend interface {
	LayerID() string
	Kind() Kind

	UpdateViewport(viewport ggtile.Rect, scale float64) error
	SetRenderIdentity(id ggtile.RenderIdentity) error

	// RouteShapes invalidates the footprint of dirty shapes and of deleted
	// shape ids, escalating when a footprint is unknown.
	RouteShapes(dirty []*shape.Shape, deleted []string)
	// Knows reports whether the backend may have painted shape id, either
	// because it was routed there or because a bake found it on the layer.
	Knows(id string) bool
	// InvalidateRect invalidates a document region.
	InvalidateRect(r ggtile.Rect)
	// Invalidate marks the whole layer for a bake.
	Invalidate()

	NeedsBake() bool
	Bake(ctx context.Context) error

	SetHidden(hidden bool)
	// Composite draws the layer over dst, which covers viewport at scale.
	Composite(dst draw.Image, viewport ggtile.Rect, scale float64)
	// Capture bakes, then returns the layer pixels covering the viewport.
	Capture(ctx context.Context, scale float64) (*image.RGBA, error)

	Close() error
}

// tileBackend adapts a tile.Renderer.
type tileBackend struct {
	*tile.Renderer
}

func (b tileBackend) Kind() Kind { return KindDrawing }

func (b tileBackend) UpdateViewport(viewport ggtile.Rect, _ float64) error {
	return b.Renderer.UpdateViewport(viewport)
}

func (b tileBackend) RouteShapes(dirty []*shape.Shape, deleted []string) {
	escalate := false
	ids := make([]string, 0, len(dirty)+len(deleted))
	for _, s := range dirty {
		if !b.UpdateTouchedTilesForShape(s) {
			escalate = true
		}
		ids = append(ids, s.ID)
	}
	for _, id := range deleted {
		if !b.ForgetShape(id) {
			escalate = true
		}
		ids = append(ids, id)
	}
	if escalate {
		// Drop the touched sets too; the clear covers them.
		b.ScheduleBakeForShapes(ids)
		b.ScheduleBakeForClear()
		return
	}
	b.ScheduleBakeForShapes(ids)
}

func (b tileBackend) InvalidateRect(r ggtile.Rect) { b.ScheduleBakeForRect(r) }

func (b tileBackend) Invalidate() { b.ScheduleBakeForClear() }

func (b tileBackend) Bake(ctx context.Context) error { return b.BakePendingTiles(ctx) }

func (b tileBackend) Capture(ctx context.Context, scale float64) (*image.RGBA, error) {
	return b.CaptureViewportSnapshot(ctx, scale)
}
