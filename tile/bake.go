package tile

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"time"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/shape"
	"github.com/gogpu/ggtile/surface"
)

// BakePendingTiles repaints the tiles that need it.
//
// If a full invalidation is pending every visible tile is repainted and the
// flag is cleared; otherwise exactly the visible pending tiles are
// repainted, in scheduling order. Pending tiles outside the viewport stay
// pending. With a snapshot adapter configured, each successfully baked tile
// is captured under the current render identity.
//
// A painter error fails only its tile: the tile keeps whatever the painter
// left, is not captured, and baking continues. All tile errors are returned
// joined. If ctx ends between two tiles the remaining ones are put back
// into the pending set and ctx.Err() is included in the result.
func (r *Renderer) BakePendingTiles(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bakeLocked(ctx)
}

func (r *Renderer) bakeLocked(ctx context.Context) error {
	if r.closed {
		return nil
	}
	start := time.Now()
	full := r.full

	var keys []string
	if full {
		keys = append(keys, r.order...)
		r.full = false
		r.pending.Clear()
	} else {
		keys = r.pending.Take(func(key string) bool {
			_, ok := r.tiles[key]
			return ok
		})
	}

	var shapes []*shape.Shape
	if len(keys) > 0 {
		shapes = r.source.OrderedShapesForLayer(r.layerID)
		r.learn(shapes)
	}

	var errs []error
	baked, failed := 0, 0
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			r.pending.AddAll(keys[i:])
			errs = append(errs, err)
			break
		}
		e := r.tiles[key]
		if err := r.bakeTile(e, shapes); err != nil {
			e.valid = false
			failed++
			errs = append(errs, fmt.Errorf("tile %s: %w", key, err))
			continue
		}
		e.valid = true
		baked++
		r.capture(key, e)
	}

	stats := ggtile.BakeStats{
		LayerID:  r.layerID,
		Tiles:    baked,
		Failed:   failed,
		Full:     full,
		Duration: time.Since(start),
	}
	r.observer.BakeFinished(stats)
	if len(keys) > 0 {
		r.log.Debug("tile: bake finished", "tiles", baked, "failed", failed, "full", full,
			"duration", stats.Duration)
	}
	return errors.Join(errs...)
}

// bakeTile repaints one tile from scratch: clear to the background, then
// paint every shape whose bounds meet the tile. Unbounded shapes always
// paint.
func (r *Renderer) bakeTile(e *entry, shapes []*shape.Shape) error {
	tr := e.coord.Rect(r.tileSize)
	ctx, err := surface.NewContext(e.surf, ggtile.DocumentToSurface(tr.Min(), r.pixelRatio), r.background)
	if err != nil {
		return err
	}
	ctx.Clear()

	for _, s := range shapes {
		if b, ok := r.registry.Bounds(s); ok && !b.Intersects(tr) {
			continue
		}
		painted, err := r.registry.Paint(ctx, s)
		if err != nil {
			return err
		}
		if !painted {
			r.log.Debug("tile: skipped shape of unknown type", "shape", s.ID, "type", s.Type)
		}
	}
	return nil
}

// capture stores the pixels of a freshly baked tile.
func (r *Renderer) capture(key string, e *entry) {
	if r.adapter == nil {
		return
	}
	snap, err := r.adapter.Capture(e.surf)
	if err != nil {
		r.log.Warn("tile: snapshot capture failed", "tile", key, "err", err)
		return
	}
	r.store.Put(r.snapshotKey(key), snap)
}

// CaptureViewportSnapshot flushes pending bakes, then composites every
// visible tile into one image covering the viewport at scale pixels per
// document unit. It returns nil if no viewport was set.
//
// A bake failure does not prevent the capture: the image is returned
// together with the bake error.
func (r *Renderer) CaptureViewportSnapshot(ctx context.Context, scale float64) (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bakeErr := r.bakeLocked(ctx)
	if !r.hasViewport || r.viewport.Empty() {
		return nil, bakeErr
	}
	if scale <= 0 {
		scale = r.pixelRatio
	}
	w := max(1, int(math.Ceil(r.viewport.Width()*scale)))
	h := max(1, int(math.Ceil(r.viewport.Height()*scale)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	r.compositeLocked(img, r.viewport, scale)
	return img, bakeErr
}

// Composite draws the visible tiles over dst, mapping viewport onto dst's
// bounds at scale pixels per document unit. Hidden renderers draw nothing.
func (r *Renderer) Composite(dst draw.Image, viewport ggtile.Rect, scale float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hidden {
		return
	}
	r.compositeLocked(dst, viewport, scale)
}

func (r *Renderer) compositeLocked(dst draw.Image, viewport ggtile.Rect, scale float64) {
	o := dst.Bounds().Min
	m := ggtile.Translate(float64(o.X), float64(o.Y)).
		Multiply(ggtile.DocumentToSurface(viewport.Min(), scale))
	ctx := surface.NewImageContext(dst, m, nil)
	for _, key := range r.order {
		e := r.tiles[key]
		if !e.valid {
			continue
		}
		ctx.DrawImage(e.surf.Target(), e.coord.Rect(r.tileSize))
	}
}
