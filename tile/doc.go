// Package tile implements the tiled backend of one document layer.
//
// A Renderer owns the live tile grid for a layer: one surface per visible
// tile, acquired lazily from a surface.Provider and released when the tile
// scrolls out of view. It tracks which tiles need a bake, bakes them from
// the authoritative shape list, and serves cached snapshots to tiles that
// re-enter the viewport.
//
// Per tile key the renderer moves through
//
//	absent -> visible(clean) -> visible(pending) -> visible(clean)
//
// and back to absent on scroll-out. A bake always repaints the whole tile,
// so baking the same document twice yields the same pixels no matter which
// edits produced it.
//
// Basic usage:
//
//	r, err := tile.New("layer-1", doc, shape.NewDefaultRegistry(), surface.NewPool(),
//	    tile.WithSnapshotAdapter(surface.RGBAAdapter{}))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	r.UpdateViewport(viewport)
//	r.UpdateTouchedTilesForShape(s)
//	r.ScheduleBakeForShape(s.ID)
//	err = r.BakePendingTiles(ctx)
package tile
