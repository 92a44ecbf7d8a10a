// Package ggtile renders a mutable vector-shape document as pixels,
// incrementally, while a user draws.
//
// # Overview
//
// A document is organized into z-ordered layers. Each drawing layer is
// composited from a grid of raster tiles that are rebuilt ("baked") only
// where shapes changed; image layers use a single viewport-sized canvas. A
// separate hot overlay renders in-progress strokes every frame over a frozen
// backdrop without touching the tile cache.
//
// # Packages
//
// The engine is organized into:
//   - tileindex: document rectangle to tile coordinate mapping
//   - snapshot: tile pixel snapshots keyed by render identity
//   - surface: raster surfaces, the drawing context and surface providers
//   - shape: shapes and the painter/bounds registry
//   - bake: the serialized bake queue
//   - tile: the per-layer tile renderer
//   - hot: the live draft overlay
//   - layers: the layer stack and frame composition
//   - diff: routing of document diffs to invalidations
//   - session: the single-surface drafting coordinator
//   - present: GPU texture presentation of composed frames
//
// # Coordinate System
//
// Document space uses standard computer graphics coordinates:
//   - Origin (0,0) at top-left
//   - X increases right
//   - Y increases down
//
// Tiles are addressed by integer coordinates; tile (x, y) covers
// [x*size, (x+1)*size) × [y*size, (y+1)*size) in document units.
//
// # Logging
//
// ggtile is silent by default. Call [SetLogger] to route diagnostics from
// every sub-package to a [log/slog.Logger].
package ggtile

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"
)
