// Package shape defines the document shapes the raster engine paints and
// the registry that knows how to bound and paint each shape type.
//
// The engine treats a shape as opaque apart from its ID, LayerID, ZIndex
// and Type. Everything else is interpreted by the Painter registered for the
// shape's type tag. A type without a registered painter is unknown: it has
// no bounds, so every change to it escalates to full-layer invalidation, and
// it is skipped when painting.
//
// Built-in types:
//
//	pen    stroked polyline through Points, Width wide
//	box    Rect, filled when Width is zero, outlined otherwise
//	text   Text drawn at Rect's top-left corner, Size units per line
//	image  Image scaled into Rect
//	clear  unbounded; fills the target with its background
package shape
