// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/gogpu/ggtile"
)

// dotSegments is the polygon resolution used for single-point strokes.
const dotSegments = 24

// Context is the drawing context handed to shape painters.
//
// Coordinates passed to Context methods are in document units and are mapped
// to surface pixels by the context transform. A Context is valid for one
// bake or one hot-layer frame and must not be retained.
type Context struct {
	dst        draw.Image
	bounds     image.Rectangle
	m          ggtile.Matrix
	background color.Color
}

// NewContext binds s to the document-to-pixel transform m.
// Returns ErrNoContext if s cannot produce a drawing target.
func NewContext(s Surface, m ggtile.Matrix, background color.Color) (*Context, error) {
	if s == nil {
		return nil, ErrNoContext
	}
	dst := s.Target()
	if dst == nil {
		return nil, ErrNoContext
	}
	return NewImageContext(dst, m, background), nil
}

// NewImageContext binds an image directly, for overlays that do not come
// from a provider.
func NewImageContext(dst draw.Image, m ggtile.Matrix, background color.Color) *Context {
	return &Context{
		dst:        dst,
		bounds:     dst.Bounds(),
		m:          m,
		background: background,
	}
}

// Transform returns the document-to-pixel transform.
func (c *Context) Transform() ggtile.Matrix {
	return c.m
}

// Bounds returns the pixel bounds of the target.
func (c *Context) Bounds() image.Rectangle {
	return c.bounds
}

// Visible returns the document-space rectangle covered by the target.
func (c *Context) Visible() ggtile.Rect {
	b := c.bounds
	return c.m.Invert().TransformRect(ggtile.R(
		float64(b.Min.X), float64(b.Min.Y), float64(b.Max.X), float64(b.Max.Y),
	))
}

// Background returns the background color, nil for transparent.
func (c *Context) Background() color.Color {
	return c.background
}

// Clear replaces every pixel with the background color.
func (c *Context) Clear() {
	var src image.Image = image.Transparent
	if c.background != nil {
		src = image.NewUniform(c.background)
	}
	draw.Draw(c.dst, c.bounds, src, image.Point{}, draw.Src)
}

// FillRect fills a document-space rectangle.
func (c *Context) FillRect(r ggtile.Rect, col color.Color) {
	if r.Empty() {
		return
	}
	c.FillPolygon([]ggtile.Point{
		{X: r.MinX, Y: r.MinY},
		{X: r.MaxX, Y: r.MinY},
		{X: r.MaxX, Y: r.MaxY},
		{X: r.MinX, Y: r.MaxY},
	}, col)
}

// FillPolygon fills the closed polygon pts with the nonzero rule.
func (c *Context) FillPolygon(pts []ggtile.Point, col color.Color) {
	if len(pts) < 3 || col == nil {
		return
	}
	px := c.toPixels(pts)
	pb := ggtile.RectFromPoints(px...).PixelBounds().Intersect(c.bounds)
	if pb.Empty() {
		return
	}

	ox, oy := float64(pb.Min.X), float64(pb.Min.Y)
	z := vector.NewRasterizer(pb.Dx(), pb.Dy())
	z.DrawOp = draw.Over
	z.MoveTo(float32(px[0].X-ox), float32(px[0].Y-oy))
	for _, p := range px[1:] {
		z.LineTo(float32(p.X-ox), float32(p.Y-oy))
	}
	z.ClosePath()
	z.Draw(c.dst, pb, image.NewUniform(col), image.Point{})
}

// StrokeRect outlines a document-space rectangle.
func (c *Context) StrokeRect(r ggtile.Rect, width float64, col color.Color) {
	if r.Empty() {
		return
	}
	c.strokePath([]ggtile.Point{
		{X: r.MinX, Y: r.MinY},
		{X: r.MaxX, Y: r.MinY},
		{X: r.MaxX, Y: r.MaxY},
		{X: r.MinX, Y: r.MaxY},
	}, width, col, true)
}

// StrokePolyline strokes an open polyline with round caps and joins.
// A polyline whose points all coincide is drawn as a dot.
func (c *Context) StrokePolyline(pts []ggtile.Point, width float64, col color.Color) {
	if len(pts) == 0 || width <= 0 || col == nil {
		return
	}
	if isDot(pts) {
		c.FillCircle(pts[0], width/2, col)
		return
	}
	c.strokePath(pts, width, col, false)
}

// FillCircle fills a circle approximated by a regular polygon.
func (c *Context) FillCircle(center ggtile.Point, radius float64, col color.Color) {
	if radius <= 0 {
		return
	}
	poly := make([]ggtile.Point, dotSegments)
	for i := range poly {
		a := 2 * math.Pi * float64(i) / dotSegments
		poly[i] = ggtile.Point{
			X: center.X + radius*math.Cos(a),
			Y: center.Y + radius*math.Sin(a),
		}
	}
	c.FillPolygon(poly, col)
}

// DrawImage draws img scaled into the document-space rectangle dst.
func (c *Context) DrawImage(img image.Image, dst ggtile.Rect) {
	if img == nil || dst.Empty() {
		return
	}
	pr := c.m.TransformRect(dst)
	r := image.Rect(
		int(math.Round(pr.MinX)), int(math.Round(pr.MinY)),
		int(math.Round(pr.MaxX)), int(math.Round(pr.MaxY)),
	)
	if r.Empty() || !r.Overlaps(c.bounds) {
		return
	}
	if r.Size() == img.Bounds().Size() {
		draw.Draw(c.dst, r, img, img.Bounds().Min, draw.Over)
		return
	}
	xdraw.ApproxBiLinear.Scale(c.dst, r, img, img.Bounds(), draw.Over, nil)
}

func (c *Context) strokePath(pts []ggtile.Point, width float64, col color.Color, closed bool) {
	if width <= 0 || col == nil {
		return
	}
	px := c.toPixels(pts)
	w := width * c.m.ScaleFactor()
	pb := ggtile.RectFromPoints(px...).Expand(w/2 + 2).PixelBounds().Intersect(c.bounds)
	if pb.Empty() {
		return
	}

	b := c.bounds
	off := ggtile.Point{X: float64(b.Min.X), Y: float64(b.Min.Y)}
	scanner := rasterx.NewScannerGV(b.Dx(), b.Dy(), c.dst, b)
	d := rasterx.NewDasher(b.Dx(), b.Dy(), scanner)
	d.SetStroke(toFixed(w), toFixed(4), rasterx.RoundCap, nil, nil, rasterx.Round, nil, 0)
	d.SetColor(col)
	d.Start(toFixedPoint(px[0].Sub(off)))
	for _, p := range px[1:] {
		d.Line(toFixedPoint(p.Sub(off)))
	}
	d.Stop(closed)
	d.Draw()
}

func (c *Context) toPixels(pts []ggtile.Point) []ggtile.Point {
	px := make([]ggtile.Point, len(pts))
	for i, p := range pts {
		px[i] = c.m.TransformPoint(p)
	}
	return px
}

func isDot(pts []ggtile.Point) bool {
	for _, p := range pts[1:] {
		if p != pts[0] {
			return false
		}
	}
	return true
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

func toFixedPoint(p ggtile.Point) fixed.Point26_6 {
	return fixed.Point26_6{X: toFixed(p.X), Y: toFixed(p.Y)}
}
