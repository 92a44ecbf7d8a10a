package hot

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/tdewolff/test"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/shape"
	"github.com/gogpu/ggtile/surface"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func draft(id, z string, r ggtile.Rect, c color.Color) *shape.Shape {
	return &shape.Shape{ID: id, ZIndex: z, Type: shape.TypeBox, Rect: r, Color: c}
}

func TestRenderDraftsOrderAndViewport(t *testing.T) {
	l := New(nil, 100, 100)
	l.SetViewport(ggtile.R(1000, 1000, 1100, 1100), 1)

	// Given out of order; blue has the higher index and paints last.
	err := l.RenderDrafts([]*shape.Shape{
		draft("b", "a2", ggtile.R(1010, 1010, 1030, 1030), blue),
		draft("a", "a1", ggtile.R(1010, 1010, 1030, 1030), red),
	})
	test.Error(t, err)
	test.T(t, l.Image().RGBAAt(20, 20), blue)
	test.T(t, l.Image().RGBAAt(50, 50), color.RGBA{})
}

func TestRenderDraftsIsStateless(t *testing.T) {
	l := New(nil, 50, 50)
	test.Error(t, l.RenderDrafts([]*shape.Shape{draft("a", "a1", ggtile.R(0, 0, 10, 10), red)}))
	test.Error(t, l.RenderDrafts(nil))
	test.T(t, l.Image().RGBAAt(5, 5), color.RGBA{})
}

func TestBackdropBeneathDrafts(t *testing.T) {
	backdrop := image.NewRGBA(image.Rect(0, 0, 25, 25))
	draw.Draw(backdrop, backdrop.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	l := New(nil, 50, 50, WithBackground(color.Black))
	l.SetBackdrop(backdrop)
	test.That(t, l.Backdrop() == backdrop)
	test.Error(t, l.RenderDrafts([]*shape.Shape{draft("a", "a1", ggtile.R(0, 0, 10, 10), red)}))

	img := l.Image()
	test.T(t, img.RGBAAt(5, 5), red)
	test.T(t, img.RGBAAt(40, 40), color.RGBA{255, 255, 255, 255})

	l.SetBackdrop(nil)
	test.Error(t, l.RenderDrafts(nil))
	test.T(t, l.Image().RGBAAt(40, 40), color.RGBA{A: 255})
}

func TestRenderDraftsReportsPainterErrors(t *testing.T) {
	boom := errors.New("boom")
	reg := shape.NewDefaultRegistry()
	reg.Register("boom", shape.Painter{Paint: func(*surface.Context, *shape.Shape) error { return boom }})

	l := New(reg, 20, 20)
	err := l.RenderDrafts([]*shape.Shape{
		{ID: "x", ZIndex: "a0", Type: "boom"},
		draft("a", "a1", ggtile.R(0, 0, 10, 10), red),
	})
	test.That(t, errors.Is(err, boom), err)
	test.T(t, l.Image().RGBAAt(5, 5), red)
}

func TestComposite(t *testing.T) {
	l := New(nil, 10, 10)
	test.Error(t, l.RenderDrafts([]*shape.Shape{draft("a", "a1", ggtile.R(0, 0, 10, 10), red)}))
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	l.Composite(dst)
	test.T(t, dst.RGBAAt(5, 5), red)
	test.T(t, dst.RGBAAt(15, 15), color.RGBA{})

	l.Resize(30, 30)
	test.T(t, l.Image().Bounds(), image.Rect(0, 0, 30, 30))
}
