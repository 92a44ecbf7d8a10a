package shape

import (
	"errors"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/surface"
)

// ErrNoImage is returned when an image shape has no pixels to draw.
var ErrNoImage = errors.New("shape: image shape has no image")

// minStroke is the width used to bound strokes thinner than one unit.
const minStroke = 1

func penBounds(s *Shape) (ggtile.Rect, bool) {
	if len(s.Points) == 0 {
		return ggtile.Rect{}, false
	}
	w := max(s.Width, minStroke)
	return ggtile.RectFromPoints(s.Points...).Expand(w / 2), true
}

func paintPen(ctx *surface.Context, s *Shape) error {
	ctx.StrokePolyline(s.Points, max(s.Width, minStroke), s.Color)
	return nil
}

func boxBounds(s *Shape) (ggtile.Rect, bool) {
	if s.Width > 0 {
		return s.Rect.Expand(s.Width / 2), true
	}
	return s.Rect, true
}

func paintBox(ctx *surface.Context, s *Shape) error {
	if s.Width > 0 {
		ctx.StrokeRect(s.Rect, s.Width, s.Color)
		return nil
	}
	ctx.FillRect(s.Rect, s.Color)
	return nil
}

func textBounds(s *Shape) (ggtile.Rect, bool) {
	if s.Text == "" || s.Size <= 0 {
		return ggtile.Rect{}, false
	}
	w, h := surface.MeasureText(s.Text, s.Size)
	return ggtile.XYWH(s.Rect.MinX, s.Rect.MinY, w, h), true
}

func paintText(ctx *surface.Context, s *Shape) error {
	ctx.DrawText(s.Rect.Min(), s.Size, s.Text, s.Color)
	return nil
}

func imageBounds(s *Shape) (ggtile.Rect, bool) {
	return s.Rect, true
}

func paintImage(ctx *surface.Context, s *Shape) error {
	if s.Image == nil {
		return ErrNoImage
	}
	ctx.DrawImage(s.Image, s.Rect)
	return nil
}

func paintClear(ctx *surface.Context, _ *Shape) error {
	ctx.Clear()
	return nil
}
