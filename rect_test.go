package ggtile

import (
	"image"
	"testing"
)

func TestRectEmpty(t *testing.T) {
	tests := []struct {
		name string
		r    Rect
		want bool
	}{
		{"zero", Rect{}, true},
		{"unit", R(0, 0, 1, 1), false},
		{"zero width", R(5, 0, 5, 10), true},
		{"inverted", R(10, 10, 0, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Empty(); got != tt.want {
				t.Errorf("%v.Empty() = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}

func TestRectIntersects(t *testing.T) {
	a := R(0, 0, 256, 256)
	if !a.Intersects(R(100, 100, 300, 300)) {
		t.Error("overlapping rects should intersect")
	}
	if a.Intersects(R(256, 0, 512, 256)) {
		t.Error("rects sharing only an edge should not intersect")
	}
	if got := a.Intersect(R(128, -10, 400, 10)); got != R(128, 0, 256, 10) {
		t.Errorf("Intersect = %v", got)
	}
}

func TestRectUnion(t *testing.T) {
	got := R(0, 0, 1, 1).Union(R(5, 5, 6, 7))
	if got != R(0, 0, 6, 7) {
		t.Errorf("Union = %v", got)
	}
	if got := (Rect{}).Union(R(1, 2, 3, 4)); got != R(1, 2, 3, 4) {
		t.Errorf("Union with empty = %v", got)
	}
}

func TestRectExpand(t *testing.T) {
	r := R(10, 10, 20, 20)
	if got := r.Expand(2); got != R(8, 8, 22, 22) {
		t.Errorf("Expand(2) = %v, want grown rect", got)
	}
	if got := r.Expand(-2); got != R(12, 12, 18, 18) {
		t.Errorf("Expand(-2) = %v, want shrunk rect", got)
	}
}

func TestRectFromPoints(t *testing.T) {
	got := RectFromPoints(Pt(3, 4), Pt(-1, 10), Pt(2, 0))
	if got != R(-1, 0, 3, 10) {
		t.Errorf("RectFromPoints = %v", got)
	}
	if !RectFromPoints().Empty() {
		t.Error("RectFromPoints() should be empty")
	}
}

func TestRectPixelBounds(t *testing.T) {
	got := R(0.5, 1.2, 10.1, 11).PixelBounds()
	if got != image.Rect(0, 1, 11, 11) {
		t.Errorf("PixelBounds = %v", got)
	}
}

func TestRenderIdentityString(t *testing.T) {
	a := RenderIdentity{Width: 800, Height: 600, PixelRatio: 2, Background: "#fff"}
	b := a
	if a.String() != b.String() {
		t.Fatal("equal identities must have equal fingerprints")
	}
	b.PixelRatio = 1
	if a.String() == b.String() {
		t.Error("pixel ratio must change the fingerprint")
	}
	c := a
	c.Overlay = "presenting"
	if a.String() == c.String() {
		t.Error("overlay must change the fingerprint")
	}
}
