package layers

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/tdewolff/test"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/diff"
	"github.com/gogpu/ggtile/shape"
	"github.com/gogpu/ggtile/surface"
	"github.com/gogpu/ggtile/tile"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
)

type counter struct {
	mu        sync.Mutex
	backdrops int
}

func (c *counter) BakeFinished(ggtile.BakeStats) {}

func (c *counter) BackdropCaptured(string, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backdrops++
}

func boxOn(id, layer string, r ggtile.Rect, c color.Color) *shape.Shape {
	return &shape.Shape{ID: id, LayerID: layer, ZIndex: "a0", Type: shape.TypeBox, Rect: r, Color: c}
}

func newStack(t *testing.T, src shape.Source, opts ...Option) *Stack {
	t.Helper()
	s, err := New(src, nil, nil, opts...)
	test.Error(t, err)
	t.Cleanup(func() { _ = s.Close() })
	test.Error(t, s.SetLayers([]Layer{
		{ID: "top", Kind: KindDrawing, ZIndex: "a2", Visible: true},
		{ID: "bottom", Kind: KindDrawing, ZIndex: "a0", Visible: true},
		{ID: "mid", Kind: KindDrawing, ZIndex: "a1", Visible: true},
	}))
	test.Error(t, s.UpdateViewport(ggtile.R(0, 0, 512, 256)))
	return s
}

func renderer(t *testing.T, s *Stack, id string) *tile.Renderer {
	t.Helper()
	b, ok := s.Backend(id)
	if !ok {
		t.Fatalf("no backend for %s", id)
	}
	return b.(tileBackend).Renderer
}

func TestStackOrder(t *testing.T) {
	s := newStack(t, shape.MapSource{})
	s.SetActiveLayer("bottom")
	test.T(t, s.Order(), []string{"bottom", HotSlot, "mid", "top"})
	s.SetActiveLayer("mid")
	test.T(t, s.Order(), []string{"bottom", "mid", HotSlot, "top"})
}

func TestSetLayersKeepsOrRecreatesBackends(t *testing.T) {
	s := newStack(t, shape.MapSource{})
	test.Error(t, s.Bake().Wait(context.Background()))

	mid, _ := s.Backend("mid")
	test.Error(t, s.SetLayers([]Layer{
		{ID: "bottom", Kind: KindDrawing, ZIndex: "a0", Visible: true},
		{ID: "mid", Kind: KindDrawing, ZIndex: "a1", Visible: false},
		{ID: "top", Kind: KindImage, ZIndex: "a2", Visible: true},
	}))

	same, _ := s.Backend("mid")
	test.That(t, same == mid, "unchanged kind must keep the backend")
	test.That(t, !renderer(t, s, "mid").FullInvalidationPending(), "kept backend must not be invalidated")
	test.That(t, renderer(t, s, "mid").Hidden())

	top, _ := s.Backend("top")
	test.T(t, top.Kind(), KindImage)
	test.That(t, top.NeedsBake())

	test.Error(t, s.SetLayers([]Layer{{ID: "bottom", Kind: KindDrawing, ZIndex: "a0", Visible: true}}))
	_, ok := s.Backend("mid")
	test.That(t, !ok, "removed layer must lose its backend")
	test.T(t, s.Order(), []string{"bottom", HotSlot})
}

func TestRouteDirtyShapesBucketsByLayer(t *testing.T) {
	src := shape.MapSource{}
	s := newStack(t, src)
	ctx := context.Background()
	test.Error(t, s.Bake().Wait(ctx))

	src.Put(boxOn("a", "bottom", ggtile.R(10, 10, 20, 20), red))
	src.Put(boxOn("b", "top", ggtile.R(300, 10, 310, 20), blue))

	// Hold the queue so the pending state can be inspected.
	release := make(chan struct{})
	s.Queue().Enqueue("hold", func(context.Context) error { <-release; return nil })
	job := s.RouteDirtyShapes([]string{"a", "b"}, nil)

	test.T(t, renderer(t, s, "bottom").Pending(), []string{"0,0"})
	test.T(t, len(renderer(t, s, "mid").Pending()), 0)
	test.T(t, renderer(t, s, "top").Pending(), []string{"1,0"})
	close(release)
	test.Error(t, job.Wait(ctx))

	// Move "a" to another layer: the old layer repaints its footprint.
	src.Put(boxOn("a", "mid", ggtile.R(10, 10, 20, 20), red))
	release = make(chan struct{})
	s.Queue().Enqueue("hold", func(context.Context) error { <-release; return nil })
	job = s.RouteDirtyShapes([]string{"a"}, nil)
	test.T(t, renderer(t, s, "bottom").Pending(), []string{"0,0"})
	test.T(t, renderer(t, s, "mid").Pending(), []string{"0,0"})
	close(release)
	test.Error(t, job.Wait(ctx))

	// Delete "b": no document entry, but the stack remembers its layer.
	delete(src, "b")
	release = make(chan struct{})
	s.Queue().Enqueue("hold", func(context.Context) error { <-release; return nil })
	job = s.RouteDirtyShapes(nil, []string{"b"})
	test.T(t, renderer(t, s, "top").Pending(), []string{"1,0"})
	close(release)
	test.Error(t, job.Wait(ctx))
}

func TestRouteShapesKnownOnlyFromBake(t *testing.T) {
	ctx := context.Background()
	hold := func(s *Stack) chan struct{} {
		release := make(chan struct{})
		s.Queue().Enqueue("hold", func(context.Context) error { <-release; return nil })
		return release
	}
	compose := func(s *Stack) *image.RGBA {
		dst := image.NewRGBA(image.Rect(0, 0, 512, 256))
		test.Error(t, s.Compose(ctx, dst))
		return dst
	}

	t.Run("delete", func(t *testing.T) {
		src := shape.MapSource{}
		src.Put(boxOn("a", "bottom", ggtile.R(10, 10, 20, 20), red))
		s := newStack(t, src)
		test.Error(t, s.Bake().Wait(ctx))
		test.T(t, compose(s).RGBAAt(15, 15), red)

		delete(src, "a")
		release := hold(s)
		job := s.RouteDirtyShapes(nil, []string{"a"})
		test.T(t, renderer(t, s, "bottom").Pending(), []string{"0,0"})
		test.That(t, !renderer(t, s, "mid").FullInvalidationPending())
		close(release)
		test.Error(t, job.Wait(ctx))
		test.T(t, compose(s).RGBAAt(15, 15), color.RGBA{})
	})

	t.Run("move", func(t *testing.T) {
		src := shape.MapSource{}
		src.Put(boxOn("a", "bottom", ggtile.R(10, 10, 20, 20), red))
		s := newStack(t, src)
		test.Error(t, s.Bake().Wait(ctx))

		src.Put(boxOn("a", "mid", ggtile.R(300, 10, 310, 20), red))
		release := hold(s)
		job := s.RouteDirtyShapes([]string{"a"}, nil)
		test.T(t, renderer(t, s, "bottom").Pending(), []string{"0,0"})
		test.T(t, renderer(t, s, "mid").Pending(), []string{"1,0"})
		close(release)
		test.Error(t, job.Wait(ctx))

		dst := compose(s)
		test.T(t, dst.RGBAAt(15, 15), color.RGBA{})
		test.T(t, dst.RGBAAt(305, 15), red)
	})

	t.Run("unknown", func(t *testing.T) {
		s := newStack(t, shape.MapSource{})
		test.Error(t, s.Bake().Wait(ctx))

		release := hold(s)
		job := s.RouteDirtyShapes(nil, []string{"ghost"})
		for _, id := range []string{"bottom", "mid", "top"} {
			test.That(t, renderer(t, s, id).FullInvalidationPending(), id)
		}
		close(release)
		test.Error(t, job.Wait(ctx))
	})
}

func TestCanvasBackendKnowsBakedShapes(t *testing.T) {
	src := shape.MapSource{}
	src.Put(boxOn("a", "img", ggtile.R(10, 10, 20, 20), red))
	c, err := NewCanvasBackend("img", src, nil, nil)
	test.Error(t, err)
	defer c.Close()
	test.Error(t, c.UpdateViewport(ggtile.R(0, 0, 64, 64), 1))

	test.That(t, !c.Knows("a"), "nothing baked yet")
	test.Error(t, c.Bake(context.Background()))
	test.That(t, c.Knows("a"))

	c.RouteShapes(nil, []string{"a"})
	test.That(t, !c.Knows("a"))
	test.That(t, c.NeedsBake())
}

func TestRouteDirtyClearShapeEscalates(t *testing.T) {
	src := shape.MapSource{}
	s := newStack(t, src)
	ctx := context.Background()
	test.Error(t, s.Bake().Wait(ctx))

	src.Put(&shape.Shape{ID: "c", LayerID: "mid", ZIndex: "a0", Type: shape.TypeClear})
	release := make(chan struct{})
	s.Queue().Enqueue("hold", func(context.Context) error { <-release; return nil })
	job := s.RouteDirtyShapes([]string{"c"}, nil)
	test.That(t, renderer(t, s, "mid").FullInvalidationPending())
	test.That(t, !renderer(t, s, "bottom").FullInvalidationPending())
	close(release)
	test.Error(t, job.Wait(ctx))
}

func TestStackRouteDiffEscalation(t *testing.T) {
	prev := shape.MapSource{}
	prev.Put(&shape.Shape{ID: "s", LayerID: "bottom", Type: "sticky"})
	next := shape.MapSource{}
	next.Put(boxOn("s", "top", ggtile.R(300, 10, 310, 20), red))

	s := newStack(t, next)
	ctx := context.Background()
	test.Error(t, s.Bake().Wait(ctx))

	plan := s.Route(diff.Input{Prev: prev, Next: next, Changed: []string{"s"}})
	test.T(t, plan.Escalated, []string{"bottom"})
	test.That(t, renderer(t, s, "bottom").FullInvalidationPending())
	test.T(t, renderer(t, s, "top").Pending(), []string{"1,0"})
	test.That(t, !renderer(t, s, "top").FullInvalidationPending())
	test.Error(t, s.Bake().Wait(ctx))
}

func TestComposeOrder(t *testing.T) {
	src := shape.MapSource{}
	src.Put(
		boxOn("b", "bottom", ggtile.R(0, 0, 100, 100), red),
		boxOn("t", "top", ggtile.R(50, 50, 150, 150), blue),
	)
	s := newStack(t, src, WithRenderIdentity(ggtile.RenderIdentity{Background: "#ffffff"}))
	s.SetActiveLayer("bottom")
	ctx := context.Background()

	test.Error(t, s.Bake().Wait(ctx))
	test.Error(t, s.RenderDrafts([]*shape.Shape{{ID: "d", Type: shape.TypeBox, Rect: ggtile.R(25, 25, 75, 75), Color: green}}))

	dst := image.NewRGBA(image.Rect(0, 0, 512, 256))
	test.Error(t, s.Compose(ctx, dst))

	test.T(t, dst.RGBAAt(10, 10), red)
	// The draft sits above the active layer but below the top layer.
	test.T(t, dst.RGBAAt(30, 30), green)
	test.T(t, dst.RGBAAt(60, 60), blue)
	test.T(t, dst.RGBAAt(300, 200), color.RGBA{255, 255, 255, 255})
}

func TestDraftSession(t *testing.T) {
	src := shape.MapSource{}
	src.Put(
		boxOn("b", "bottom", ggtile.R(0, 0, 100, 100), red),
		boxOn("m", "mid", ggtile.R(200, 0, 300, 100), blue),
	)
	obs := &counter{}
	s := newStack(t, src, WithObserver(obs))
	ctx := context.Background()

	_, err := s.BeginActiveLayerDraftSession(ctx)
	test.That(t, err != nil, "no active layer")

	s.SetActiveLayer("mid")
	backdrop, err := s.BeginActiveLayerDraftSession(ctx)
	test.Error(t, err)
	test.That(t, s.Drafting())
	test.That(t, renderer(t, s, "mid").Hidden())
	test.T(t, obs.backdrops, 1)

	// The backdrop holds the active layer alone.
	test.T(t, backdrop.RGBAAt(250, 50), blue)
	test.T(t, backdrop.RGBAAt(50, 50), color.RGBA{})
	test.That(t, s.Hot().Backdrop() == backdrop)

	// Before any draft the overlay already stands in for the hidden layer.
	s.Bake()
	dst := image.NewRGBA(image.Rect(0, 0, 512, 256))
	test.Error(t, s.Compose(ctx, dst))
	test.T(t, dst.RGBAAt(50, 50), red)
	test.T(t, dst.RGBAAt(250, 50), blue)

	test.Error(t, s.RenderDrafts([]*shape.Shape{{ID: "d", Type: shape.TypeBox, Rect: ggtile.R(400, 0, 450, 50), Color: green}}))
	s.Bake()
	dst = image.NewRGBA(image.Rect(0, 0, 512, 256))
	test.Error(t, s.Compose(ctx, dst))
	test.T(t, dst.RGBAAt(50, 50), red)
	test.T(t, dst.RGBAAt(250, 50), blue)
	test.T(t, dst.RGBAAt(420, 20), green)

	s.EndActiveLayerDraftSession()
	test.That(t, !s.Drafting())
	test.That(t, !renderer(t, s, "mid").Hidden())
	test.That(t, s.Hot().Backdrop() == nil)
}

func TestDraftSessionAbandonedOnCancel(t *testing.T) {
	src := shape.MapSource{}
	src.Put(boxOn("m", "mid", ggtile.R(200, 0, 300, 100), blue))
	s := newStack(t, src)
	s.SetActiveLayer("mid")

	release := make(chan struct{})
	s.Queue().Enqueue("hold", func(context.Context) error { <-release; return nil })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backdrop, err := s.BeginActiveLayerDraftSession(ctx)
	test.That(t, errors.Is(err, context.Canceled), err)
	test.That(t, backdrop == nil)
	test.That(t, !s.Drafting())
	test.That(t, !renderer(t, s, "mid").Hidden())

	close(release)
	s.Bake()
	dst := image.NewRGBA(image.Rect(0, 0, 512, 256))
	test.Error(t, s.Compose(context.Background(), dst))
	test.T(t, dst.RGBAAt(250, 50), blue)
	test.That(t, s.Hot().Backdrop() == nil)
}

func TestCanvasBackendLayer(t *testing.T) {
	src := shape.MapSource{}
	src.Put(boxOn("img", "ref", ggtile.R(10, 10, 30, 30), red))
	s, err := New(src, nil, nil)
	test.Error(t, err)
	defer s.Close()

	test.Error(t, s.SetLayers([]Layer{{ID: "ref", Kind: KindImage, Visible: true}}))
	test.Error(t, s.UpdateViewport(ggtile.R(0, 0, 64, 64)))

	dst := image.NewRGBA(image.Rect(0, 0, 64, 64))
	test.Error(t, s.Bake().Wait(context.Background()))
	test.Error(t, s.Compose(context.Background(), dst))
	test.T(t, dst.RGBAAt(20, 20), red)

	b, _ := s.Backend("ref")
	test.That(t, !b.NeedsBake())
	b.InvalidateRect(ggtile.R(100, 100, 110, 110))
	test.That(t, !b.NeedsBake(), "regions outside the viewport leave the canvas clean")
	s.RouteRects("ref", []ggtile.Rect{ggtile.R(0, 0, 5, 5)})
	test.That(t, b.NeedsBake())
}

func TestBakeErrorHandler(t *testing.T) {
	errBoom := errors.New("boom")
	reg := shape.NewDefaultRegistry()
	reg.Register("boom", shape.Painter{Paint: func(*surface.Context, *shape.Shape) error { return errBoom }})

	src := shape.MapSource{}
	src.Put(&shape.Shape{ID: "x", LayerID: "l", Type: "boom"})

	var mu sync.Mutex
	var got []error
	s, err := New(src, reg, nil, WithBakeErrorHandler(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, err)
	}))
	test.Error(t, err)
	defer s.Close()
	test.Error(t, s.SetLayers([]Layer{{ID: "l", Kind: KindDrawing, Visible: true}}))
	test.Error(t, s.UpdateViewport(ggtile.R(0, 0, 100, 100)))

	err = s.Bake().Wait(context.Background())
	test.That(t, errors.Is(err, errBoom), "bake error must wrap the painter error")

	// The queue reports the failure before the job completes.
	mu.Lock()
	defer mu.Unlock()
	test.T(t, len(got), 1)
	test.That(t, errors.Is(got[0], errBoom))
}
