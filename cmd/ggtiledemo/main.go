// Command ggtiledemo replays a scripted drawing session through the tiled
// raster engine and writes every composed frame as a PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/diff"
	"github.com/gogpu/ggtile/internal/docmodel"
	"github.com/gogpu/ggtile/layers"
	"github.com/gogpu/ggtile/shape"
	"github.com/gogpu/ggtile/surface"
)

func main() {
	var (
		width    = flag.Int("width", 800, "frame width")
		height   = flag.Int("height", 600, "frame height")
		tileSize = flag.Float64("tile", 256, "tile size in document units")
		ratio    = flag.Float64("ratio", 1, "pixels per document unit")
		outDir   = flag.String("out", "frames", "output directory")
		steps    = flag.Int("steps", 6, "draft frames per stroke")
		verbose  = flag.Bool("v", false, "log engine diagnostics")
		provName = flag.String("provider", "", "surface provider ("+strings.Join(surface.ProviderNames(), ", ")+"); empty picks the best")
	)
	flag.Parse()

	if *verbose {
		ggtile.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	provider, err := surface.OpenProvider(*provName)
	if err != nil {
		log.Fatalf("Failed to open surface provider: %v", err)
	}

	d := &demo{
		provider: provider,
		doc:      docmodel.New("demo"),
		out:      *outDir,
		stats:    &stats{},
		vp:       ggtile.R(0, 0, float64(*width), float64(*height)),
		ratio:    *ratio,
	}
	if err := d.run(context.Background(), *tileSize, *steps); err != nil {
		log.Fatalf("Demo failed: %v", err)
	}

	log.Printf("Wrote %d frames to %s (%d tiles baked, %d backdrops)\n",
		d.frame, *outDir, d.stats.tiles, d.stats.backdrops)
}

// stats counts engine work.
type stats struct {
	mu        sync.Mutex
	tiles     int
	backdrops int
}

func (s *stats) BakeFinished(b ggtile.BakeStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles += b.Tiles
}

func (s *stats) BackdropCaptured(string, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backdrops++
}

type demo struct {
	provider surface.Provider

	doc   *docmodel.Document
	stack *layers.Stack
	prev  diff.ShapeLookup
	out   string
	stats *stats
	vp    ggtile.Rect
	ratio float64
	frame int
}

func (d *demo) run(ctx context.Context, tileSize float64, steps int) error {
	stack, err := layers.New(d.doc, nil, d.provider,
		layers.WithTileSize(tileSize),
		layers.WithObserver(d.stats),
		layers.WithRenderIdentity(ggtile.RenderIdentity{
			Width:      int(d.vp.Width()),
			Height:     int(d.vp.Height()),
			PixelRatio: d.ratio,
			Background: "#1a2640",
		}),
		layers.WithBakeErrorHandler(func(err error) { log.Printf("bake: %v", err) }),
	)
	if err != nil {
		return err
	}
	defer stack.Close()
	d.stack = stack

	if err := stack.SetLayers([]layers.Layer{
		{ID: "backdrop", Kind: layers.KindImage, ZIndex: "a0", Visible: true},
		{ID: "ink", Kind: layers.KindDrawing, ZIndex: "a1", Visible: true},
		{ID: "notes", Kind: layers.KindDrawing, ZIndex: "a2", Visible: true},
	}); err != nil {
		return err
	}
	stack.SetActiveLayer("ink")
	if err := stack.UpdateViewport(d.vp); err != nil {
		return err
	}

	addBackdrop(d.doc, d.vp)
	addStar(d.doc, "star", 600, 150)
	d.doc.Put(&shape.Shape{ID: "title", LayerID: "notes", ZIndex: "a0", Type: shape.TypeText,
		Rect: ggtile.R(20, 20, 20, 20), Text: "ggtile demo", Color: color.White})
	if err := d.commit(ctx); err != nil {
		return err
	}

	// Draw a wave stroke live, then commit it.
	wave := wavePoints(150, 400, 300)
	if _, err := stack.BeginActiveLayerDraftSession(ctx); err != nil {
		return err
	}
	for i := 1; i <= steps; i++ {
		n := max(2, len(wave)*i/steps)
		draft := &shape.Shape{ID: "draft", LayerID: "ink", ZIndex: "z", Type: shape.TypePen,
			Points: wave[:n], Width: 6, Color: color.RGBA{R: 255, G: 128, A: 255}}
		if err := stack.RenderDrafts([]*shape.Shape{draft}); err != nil {
			return err
		}
		if err := d.save(ctx); err != nil {
			return err
		}
	}
	stack.EndActiveLayerDraftSession()
	d.doc.Put(&shape.Shape{ID: "wave", LayerID: "ink", ZIndex: "a1", Type: shape.TypePen,
		Points: wave, Width: 6, Color: color.RGBA{R: 255, G: 128, A: 255}})
	if err := d.commit(ctx); err != nil {
		return err
	}

	// Move the star, then pan.
	addStar(d.doc, "star", 400, 250)
	if err := d.commit(ctx); err != nil {
		return err
	}
	d.vp = d.vp.Translate(200, 100)
	if err := stack.UpdateViewport(d.vp); err != nil {
		return err
	}
	if err := d.commit(ctx); err != nil {
		return err
	}

	// Pan back: tiles come back from snapshots.
	d.vp = d.vp.Translate(-200, -100)
	if err := stack.UpdateViewport(d.vp); err != nil {
		return err
	}
	if err := d.commit(ctx); err != nil {
		return err
	}

	d.doc.Delete("title")
	return d.commit(ctx)
}

// commit routes the document changes since the previous commit, bakes and
// saves a frame.
func (d *demo) commit(ctx context.Context) error {
	in := docmodel.Diff(d.prev, d.doc)
	d.prev = d.doc.Snapshot()
	plan := d.stack.Route(in)
	if !plan.Empty() {
		log.Printf("frame %d: full=%v escalated=%v regions=%d", d.frame, plan.Full, plan.Escalated, len(plan.Regions))
	}
	if err := d.stack.Bake().Wait(ctx); err != nil {
		return err
	}
	return d.save(ctx)
}

func (d *demo) save(ctx context.Context) error {
	w := int(math.Ceil(d.vp.Width() * d.ratio))
	h := int(math.Ceil(d.vp.Height() * d.ratio))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := d.stack.Compose(ctx, img); err != nil {
		return err
	}

	name := filepath.Join(d.out, fmt.Sprintf("frame-%03d.png", d.frame))
	d.frame++
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func addBackdrop(doc *docmodel.Document, vp ggtile.Rect) {
	steps := 20
	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps)
		c := color.RGBA{
			R: uint8(255 * (0.1 + t*0.4)),
			G: uint8(255 * (0.2 + t*0.3)),
			B: uint8(255 * (0.4 + t*0.2)),
			A: 255,
		}
		y := vp.Height() * t
		doc.Put(&shape.Shape{
			ID:      fmt.Sprintf("band-%02d", i),
			LayerID: "backdrop",
			ZIndex:  fmt.Sprintf("a%02d", i),
			Type:    shape.TypeBox,
			Rect:    ggtile.XYWH(0, y, vp.Width()*2, vp.Height()/float64(steps)+1),
			Color:   c,
		})
	}
}

func addStar(doc *docmodel.Document, id string, cx, cy float64) {
	const points = 5
	outer, inner := 60.0, 30.0
	var pts []ggtile.Point
	for i := 0; i <= points*2; i++ {
		angle := float64(i) * math.Pi / points
		r := outer
		if i%2 == 1 {
			r = inner
		}
		pts = append(pts, ggtile.Pt(cx+r*math.Cos(angle-math.Pi/2), cy+r*math.Sin(angle-math.Pi/2)))
	}
	doc.Put(&shape.Shape{ID: id, LayerID: "ink", ZIndex: "a0", Type: shape.TypePen,
		Points: pts, Width: 4, Color: color.RGBA{R: 255, G: 255, A: 255}})
}

func wavePoints(x, y, length float64) []ggtile.Point {
	var pts []ggtile.Point
	for dx := 0.0; dx <= length; dx += 10 {
		pts = append(pts, ggtile.Pt(x+dx, y+30*math.Sin(dx/25)))
	}
	return pts
}
