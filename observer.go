package ggtile

import "time"

// BakeStats describes one finished bake pass.
type BakeStats struct {
	// LayerID is the layer the bake belonged to; empty for single-surface sessions.
	LayerID string

	// Tiles is the number of tiles repainted.
	Tiles int

	// Failed is the number of tiles whose painter returned an error.
	Failed int

	// Full reports whether the pass was a full invalidation.
	Full bool

	// Duration is the wall time of the pass.
	Duration time.Duration
}

// Observer receives timing events from the engine.
// Implementations must be safe for use from the bake worker goroutine.
type Observer interface {
	// BakeFinished is called after every bake pass, including empty ones.
	BakeFinished(stats BakeStats)

	// BackdropCaptured is called after a draft backdrop was captured.
	BackdropCaptured(layerID string, d time.Duration)
}

// NopObserver discards all events.
type NopObserver struct{}

// BakeFinished implements Observer.
func (NopObserver) BakeFinished(BakeStats) {}

// BackdropCaptured implements Observer.
func (NopObserver) BackdropCaptured(string, time.Duration) {}
