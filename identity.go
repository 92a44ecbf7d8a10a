package ggtile

import (
	"strconv"
	"strings"
)

// RenderIdentity collects every global input that invalidates all cached
// pixels at once. Two identities with equal fingerprints produce identical
// tiles for identical documents.
type RenderIdentity struct {
	// Width and Height are the viewport size in CSS-like device-independent units.
	Width, Height int

	// PixelRatio is the number of surface pixels per document unit.
	PixelRatio float64

	// Background is the background color string (e.g. "#ffffff"), empty for transparent.
	Background string

	// Overlay identifies the presentation overlay, opaque to the engine.
	Overlay string

	// Seed is a caller-chosen prefix, used to separate otherwise equal identities.
	Seed string
}

// String returns the fingerprint used as the snapshot cache namespace.
func (id RenderIdentity) String() string {
	var b strings.Builder
	b.WriteString(id.Seed)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(id.Width))
	b.WriteByte('x')
	b.WriteString(strconv.Itoa(id.Height))
	b.WriteByte('@')
	b.WriteString(strconv.FormatFloat(id.PixelRatio, 'g', -1, 64))
	b.WriteByte('|')
	b.WriteString(id.Background)
	b.WriteByte('|')
	b.WriteString(id.Overlay)
	return b.String()
}
