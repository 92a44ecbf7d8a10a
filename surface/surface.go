// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"errors"
	"image/color"
	"image/draw"
)

// Errors returned by surfaces and contexts.
var (
	// ErrNoContext is returned when a surface cannot produce a drawing context.
	// It is fatal for the construction of the backend that needs the surface.
	ErrNoContext = errors.New("surface: surface has no drawing context")

	// ErrSnapshotMismatch is returned when a snapshot cannot be applied to a surface.
	ErrSnapshotMismatch = errors.New("surface: snapshot does not match surface")
)

// Surface is a rasterizable pixel target.
//
// Surfaces are NOT thread-safe. A surface is owned by the renderer that
// acquired it, and that renderer serializes all access.
type Surface interface {
	// Width returns the surface width in pixels.
	Width() int

	// Height returns the surface height in pixels.
	Height() int

	// Clear fills the entire surface with c. A nil color clears to transparent.
	Clear(c color.Color)

	// Target returns the drawable backing store, or nil if the surface
	// cannot produce a drawing context.
	Target() draw.Image

	// Close releases all resources associated with the surface.
	// Close is idempotent; multiple calls are safe.
	Close() error
}
