// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/gogpu/ggtile/snapshot"
)

// SnapshotAdapter captures and restores surface pixels.
type SnapshotAdapter interface {
	// Capture returns a snapshot of the current pixels of s.
	Capture(s Surface) (snapshot.Snapshot, error)

	// Apply replaces the pixels of s with snap.
	Apply(s Surface, snap snapshot.Snapshot) error
}

// RGBAAdapter snapshots surfaces as private *image.RGBA copies.
type RGBAAdapter struct{}

// Capture implements SnapshotAdapter.
func (RGBAAdapter) Capture(s Surface) (snapshot.Snapshot, error) {
	if is, ok := s.(*ImageSurface); ok {
		return is.Snapshot(), nil
	}
	dst := s.Target()
	if dst == nil {
		return nil, ErrNoContext
	}
	img := image.NewRGBA(image.Rect(0, 0, s.Width(), s.Height()))
	draw.Draw(img, img.Bounds(), dst, dst.Bounds().Min, draw.Src)
	return img, nil
}

// Apply implements SnapshotAdapter.
func (RGBAAdapter) Apply(s Surface, snap snapshot.Snapshot) error {
	img, ok := snap.(*image.RGBA)
	if !ok {
		return fmt.Errorf("%w: unexpected snapshot type %T", ErrSnapshotMismatch, snap)
	}
	if img.Bounds().Dx() != s.Width() || img.Bounds().Dy() != s.Height() {
		return fmt.Errorf("%w: snapshot %v, surface %dx%d",
			ErrSnapshotMismatch, img.Bounds().Size(), s.Width(), s.Height())
	}
	dst := s.Target()
	if dst == nil {
		return ErrNoContext
	}
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return nil
}
