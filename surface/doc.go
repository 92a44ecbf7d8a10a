// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface provides the raster surfaces tiles and layers are baked
// into, the drawing Context shape painters receive, and the providers that
// own surface lifetime.
//
// # Surfaces
//
// A Surface is a rectangular pixel target owned by exactly one renderer at a
// time. ImageSurface is the CPU implementation backed by *image.RGBA.
//
// # Providers
//
// Renderers never allocate surfaces directly. They acquire one per visible
// tile from a Provider and release it when the tile scrolls out; whether a
// released surface is freed or pooled is the provider's decision. Pool is the
// default provider and reuses buffers through sync.Pool.
//
// Providers are registered by name and selected by priority. Renderers,
// stacks and sessions given a nil provider open the best available one:
//
//	surface.Register(surface.Registration{
//	    Name:     "gpu-textures",
//	    Priority: 100,
//	    Factory:  newTextureProvider,
//	})
//
//	p, err := surface.OpenProvider("")     // best available
//	p, err = surface.OpenProvider("image") // by name
//
// # Drawing
//
// NewContext binds a Surface to a document-to-pixel transform. Painters draw
// in document units; the Context maps them to pixels and rasterizes with
// golang.org/x/image/vector and github.com/srwiley/rasterx.
//
// # Snapshots
//
// A SnapshotAdapter captures and restores surface pixels. RGBAAdapter copies
// pixels into a private *image.RGBA.
package surface
