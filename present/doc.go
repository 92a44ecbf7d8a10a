// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package present uploads composed frames to a GPU texture and draws it
// through the gpucontext interfaces of the host application.
//
// The engine composes into an *image.RGBA on the CPU. A Presenter stages
// those pixels as RGBA bytes, creates the texture lazily on the first draw,
// and afterwards updates it in place whenever a new frame was uploaded. The
// host converts to its swapchain format when it draws the texture.
//
//	p, err := present.New(app.GPUContextProvider())
//	...
//	app.OnDraw(func(dc *gogpu.Context) {
//	    _ = stack.Compose(ctx, frame)
//	    _ = p.Upload(frame)
//	    _ = p.RenderTo(dc.AsTextureDrawer())
//	})
//
// Presenter is not safe for concurrent use; drive it from the draw loop.
package present
