// Package session coordinates one flat tile renderer and a hot overlay for
// a single drawing surface.
//
// A Session is driven by Render, called once per frame with the drafts in
// progress and the shapes that changed since the previous frame. Settled
// shapes are baked into tiles on a serial queue. While drafts exist the
// tiles are captured once into a backdrop, hidden, and the overlay paints
// the drafts over that backdrop until the drafts disappear.
//
//	s, err := session.New(doc, nil, nil)
//	...
//	s.UpdateViewport(ggtile.R(0, 0, 800, 600))
//	err = s.Render(ctx, session.Frame{Diff: dirty, ShapeCount: n})
//	err = s.Compose(ctx, frame)
package session
