// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import "image"

// Renderer produces scaled frames for a GIF, consulting a frame cache
// before composing. A Renderer must not be used concurrently.
type Renderer struct {
	comp   *Compositor
	scaler Scaler
	cache  *Cache
	bounds image.Rectangle
}

// NewRenderer returns a Renderer for g. The cache may be nil.
func NewRenderer(g *GIF, s Scaler, c *Cache) *Renderer {
	return &Renderer{
		comp:   NewCompositor(g),
		scaler: s,
		cache:  c,
		bounds: s.Bounds(g.Bounds()),
	}
}

// Bounds returns the bounds of rendered frames.
func (r *Renderer) Bounds() image.Rectangle {
	return r.bounds
}

// Frame returns the rendered frame i. The returned image must not be
// modified and is only valid until it is dropped from the cache.
func (r *Renderer) Frame(i int) (*image.RGBA, error) {
	if img, ok := r.cache.Get(i); ok {
		return img, nil
	}
	canvas, err := r.comp.Seek(i)
	if err != nil {
		return nil, err
	}
	dst := r.cache.Alloc(r.bounds)
	r.scaler.Scale(dst, canvas)
	r.cache.Put(i, dst)
	return dst, nil
}
