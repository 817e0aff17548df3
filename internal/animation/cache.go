// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a bounded cache of rendered frames keyed by frame index.
// Buffers dropped from the cache are released for reuse by Alloc.
//
// A nil *Cache is valid and caches nothing.
type Cache struct {
	frames *lru.Cache[int, *image.RGBA]
	cap    int

	// live is the number of buffers held by
	// the cache.
	live atomic.Int64
	free sync.Pool
}

// NewCache returns a Cache holding up to capacity frames of an animation
// with n frames. If capacity is zero or greater than n, all frames are held.
func NewCache(capacity, n int) (*Cache, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("invalid cache capacity: %d", capacity)
	}
	if n < 1 {
		return nil, fmt.Errorf("invalid frame count: %d", n)
	}
	if capacity == 0 || capacity > n {
		capacity = n
	}
	c := &Cache{cap: capacity}
	var err error
	c.frames, err = lru.NewWithEvict(capacity, c.release)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the frame for index i if it is held.
func (c *Cache) Get(i int) (*image.RGBA, bool) {
	if c == nil {
		return nil, false
	}
	return c.frames.Get(i)
}

// Put stores img as the frame for index i. Any buffer already held for i
// is released before img is stored.
func (c *Cache) Put(i int, img *image.RGBA) {
	if c == nil {
		return
	}
	c.frames.Remove(i)
	c.live.Add(1)
	c.frames.Add(i, img)
}

// Alloc returns a buffer with the given bounds, reusing a released buffer
// if one is available.
func (c *Cache) Alloc(r image.Rectangle) *image.RGBA {
	if c == nil {
		return image.NewRGBA(r)
	}
	if img, ok := c.free.Get().(*image.RGBA); ok && img.Rect == r {
		return img
	}
	return image.NewRGBA(r)
}

// Purge releases all held frames.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.frames.Purge()
}

// Len returns the number of frames held.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.frames.Len()
}

// Cap returns the maximum number of frames held.
func (c *Cache) Cap() int {
	if c == nil {
		return 0
	}
	return c.cap
}

// Live returns the number of buffers held by the cache that have not
// been released.
func (c *Cache) Live() int {
	if c == nil {
		return 0
	}
	return int(c.live.Load())
}

func (c *Cache) release(_ int, img *image.RGBA) {
	c.live.Add(-1)
	c.free.Put(img)
}
