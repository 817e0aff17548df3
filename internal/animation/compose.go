// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"image"
	"image/color"
	"image/gif"

	"golang.org/x/image/draw"
)

// Compositor renders GIF frames onto a logical screen canvas, applying
// each frame's disposal method before the following frame is drawn.
//
// The canvas returned by Next and Seek is owned by the Compositor and is
// overwritten by subsequent calls.
type Compositor struct {
	gif *GIF

	canvas *image.RGBA
	// backup holds the canvas state before the
	// most recent frame with disposal previous
	// was drawn.
	backup *image.RGBA

	index int
}

// NewCompositor returns a Compositor for g positioned before the first
// frame.
func NewCompositor(g *GIF) *Compositor {
	return &Compositor{
		gif:    g,
		canvas: image.NewRGBA(g.Bounds()),
		index:  -1,
	}
}

// Index returns the index of the last rendered frame, or -1 if no frame
// has been rendered since the last reset.
func (c *Compositor) Index() int {
	return c.index
}

// Reset positions the compositor before the first frame.
func (c *Compositor) Reset() {
	c.index = -1
}

// Next renders the frame following the last rendered frame, wrapping to
// the first frame after the last.
func (c *Compositor) Next() *image.RGBA {
	i := c.index + 1
	if i >= c.gif.Len() {
		i = 0
	}
	c.render(i)
	return c.canvas
}

// Seek renders frame i. Frames between the current position and i are
// composed in order. Seeking backwards restarts composition from the
// first frame.
func (c *Compositor) Seek(i int) (*image.RGBA, error) {
	if i < 0 || i >= c.gif.Len() {
		return nil, ErrFrameRange
	}
	if i == c.index {
		return c.canvas, nil
	}
	if i < c.index {
		c.index = -1
	}
	for c.index < i {
		c.render(c.index + 1)
	}
	return c.canvas, nil
}

func (c *Compositor) render(i int) {
	if i == 0 {
		c.erase()
	} else {
		c.dispose(i)
	}
	frame := c.gif.Image[i]
	if c.disposal(i) == gif.DisposalPrevious {
		if c.backup == nil {
			c.backup = image.NewRGBA(c.canvas.Rect)
		}
		copy(c.backup.Pix, c.canvas.Pix)
	}
	draw.Draw(c.canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
	c.index = i
}

// erase prepares the canvas for the first frame. The canvas is cleared to
// the background colour unless the first frame has a transparent index, in
// which case it is cleared to transparent.
func (c *Compositor) erase() {
	var bg color.Color = color.Transparent
	if !hasTransparency(c.gif.Image[0].Palette) {
		pal, ok := c.gif.Config.ColorModel.(color.Palette)
		if idx := int(c.gif.BackgroundIndex); ok && idx < len(pal) {
			bg = pal[idx]
		}
	}
	draw.Draw(c.canvas, c.canvas.Rect, image.NewUniform(bg), image.Point{}, draw.Src)
}

// dispose applies the disposal method of frame i-1 in preparation for
// drawing frame i. Nothing needs to be done when frame i is opaque and
// covers frame i-1.
func (c *Compositor) dispose(i int) {
	prev := c.gif.Image[i-1].Bounds()
	next := c.gif.Image[i]
	if !hasTransparency(next.Palette) && prev.In(next.Bounds()) {
		return
	}
	switch c.disposal(i - 1) {
	case gif.DisposalBackground:
		draw.Draw(c.canvas, prev, image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		if c.backup != nil {
			copy(c.canvas.Pix, c.backup.Pix)
		}
	}
}

func (c *Compositor) disposal(i int) byte {
	if c.gif.Disposal == nil {
		return 0
	}
	return c.gif.Disposal[i]
}

// hasTransparency returns whether the palette has a fully transparent
// entry. The image/gif decoder zeroes the transparent index's colour.
func hasTransparency(p color.Palette) bool {
	for _, c := range p {
		_, _, _, a := c.RGBA()
		if a == 0 {
			return true
		}
	}
	return false
}
