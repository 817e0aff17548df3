// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sink provides paint targets for animation players.
package sink

import (
	"bytes"
	"context"
	"image"
	stdcolor "image/color"
	"io"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/image/draw"

	"github.com/kortschak/gifview/internal/player"
)

// Terminal is a sink that renders frames to a truecolour terminal using
// half block characters, so each character cell holds two pixels.
type Terminal struct {
	w io.Writer

	mu sync.Mutex
	// cells is the available terminal size in
	// character cells. A zero value renders frames
	// at their native size.
	cells   image.Point
	buf     *image.RGBA
	cleared bool
	palette map[[2]stdcolor.RGBA]*color.Color
}

// upperHalf is the upper half block character. Its foreground colour is
// the upper pixel and its background colour is the lower pixel.
const upperHalf = "▀"

// NewTerminal returns a Terminal writing to w with the provided size in
// character cells.
func NewTerminal(w io.Writer, cols, rows int) *Terminal {
	return &Terminal{
		w:       w,
		cells:   image.Point{X: cols, Y: rows},
		palette: make(map[[2]stdcolor.RGBA]*color.Color),
	}
}

// Resize sets the terminal size in character cells. The next frame clears
// the terminal before rendering.
func (t *Terminal) Resize(cols, rows int) {
	t.mu.Lock()
	t.cells = image.Point{X: cols, Y: rows}
	t.cleared = false
	t.mu.Unlock()
}

// Show implements the player.Sink interface.
func (t *Terminal) Show(ctx context.Context, f player.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	src := f.Image
	sb := src.Bounds()
	size := sb.Size()
	if t.cells.X > 0 && t.cells.Y > 0 {
		size = fit(size, image.Point{X: t.cells.X, Y: 2 * t.cells.Y})
	}
	if t.buf == nil || t.buf.Rect.Size() != size {
		t.buf = image.NewRGBA(image.Rectangle{Max: size})
	}
	draw.NearestNeighbor.Scale(t.buf, t.buf.Rect, src, sb, draw.Src, nil)

	var b bytes.Buffer
	if !t.cleared {
		b.WriteString("\x1b[2J")
		t.cleared = true
	}
	b.WriteString("\x1b[H")
	for y := 0; y < size.Y; y += 2 {
		for x := 0; x < size.X; x++ {
			top := flatten(t.buf.RGBAAt(x, y))
			var bot stdcolor.RGBA
			if y+1 < size.Y {
				bot = flatten(t.buf.RGBAAt(x, y+1))
			} else {
				bot = stdcolor.RGBA{A: 0xff}
			}
			b.WriteString(t.cell(top, bot).Sprint(upperHalf))
		}
		b.WriteByte('\n')
	}
	_, err := t.w.Write(b.Bytes())
	return err
}

// cell returns the colour for a cell with the given upper and lower pixel
// colours.
func (t *Terminal) cell(top, bot stdcolor.RGBA) *color.Color {
	key := [2]stdcolor.RGBA{top, bot}
	c, ok := t.palette[key]
	if !ok {
		if len(t.palette) > 1<<16 {
			clear(t.palette)
		}
		c = color.RGB(int(top.R), int(top.G), int(top.B)).AddBgRGB(int(bot.R), int(bot.G), int(bot.B))
		c.EnableColor()
		t.palette[key] = c
	}
	return c
}

// Close resets the terminal's colour attributes.
func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.w, "\x1b[0m")
	return err
}

// flatten composites c over black.
func flatten(c stdcolor.RGBA) stdcolor.RGBA {
	c.A = 0xff
	return c
}

// fit returns the largest size with the aspect ratio of src that fits
// within bound.
func fit(src, bound image.Point) image.Point {
	if src.X <= 0 || src.Y <= 0 {
		return image.Point{}
	}
	if src.X*bound.Y > src.Y*bound.X {
		return image.Point{X: bound.X, Y: max(1, src.Y*bound.X/src.X)}
	}
	return image.Point{X: max(1, src.X*bound.Y/src.Y), Y: bound.Y}
}
