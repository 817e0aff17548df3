// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"image"
	"image/color"
	"image/gif"
	"strings"
	"unicode/utf8"

	"github.com/bbrks/wrap/v2"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Text is a caption animator.
type Text string

// face is the caption font.
var face = basicfont.Face7x13

// GIF returns a GIF containing animation frames required to present the full
// length of the receiver within the given bounds using [basicfont.Face7x13].
// Text that fits within the bounds is word wrapped and centred in a single
// frame, otherwise it is scrolled. The provided palette must have at least
// two colors, which will be indexed by fg and bg to provide the foreground
// and background colors for the text animation. The animation plays once.
func (t Text) GIF(bound image.Rectangle, pal color.Palette, fg, bg byte) (*GIF, error) {
	bound = image.Rectangle{Max: bound.Size()}
	rows, cols := textSize(bound)
	if rows < 1 || cols < 1 {
		return nil, errors.New("bound too small")
	}
	s := string(t)
	var lines []string
	frames := 1
	if utf8.RuneCountInString(s) <= rows*cols {
		wrapper := wrap.NewWrapper()
		wrapper.StripTrailingNewline = true
		wrapper.CutLongWords = true
		lines = strings.Split(wrapper.Wrap(s, cols), "\n")
		for i, l := range lines {
			lines[i] = strings.TrimSpace(l)
		}
	}
	if lines == nil || len(lines) > rows {
		if rows*cols < 4 {
			return nil, errors.New("bound too small")
		}
		s = strings.Repeat(" ", rows*cols-4) + s
		frames = len(s)
		lines = nil
	}
	g := &gif.GIF{
		Image:    make([]*image.Paletted, 0, frames),
		Delay:    make([]int, 0, frames),
		Disposal: make([]byte, 0, frames),
		Config: image.Config{
			ColorModel: pal,
			Width:      bound.Dx(),
			Height:     bound.Dy(),
		},
		BackgroundIndex: bg,
		LoopCount:       -1,
	}
	background := &image.Uniform{pal[bg]}
	for i := range frames {
		dst := image.NewPaletted(bound, pal)
		draw.Draw(dst, dst.Bounds(), background, image.Point{}, draw.Src)
		if lines != nil {
			drawCentred(dst, lines, pal[fg])
		} else {
			drawRunning(dst, s[i:], pal[fg], cols, rows)
		}
		g.Image = append(g.Image, dst)
		g.Delay = append(g.Delay, 15)
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}
	return NewGIF(g)
}

// textSize returns the size, in font rows and columns, of the bounding
// rectangle.
func textSize(bound image.Rectangle) (rows, cols int) {
	rows = bound.Dy() / face.Height
	cols = bound.Dx() / face.Advance
	return rows, cols
}

func drawCentred(dst draw.Image, lines []string, col color.Color) {
	b := dst.Bounds()
	top := (b.Dy() - len(lines)*face.Height) / 2
	for i, l := range lines {
		left := (b.Dx() - utf8.RuneCountInString(l)*face.Advance) / 2
		drawLine(dst, l, col, b.Min.X+left, b.Min.Y+top+face.Ascent+face.Height*i)
	}
}

func drawRunning(dst draw.Image, s string, col color.Color, cols, rows int) {
	b := dst.Bounds()
	t := []rune(s)
	for i := 0; i < rows && len(t) != 0; i++ {
		n := min(cols, len(t))
		drawLine(dst, string(t[:n]), col, b.Min.X, b.Min.Y+face.Ascent+face.Height*i)
		t = t[n:]
	}
}

func drawLine(dst draw.Image, s string, col color.Color, x, y int) {
	d := font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{col},
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
