// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"image"
	"image/color"
	"image/gif"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var compositorTests = []struct {
	name   string
	frames []testFrame
	mod    func(*gif.GIF)
	want   [][]color.RGBA
}{
	{
		name: "disposal_background",
		frames: []testFrame{
			{rect: image.Rect(0, 0, 4, 1), fill: 1},
			{rect: image.Rect(1, 0, 2, 1), fill: 2, disposal: gif.DisposalBackground},
			{rect: image.Rect(2, 0, 3, 1), fill: 3},
		},
		want: [][]color.RGBA{
			{red, red, red, red},
			{red, green, red, red},
			{red, transparent, blue, red},
		},
	},
	{
		name: "disposal_background_transparent_cover",
		frames: []testFrame{
			{rect: image.Rect(0, 0, 4, 1), fill: 1},
			{rect: image.Rect(1, 0, 2, 1), fill: 2, disposal: gif.DisposalBackground},
			{rect: image.Rect(0, 0, 4, 1), pal: transPal, pix: []uint8{4, 4, 4, 3}},
		},
		want: [][]color.RGBA{
			{red, red, red, red},
			{red, green, red, red},
			{red, transparent, red, blue},
		},
	},
	{
		name: "disposal_background_opaque_cover",
		frames: []testFrame{
			{rect: image.Rect(0, 0, 4, 1), fill: 1},
			{rect: image.Rect(1, 0, 2, 1), fill: 2, disposal: gif.DisposalBackground},
			{rect: image.Rect(0, 0, 4, 1), pix: []uint8{3, 3, 0, 3}},
		},
		want: [][]color.RGBA{
			{red, red, red, red},
			{red, green, red, red},
			{blue, blue, black, blue},
		},
	},
	{
		name: "disposal_previous",
		frames: []testFrame{
			{rect: image.Rect(0, 0, 4, 1), fill: 1},
			{rect: image.Rect(0, 0, 2, 1), fill: 2, disposal: gif.DisposalPrevious},
			{rect: image.Rect(3, 0, 4, 1), fill: 3},
		},
		want: [][]color.RGBA{
			{red, red, red, red},
			{green, green, red, red},
			{red, red, red, blue},
		},
	},
	{
		name: "disposal_none",
		frames: []testFrame{
			{rect: image.Rect(0, 0, 4, 1), fill: 1},
			{rect: image.Rect(0, 0, 2, 1), fill: 2, disposal: gif.DisposalNone},
			{rect: image.Rect(3, 0, 4, 1), fill: 3},
		},
		want: [][]color.RGBA{
			{red, red, red, red},
			{green, green, red, red},
			{green, green, red, blue},
		},
	},
	{
		name: "transparent_pixels",
		frames: []testFrame{
			{rect: image.Rect(0, 0, 4, 1), fill: 1},
			{rect: image.Rect(0, 0, 4, 1), pal: transPal, pix: []uint8{2, 4, 4, 4}},
		},
		want: [][]color.RGBA{
			{red, red, red, red},
			{green, red, red, red},
		},
	},
	{
		name: "initial_background",
		frames: []testFrame{
			{rect: image.Rect(0, 0, 1, 1), fill: 1},
		},
		mod: func(g *gif.GIF) {
			g.Config.ColorModel = opaquePal
			g.BackgroundIndex = 2
		},
		want: [][]color.RGBA{
			{red, green, green, green},
		},
	},
	{
		name: "initial_transparent",
		frames: []testFrame{
			{rect: image.Rect(0, 0, 1, 1), pal: transPal, fill: 1},
		},
		mod: func(g *gif.GIF) {
			g.Config.ColorModel = opaquePal
			g.BackgroundIndex = 2
		},
		want: [][]color.RGBA{
			{red, transparent, transparent, transparent},
		},
	},
}

func TestCompositor(t *testing.T) {
	for _, test := range compositorTests {
		t.Run(test.name, func(t *testing.T) {
			src := newGIF(image.Point{X: 4, Y: 1}, test.frames...)
			if test.mod != nil {
				test.mod(src)
			}
			c := NewCompositor(mustGIF(t, src))
			if c.Index() != -1 {
				t.Errorf("unexpected initial index: got:%d want:-1", c.Index())
			}
			var got [][]color.RGBA
			for range test.frames {
				got = append(got, row(c.Next(), 0))
			}
			if !cmp.Equal(got, test.want) {
				t.Errorf("unexpected frames:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, got))
			}
			if c.Index() != len(test.frames)-1 {
				t.Errorf("unexpected final index: got:%d want:%d", c.Index(), len(test.frames)-1)
			}

			// Seek to every frame in reverse order.
			for i := len(test.frames) - 1; i >= 0; i-- {
				canvas, err := c.Seek(i)
				if err != nil {
					t.Fatalf("unexpected error seeking to %d: %v", i, err)
				}
				if got := row(canvas, 0); !cmp.Equal(got, test.want[i]) {
					t.Errorf("unexpected frame after seek to %d:\n--- want:\n+++ got:\n%s", i, cmp.Diff(test.want[i], got))
				}
			}

			// Wrap around.
			c.Seek(len(test.frames) - 1)
			if got := row(c.Next(), 0); !cmp.Equal(got, test.want[0]) {
				t.Errorf("unexpected frame after wrap:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want[0], got))
			}
		})
	}
}

func TestCompositorSeekRange(t *testing.T) {
	c := NewCompositor(mustGIF(t, newGIF(image.Point{X: 1, Y: 1},
		testFrame{rect: image.Rect(0, 0, 1, 1)},
	)))
	for _, i := range []int{-1, 1} {
		_, err := c.Seek(i)
		if !errors.Is(err, ErrFrameRange) {
			t.Errorf("unexpected error for seek to %d: got:%v want:%v", i, err, ErrFrameRange)
		}
	}
}
