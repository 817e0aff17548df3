// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
	"testing/iotest"
	"time"

	"github.com/google/go-cmp/cmp"
)

var (
	black       = color.RGBA{A: 0xff}
	red         = color.RGBA{R: 0xff, A: 0xff}
	green       = color.RGBA{G: 0xff, A: 0xff}
	blue        = color.RGBA{B: 0xff, A: 0xff}
	transparent = color.RGBA{}

	opaquePal = color.Palette{black, red, green, blue}
	transPal  = color.Palette{black, red, green, blue, transparent}
)

// testFrame describes a single GIF frame. If pix is nil, the frame is
// filled with fill.
type testFrame struct {
	rect     image.Rectangle
	pal      color.Palette
	fill     uint8
	pix      []uint8
	delay    int
	disposal byte
}

func newGIF(screen image.Point, frames ...testFrame) *gif.GIF {
	g := &gif.GIF{Config: image.Config{Width: screen.X, Height: screen.Y}}
	for _, f := range frames {
		pal := f.pal
		if pal == nil {
			pal = opaquePal
		}
		img := image.NewPaletted(f.rect, pal)
		if f.pix != nil {
			copy(img.Pix, f.pix)
		} else {
			for i := range img.Pix {
				img.Pix[i] = f.fill
			}
		}
		g.Image = append(g.Image, img)
		g.Delay = append(g.Delay, f.delay)
		g.Disposal = append(g.Disposal, f.disposal)
	}
	return g
}

func mustGIF(t *testing.T, g *gif.GIF) *GIF {
	t.Helper()
	img, err := NewGIF(g)
	if err != nil {
		t.Fatalf("unexpected error creating GIF: %v", err)
	}
	return img
}

func TestDecode(t *testing.T) {
	src := newGIF(image.Point{X: 4, Y: 2},
		testFrame{rect: image.Rect(0, 0, 4, 2), fill: 1, delay: 5},
		testFrame{rect: image.Rect(1, 0, 3, 2), fill: 2, delay: 0},
		testFrame{rect: image.Rect(0, 1, 4, 2), fill: 3, delay: 20},
	)
	src.LoopCount = 2
	var buf bytes.Buffer
	err := gif.EncodeAll(&buf, src)
	if err != nil {
		t.Fatalf("unexpected error encoding GIF: %v", err)
	}

	g, err := Decode(&buf)
	if err != nil {
		t.Fatalf("unexpected error decoding GIF: %v", err)
	}
	if g.Len() != 3 {
		t.Errorf("unexpected frame count: got:%d want:3", g.Len())
	}
	if g.Bounds() != image.Rect(0, 0, 4, 2) {
		t.Errorf("unexpected bounds: got:%v want:%v", g.Bounds(), image.Rect(0, 0, 4, 2))
	}
	if g.Plays() != 3 {
		t.Errorf("unexpected play count: got:%d want:3", g.Plays())
	}
	gotDelays := []time.Duration{g.FrameDelay(0), g.FrameDelay(1), g.FrameDelay(2)}
	wantDelays := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}
	if !cmp.Equal(gotDelays, wantDelays) {
		t.Errorf("unexpected delays:\n--- want:\n+++ got:\n%s", cmp.Diff(wantDelays, gotDelays))
	}
	if g.Duration() != 350*time.Millisecond {
		t.Errorf("unexpected duration: got:%v want:%v", g.Duration(), 350*time.Millisecond)
	}
}

func TestDecodeStill(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	err := png.Encode(&buf, src)
	if err != nil {
		t.Fatalf("unexpected error encoding PNG: %v", err)
	}

	g, err := Decode(&buf)
	if err != nil {
		t.Fatalf("unexpected error decoding PNG: %v", err)
	}
	if g.Len() != 1 {
		t.Errorf("unexpected frame count: got:%d want:1", g.Len())
	}
	if g.Plays() != 1 {
		t.Errorf("unexpected play count: got:%d want:1", g.Plays())
	}
	if g.Bounds() != src.Bounds() {
		t.Errorf("unexpected bounds: got:%v want:%v", g.Bounds(), src.Bounds())
	}
	got := color.RGBAModel.Convert(g.At(1, 1))
	want := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	if got != want {
		t.Errorf("unexpected color: got:%v want:%v", got, want)
	}
}

var decodeErrorTests = []struct {
	name     string
	data     func() []byte
	wantCode ErrCode
	wantIs   error
}{
	{
		name:     "text",
		data:     func() []byte { return []byte("this is not an image") },
		wantCode: ErrCodeFormat,
		wantIs:   ErrFormat,
	},
	{
		name:     "truncated",
		data:     func() []byte { return []byte("GIF89a\x04\x00") },
		wantCode: ErrCodeFormat,
		wantIs:   ErrFormat,
	},
}

func TestDecodeError(t *testing.T) {
	for _, test := range decodeErrorTests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(test.data()))
			checkDecodeError(t, err, test.wantCode, test.wantIs)
		})
	}

	t.Run("read", func(t *testing.T) {
		_, err := Decode(iotest.ErrReader(errors.New("device on fire")))
		checkDecodeError(t, err, ErrCodeRead, ErrRead)
	})
}

var newGIFErrorTests = []struct {
	name     string
	gif      func() *gif.GIF
	wantCode ErrCode
	wantIs   error
}{
	{
		name:     "no_frames",
		gif:      func() *gif.GIF { return &gif.GIF{} },
		wantCode: ErrCodeNoFrames,
		wantIs:   ErrNoFrames,
	},
	{
		name: "delay_mismatch",
		gif: func() *gif.GIF {
			g := newGIF(image.Point{X: 2, Y: 2}, testFrame{rect: image.Rect(0, 0, 2, 2)})
			g.Delay = append(g.Delay, 0)
			return g
		},
		wantCode: ErrCodeMismatch,
		wantIs:   ErrMismatch,
	},
	{
		name: "disposal_mismatch",
		gif: func() *gif.GIF {
			g := newGIF(image.Point{X: 2, Y: 2}, testFrame{rect: image.Rect(0, 0, 2, 2)})
			g.Disposal = []byte{0, 0}
			return g
		},
		wantCode: ErrCodeMismatch,
		wantIs:   ErrMismatch,
	},
	{
		name: "screen_dims",
		gif: func() *gif.GIF {
			return newGIF(image.Point{X: 0, Y: 2}, testFrame{rect: image.Rect(0, 0, 2, 2)})
		},
		wantCode: ErrCodeScreenDims,
		wantIs:   ErrScreenDims,
	},
	{
		name: "image_dims",
		gif: func() *gif.GIF {
			return newGIF(image.Point{X: 2, Y: 2}, testFrame{rect: image.Rect(1, 1, 1, 2)})
		},
		wantCode: ErrCodeImageDims,
		wantIs:   ErrImageDims,
	},
	{
		name: "not_confined",
		gif: func() *gif.GIF {
			return newGIF(image.Point{X: 2, Y: 2}, testFrame{rect: image.Rect(1, 1, 3, 2)})
		},
		wantCode: ErrCodeNotConfined,
		wantIs:   ErrNotConfined,
	},
	{
		name: "background",
		gif: func() *gif.GIF {
			g := newGIF(image.Point{X: 2, Y: 2}, testFrame{rect: image.Rect(0, 0, 2, 2)})
			g.Config.ColorModel = opaquePal
			g.BackgroundIndex = 4
			return g
		},
		wantCode: ErrCodeBackground,
		wantIs:   ErrBackground,
	},
}

func TestNewGIFError(t *testing.T) {
	for _, test := range newGIFErrorTests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewGIF(test.gif())
			checkDecodeError(t, err, test.wantCode, test.wantIs)
		})
	}
}

func checkDecodeError(t *testing.T, err error, code ErrCode, sentinel error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("unexpected error type: got:%T want:%T", err, derr)
	}
	if derr.Code != code {
		t.Errorf("unexpected error code: got:%d want:%d", derr.Code, code)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("error %v is not %v", err, sentinel)
	}
}

func TestNewGIFScreenFromFrames(t *testing.T) {
	g := mustGIF(t, newGIF(image.Point{},
		testFrame{rect: image.Rect(0, 0, 2, 3)},
		testFrame{rect: image.Rect(1, 1, 5, 2)},
	))
	want := image.Rect(0, 0, 5, 3)
	if g.Bounds() != want {
		t.Errorf("unexpected bounds: got:%v want:%v", g.Bounds(), want)
	}
}

func TestPlays(t *testing.T) {
	for _, test := range []struct {
		loopCount int
		want      int
	}{
		{loopCount: 0, want: 0},
		{loopCount: -1, want: 1},
		{loopCount: 1, want: 2},
		{loopCount: 4, want: 5},
	} {
		g := &GIF{GIF: &gif.GIF{LoopCount: test.loopCount}}
		got := g.Plays()
		if got != test.want {
			t.Errorf("unexpected play count for loop count %d: got:%d want:%d", test.loopCount, got, test.want)
		}
	}
}

func TestAnimate(t *testing.T) {
	src := newGIF(image.Point{X: 2, Y: 1},
		testFrame{rect: image.Rect(0, 0, 2, 1), fill: 1},
		testFrame{rect: image.Rect(1, 0, 2, 1), fill: 2},
	)
	src.LoopCount = -1
	g := mustGIF(t, src)

	var got [][]color.RGBA
	dst := image.NewRGBA(g.Bounds())
	err := g.Animate(context.Background(), dst, func(img image.Image) error {
		got = append(got, row(img.(*image.RGBA), 0))
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error animating: %v", err)
	}
	want := [][]color.RGBA{{red, red}, {red, green}}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected frames:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
	if g.At(1, 0) != g.Image[1].At(1, 0) {
		t.Error("expected completed animation to present final frame")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = g.Animate(ctx, dst, func(image.Image) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error for cancelled animation: got:%v want:%v", err, context.Canceled)
	}
}

// row returns the colours of row y of img.
func row(img *image.RGBA, y int) []color.RGBA {
	b := img.Bounds()
	r := make([]color.RGBA, 0, b.Dx())
	for x := b.Min.X; x < b.Max.X; x++ {
		r = append(r, img.RGBAAt(x, y))
	}
	return r
}
