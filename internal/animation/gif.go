// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// IsGIF returns whether the data held by r is a GIF image.
func IsGIF(r ReadPeeker) bool {
	return hasMagic("GIF8?a", r)
}

// ReadPeeker is an io.Reader that can also peek n bytes ahead.
type ReadPeeker interface {
	io.Reader
	Peek(n int) ([]byte, error)
}

// AsReadPeeker converts an io.Reader to a ReadPeeker.
func AsReadPeeker(r io.Reader) ReadPeeker {
	if r, ok := r.(ReadPeeker); ok {
		return r
	}
	return bufio.NewReader(r)
}

// hasMagic returns whether r starts with the provided magic bytes.
func hasMagic(magic string, r ReadPeeker) bool {
	b, err := r.Peek(len(magic))
	if err != nil || len(b) != len(magic) {
		return false
	}
	for i, c := range b {
		if magic[i] != c && magic[i] != '?' {
			return false
		}
	}
	return true
}

// GIF is a decoded animation.
//
// The GIF [image.Image] implementation is conditional on whether an
// animation has completed. The image is either from the first or last frame;
// if the last call to Animate terminated normally the last frame is used,
// otherwise the first is used.
//
// A GIF is not mutated by playback other than through Animate, so a single
// GIF may back any number of players.
type GIF struct {
	*gif.GIF

	// complete indicates that the last animation was
	// not terminated.
	complete bool
}

// Decode returns a GIF decoded from the provided io.Reader. Multi-frame
// GIF data is decoded in full. Still images in any of the registered image
// formats are returned as a single frame animation quantised to the Plan 9
// palette. All failures are returned as a *DecodeError.
func Decode(r io.Reader) (*GIF, error) {
	er := &errReader{r: r}
	rp := AsReadPeeker(er)
	if !IsGIF(rp) {
		return decodeStill(rp, er)
	}
	g, err := gif.DecodeAll(rp)
	if err != nil {
		if er.err != nil {
			return nil, decodeErr(ErrCodeRead, -1, er.err)
		}
		return nil, decodeErr(ErrCodeFormat, -1, err)
	}
	return NewGIF(g)
}

// errReader records the first non-EOF error returned by the wrapped reader
// so that read failures can be distinguished from format errors.
type errReader struct {
	r   io.Reader
	err error
}

func (r *errReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF && r.err == nil {
		r.err = err
	}
	return n, err
}

func decodeStill(r io.Reader, er *errReader) (*GIF, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		if er.err != nil {
			return nil, decodeErr(ErrCodeRead, -1, er.err)
		}
		return nil, decodeErr(ErrCodeFormat, -1, err)
	}
	b := img.Bounds()
	p, ok := img.(*image.Paletted)
	if !ok {
		p = image.NewPaletted(b, palette.Plan9)
		draw.FloydSteinberg.Draw(p, b, img, b.Min)
	}
	// Frames are placed relative to the logical screen origin.
	if b.Min != (image.Point{}) {
		p.Rect = p.Rect.Sub(b.Min)
	}
	return NewGIF(&gif.GIF{
		Image:     []*image.Paletted{p},
		Delay:     []int{0},
		Disposal:  []byte{0},
		LoopCount: -1,
		Config: image.Config{
			Width:  b.Dx(),
			Height: b.Dy(),
		},
	})
}

// NewGIF returns a GIF wrapping g after checking it for validity. If g has
// no logical screen size, the size is taken from the union of its frames.
func NewGIF(g *gif.GIF) (*GIF, error) {
	if len(g.Image) == 0 {
		return nil, decodeErr(ErrCodeNoFrames, -1, nil)
	}
	if g.Delay != nil && len(g.Image) != len(g.Delay) {
		return nil, decodeErr(ErrCodeMismatch, -1, fmt.Errorf("image count and delay count: %d != %d", len(g.Image), len(g.Delay)))
	}
	if g.Disposal != nil && len(g.Image) != len(g.Disposal) {
		return nil, decodeErr(ErrCodeMismatch, -1, fmt.Errorf("image count and disposal count: %d != %d", len(g.Image), len(g.Disposal)))
	}
	if g.Config.Width == 0 && g.Config.Height == 0 {
		var screen image.Rectangle
		for _, frame := range g.Image {
			screen = screen.Union(frame.Bounds())
		}
		g.Config.Width = screen.Max.X
		g.Config.Height = screen.Max.Y
	}
	if g.Config.Width < 1 || g.Config.Height < 1 {
		return nil, decodeErr(ErrCodeScreenDims, -1, fmt.Errorf("%dx%d", g.Config.Width, g.Config.Height))
	}
	screen := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	for i, frame := range g.Image {
		b := frame.Bounds()
		if b.Dx() < 1 || b.Dy() < 1 {
			return nil, decodeErr(ErrCodeImageDims, i, fmt.Errorf("%v", b))
		}
		if !b.In(screen) {
			return nil, decodeErr(ErrCodeNotConfined, i, fmt.Errorf("%v not in %v", b, screen))
		}
	}
	pal, ok := g.Config.ColorModel.(color.Palette)
	if idx := int(g.BackgroundIndex); ok && len(pal) != 0 && idx >= len(pal) {
		return nil, decodeErr(ErrCodeBackground, -1, fmt.Errorf("index %d", idx))
	}
	return &GIF{GIF: g}, nil
}

// Len returns the number of frames in the animation.
func (img *GIF) Len() int {
	return len(img.Image)
}

// Plays returns the number of times the animation is intended to be played
// according to its loop count. Zero indicates that it should loop forever.
func (img *GIF) Plays() int {
	loopCount := img.LoopCount
	if loopCount <= 0 {
		loopCount = -loopCount - 1
	}
	return loopCount + 1
}

// FrameDelay returns the display time for frame i. Delays of less than
// two hundredths of a second are shown for 100ms.
func (img *GIF) FrameDelay(i int) time.Duration {
	if img.Delay == nil {
		return 100 * time.Millisecond
	}
	return nativeDelay(img.Delay[i])
}

func nativeDelay(d int) time.Duration {
	if d > 1 {
		return time.Duration(d) * 10 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// Duration returns the total display time for a single play of the
// animation.
func (img *GIF) Duration() time.Duration {
	var d time.Duration
	for i := range img.Image {
		d += img.FrameDelay(i)
	}
	return d
}

// ColorModel implements the image.Image interface. If the GIF has a global
// color table, its color model is returned, otherwise the first or last frame's
// model is used.
func (img *GIF) ColorModel() color.Model {
	if pal, ok := img.Config.ColorModel.(color.Palette); ok && len(pal) != 0 {
		return pal
	}
	return img.GIF.Image[img.shown()].ColorModel()
}

// Bounds implements the image.Image interface. The bounds are the logical
// screen bounds.
func (img *GIF) Bounds() image.Rectangle {
	return image.Rect(0, 0, img.Config.Width, img.Config.Height)
}

// At implements the image.Image interface.
func (img *GIF) At(x, y int) color.Color {
	return img.GIF.Image[img.shown()].At(x, y)
}

func (img *GIF) shown() int {
	if img.complete {
		return len(img.Image) - 1
	}
	return 0
}

// Animate renders the receiver's frames into dst and calls fn on each
// rendered frame, waiting each frame's delay before rendering the next.
// The animation is played the number of times indicated by its loop count.
func (img *GIF) Animate(ctx context.Context, dst draw.Image, fn func(image.Image) error) error {
	img.complete = false
	c := NewCompositor(img)
	plays := img.Plays()
	for i := 0; plays == 0 || i < plays; i++ {
		for f := range img.Image {
			canvas := c.Next()
			if dst.Bounds() == canvas.Bounds() {
				draw.Copy(dst, dst.Bounds().Min, canvas, canvas.Bounds(), draw.Src, nil)
			} else {
				draw.NearestNeighbor.Scale(dst, dst.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
			}
			err := fn(dst)
			if err != nil {
				return err
			}
			delay := time.NewTimer(img.FrameDelay(f))
			select {
			case <-ctx.Done():
				delay.Stop()
				return ctx.Err()
			case <-delay.C:
			}
		}
	}
	img.complete = true
	return nil
}
