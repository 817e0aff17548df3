// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sink

import (
	"context"
	"errors"
	"image"
	"image/color/palette"
	"image/gif"
	"io"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/kortschak/gifview/internal/player"
)

// GIF is a sink that collects shown frames and writes them as an animated
// GIF when it is closed. Frames are quantised to the Plan 9 palette.
type GIF struct {
	w io.Writer

	mu sync.Mutex
	g  gif.GIF
}

// NewGIF returns a GIF sink writing to w. The loopCount has the semantics
// of the image/gif LoopCount field.
func NewGIF(w io.Writer, loopCount int) *GIF {
	return &GIF{w: w, g: gif.GIF{LoopCount: loopCount}}
}

// Show implements the player.Sink interface.
func (s *GIF) Show(ctx context.Context, f player.Frame) error {
	b := f.Image.Bounds()
	p := image.NewPaletted(image.Rectangle{Max: b.Size()}, palette.Plan9)
	draw.FloydSteinberg.Draw(p, p.Rect, f.Image, b.Min)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.g.Image = append(s.g.Image, p)
	s.g.Delay = append(s.g.Delay, gifDelay(f.Delay))
	s.g.Disposal = append(s.g.Disposal, gif.DisposalNone)
	return nil
}

// gifDelay returns d in hundredths of a second, rounded to the nearest
// unit. The result is at least one since decoders replace zero delays
// with their own default.
func gifDelay(d time.Duration) int {
	return max(1, int(d.Round(10*time.Millisecond)/(10*time.Millisecond)))
}

// Len returns the number of frames collected.
func (s *GIF) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.g.Image)
}

// Close writes the collected frames.
func (s *GIF) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.g.Image) == 0 {
		return errors.New("no frames shown")
	}
	return gif.EncodeAll(s.w, &s.g)
}

// Discard is a sink that discards all frames.
var Discard player.Sink = player.SinkFunc(func(context.Context, player.Frame) error { return nil })
