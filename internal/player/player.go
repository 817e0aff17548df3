// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package player provides animated GIF players. A Timer advances frames on
// a timer from a background goroutine. A Clock selects the frame to show
// from the elapsed wall clock time.
package player

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/kortschak/gifview/internal/animation"
)

// Frame is a rendered frame passed to a Sink.
type Frame struct {
	// Index is the frame's index in the animation.
	Index int
	// Image is the rendered frame. It must not be
	// modified and is only valid until Show returns.
	Image image.Image
	// Delay is the display time of the frame at
	// the player's speed.
	Delay time.Duration
	// Loop is the zero-based play count.
	Loop int
}

// Sink is a paint target. Show is called for each frame that should be
// presented.
type Sink interface {
	Show(ctx context.Context, f Frame) error
}

// SinkFunc is a function adapter for a Sink.
type SinkFunc func(ctx context.Context, f Frame) error

// Show implements the Sink interface.
func (fn SinkFunc) Show(ctx context.Context, f Frame) error {
	return fn(ctx, f)
}

// LoopMode specifies how many times an animation is played.
type LoopMode int

const (
	// LoopDefault uses the player's default mode, LoopOnce
	// for a Timer and LoopForever for a Clock.
	LoopDefault LoopMode = iota
	// LoopOnce plays the animation once.
	LoopOnce
	// LoopForever plays the animation until stopped.
	LoopForever
	// LoopFile plays the animation according to the
	// loop count held by the animation.
	LoopFile
)

// ParseLoopMode returns the LoopMode corresponding to the provided name.
func ParseLoopMode(name string) (LoopMode, error) {
	switch name {
	case "":
		return LoopDefault, nil
	case "once":
		return LoopOnce, nil
	case "forever":
		return LoopForever, nil
	case "file":
		return LoopFile, nil
	default:
		return 0, fmt.Errorf("unknown loop mode: %q", name)
	}
}

func (m LoopMode) String() string {
	switch m {
	case LoopDefault:
		return "default"
	case LoopOnce:
		return "once"
	case LoopForever:
		return "forever"
	case LoopFile:
		return "file"
	default:
		return fmt.Sprintf("LoopMode(%d)", int(m))
	}
}

// Options holds player configuration.
type Options struct {
	// Speed is the playback rate multiplier.
	// Zero is treated as 1.
	Speed float64

	// Loop is the loop mode.
	Loop LoopMode

	// Size, Interpolator and Fit specify frame scaling.
	// See animation.Scaler for details.
	Size         image.Point
	Interpolator draw.Interpolator
	Fit          animation.Fit

	// CacheSize is the number of rendered frames
	// to retain. Zero retains all frames.
	CacheSize int

	// Policy overrides the animation's frame delays.
	Policy animation.DelayPolicy

	// Now is the clock used by a Clock player.
	// If nil, time.Now is used.
	Now func() time.Time
}

// State is a player state snapshot.
type State struct {
	Running  bool          `json:"running"`
	Index    int           `json:"index"`
	Loop     int           `json:"loop"`
	Frames   int           `json:"frames"`
	Position time.Duration `json:"position"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// playback holds the timing and rendering state shared by the players.
type playback struct {
	gif    *animation.GIF
	render *animation.Renderer

	// delays holds the frame display times at unit
	// speed and offsets holds the start time of each
	// frame with the total duration as the last element.
	delays  []time.Duration
	offsets []time.Duration

	// plays is the number of times the animation is
	// played. Zero indicates that it loops forever.
	plays int
	speed float64
}

func newPlayback(g *animation.GIF, opts Options, def LoopMode) (*playback, error) {
	if g == nil {
		return nil, errors.New("no animation")
	}
	speed := opts.Speed
	if speed == 0 {
		speed = 1
	}
	if err := validSpeed(speed); err != nil {
		return nil, err
	}
	delays, err := animation.Delays(g, opts.Policy)
	if err != nil {
		return nil, err
	}
	offsets := make([]time.Duration, len(delays)+1)
	for i, d := range delays {
		offsets[i+1] = offsets[i] + d
	}
	cache, err := animation.NewCache(opts.CacheSize, g.Len())
	if err != nil {
		return nil, err
	}
	scaler := animation.Scaler{
		Size:         opts.Size,
		Interpolator: opts.Interpolator,
		Fit:          opts.Fit,
	}
	mode := opts.Loop
	if mode == LoopDefault {
		mode = def
	}
	var plays int
	switch mode {
	case LoopOnce:
		plays = 1
	case LoopForever:
		plays = 0
	case LoopFile:
		plays = g.Plays()
	default:
		return nil, fmt.Errorf("invalid loop mode: %v", mode)
	}
	return &playback{
		gif:     g,
		render:  animation.NewRenderer(g, scaler, cache),
		delays:  delays,
		offsets: offsets,
		plays:   plays,
		speed:   speed,
	}, nil
}

func validSpeed(speed float64) error {
	if speed <= 0 || math.IsInf(speed, 0) || math.IsNaN(speed) {
		return fmt.Errorf("invalid speed: %v", speed)
	}
	return nil
}

// duration returns the duration of a single play at unit speed.
func (p *playback) duration() time.Duration {
	return p.offsets[len(p.offsets)-1]
}

// frameAt returns the index of the frame shown at d into a single play.
func (p *playback) frameAt(d time.Duration) int {
	n := len(p.delays)
	i := sort.Search(n, func(i int) bool { return p.offsets[i+1] > d })
	if i == n {
		i = n - 1
	}
	return i
}

// scaled returns d scaled by the playback speed.
func scaled(d time.Duration, speed float64) time.Duration {
	return time.Duration(float64(d) / speed)
}

// errStopped is the cancellation cause used by runner.halt.
var errStopped = errors.New("player stopped")

// runner manages the lifetime of a single background playback goroutine.
type runner struct {
	mu     sync.Mutex
	cancel context.CancelCauseFunc
	done   chan struct{}

	resMu sync.Mutex
	err   error
}

// start halts any running goroutine, calls reset and then starts fn in a
// new goroutine.
func (r *runner) start(ctx context.Context, reset func(), fn func(context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.halt()
	if reset != nil {
		reset()
	}
	ctx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.setResult(nil)
	go func() {
		defer close(done)
		defer cancel(nil)
		err := fn(ctx)
		if context.Cause(ctx) == errStopped {
			err = nil
		}
		r.setResult(err)
	}()
}

// stop halts the running goroutine if there is one.
func (r *runner) stop() {
	r.mu.Lock()
	r.halt()
	r.mu.Unlock()
}

// halt cancels the running goroutine and waits for it to return.
// r.mu must be held.
func (r *runner) halt() {
	if r.cancel == nil {
		return
	}
	r.cancel(errStopped)
	<-r.done
	r.cancel = nil
}

// wait waits for the current goroutine to return and returns its result.
func (r *runner) wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return r.result()
	}
}

// doneChan returns a channel that is closed when the current goroutine
// returns. If no goroutine has been started, a closed channel is returned.
func (r *runner) doneChan() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return r.done
}

func (r *runner) running() bool {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (r *runner) setResult(err error) {
	r.resMu.Lock()
	r.err = err
	r.resMu.Unlock()
}

func (r *runner) result() error {
	r.resMu.Lock()
	defer r.resMu.Unlock()
	return r.err
}
