// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kortschak/gifview/internal/animation"
	"github.com/kortschak/gifview/internal/slogext"
)

// Clock is a player that selects the frame to show from the time elapsed
// since playback started. The playback position is the elapsed time
// multiplied by the speed; in LoopForever mode the position is taken modulo
// the animation's duration. A Clock is safe for concurrent use.
type Clock struct {
	pb  *playback
	now func() time.Time
	log *slog.Logger

	mu      sync.Mutex
	started bool
	// base is the playback position at the wall
	// time anchor.
	anchor time.Time
	base   time.Duration
	paused bool
	speed  float64

	running atomic.Bool
	wake    chan struct{}
}

// NewClock returns a new Clock for g. Playback starts at the first call to
// Frame or Run.
func NewClock(g *animation.GIF, opts Options, log *slog.Logger) (*Clock, error) {
	pb, err := newPlayback(g, opts, LoopForever)
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slogext.Discard()
	}
	return &Clock{
		pb:    pb,
		now:   now,
		log:   log.With(slog.String("component", "clock")),
		speed: pb.speed,
		wake:  make(chan struct{}, 1),
	}, nil
}

// Frame returns the frame to show at the provided time.
func (c *Clock) Frame(now time.Time) (Frame, error) {
	f, _, _, err := c.frame(now)
	return f, err
}

// frame returns the frame to show at now and the wall time until the
// next frame is due. The returned wait is negative if no frame change
// is due. finished is true if the allowed plays are exhausted.
func (c *Clock) frame(now time.Time) (f Frame, wait time.Duration, finished bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		c.started = true
		c.anchor = now
	}
	i, loop, rel, finished := c.locate(c.position(now))
	img, err := c.pb.render.Frame(i)
	if err != nil {
		return Frame{}, -1, false, err
	}
	f = Frame{
		Index: i,
		Image: img,
		Delay: scaled(c.pb.delays[i], c.speed),
		Loop:  loop,
	}
	if finished || c.paused {
		return f, -1, finished, nil
	}
	wait = scaled(c.pb.offsets[i+1]-rel, c.speed)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return f, wait, false, nil
}

// position returns the playback position at now. c.mu must be held.
func (c *Clock) position(now time.Time) time.Duration {
	if !c.started || c.paused {
		return c.base
	}
	return c.base + time.Duration(float64(now.Sub(c.anchor))*c.speed)
}

// locate returns the frame index, loop and position within the loop for
// the playback position p. If the allowed number of plays has been
// exhausted, the last frame of the last play is returned with finished
// set to true.
func (c *Clock) locate(p time.Duration) (index, loop int, rel time.Duration, finished bool) {
	d := c.pb.duration()
	loop = int(p / d)
	if c.pb.plays != 0 && loop >= c.pb.plays {
		return len(c.pb.delays) - 1, c.pb.plays - 1, d, true
	}
	rel = p % d
	return c.pb.frameAt(rel), loop, rel, false
}

// Run shows frames on sink until ctx is cancelled or an error occurs.
// After each frame is shown, Run waits until the next frame is due. When
// the allowed plays are exhausted the final frame is held until playback
// is restarted or ctx is cancelled.
func (c *Clock) Run(ctx context.Context, sink Sink) error {
	return c.run(ctx, sink, true)
}

// Play is like Run, but returns nil once the final frame of a finite
// playback has been shown.
func (c *Clock) Play(ctx context.Context, sink Sink) error {
	return c.run(ctx, sink, false)
}

func (c *Clock) run(ctx context.Context, sink Sink, hold bool) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("clock already running")
	}
	defer c.running.Store(false)
	c.log.LogAttrs(ctx, slog.LevelDebug, "start playback", slog.Int("frames", len(c.pb.delays)), slog.Int("plays", c.pb.plays))
	// Any wake before now is subsumed by the first paint.
	select {
	case <-c.wake:
	default:
	}
	last := -1
	for {
		f, wait, finished, err := c.frame(c.now())
		if err != nil {
			return err
		}
		if f.Index != last {
			err = sink.Show(ctx, f)
			if err != nil {
				return fmt.Errorf("show frame %d: %w", f.Index, err)
			}
			last = f.Index
		}
		if finished && !hold {
			c.log.LogAttrs(ctx, slog.LevelDebug, "end of stream", slog.Int("index", f.Index), slog.Int("loop", f.Loop))
			return nil
		}

		var (
			timer   *time.Timer
			timeout <-chan time.Time
		)
		if wait >= 0 {
			timer = time.NewTimer(wait)
			timeout = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			c.log.LogAttrs(ctx, slog.LevelDebug, "stop playback", slog.Int("index", f.Index), slog.Any("cause", context.Cause(ctx)))
			return ctx.Err()
		case <-c.wake:
			if timer != nil {
				timer.Stop()
			}
			// Repaint after a restart or seek even if
			// the frame index is unchanged.
			last = -1
		case <-timeout:
		}
	}
}

// Start restarts playback from the first frame.
func (c *Clock) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.started = false
	c.base = 0
	c.paused = false
	c.mu.Unlock()
	c.notify()
	return nil
}

// Stop pauses playback.
func (c *Clock) Stop() {
	c.Pause()
}

// Pause pauses playback, retaining the playback position so that the
// remainder of the current frame is shown when playback is resumed.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	now := c.now()
	if !c.started {
		c.started = true
		c.anchor = now
	}
	c.base = c.position(now)
	c.paused = true
}

// Resume resumes paused playback.
func (c *Clock) Resume() {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		return
	}
	c.anchor = c.now()
	c.paused = false
	c.mu.Unlock()
	c.notify()
}

// SeekTime moves the playback position to d.
func (c *Clock) SeekTime(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid seek time: %v", d)
	}
	c.mu.Lock()
	c.setPosition(d)
	c.mu.Unlock()
	c.notify()
	return nil
}

// SeekFrame moves the playback position to the start of frame i in the
// current play.
func (c *Clock) SeekFrame(i int) error {
	if i < 0 || i >= len(c.pb.delays) {
		return animation.ErrFrameRange
	}
	c.mu.Lock()
	_, loop, _, _ := c.locate(c.position(c.now()))
	c.setPosition(time.Duration(loop)*c.pb.duration() + c.pb.offsets[i])
	c.mu.Unlock()
	c.notify()
	return nil
}

// setPosition sets the playback position to p. c.mu must be held.
func (c *Clock) setPosition(p time.Duration) {
	c.started = true
	c.base = p
	c.anchor = c.now()
}

// SetSpeed sets the playback speed multiplier.
func (c *Clock) SetSpeed(speed float64) error {
	if err := validSpeed(speed); err != nil {
		return err
	}
	c.mu.Lock()
	c.setPosition(c.position(c.now()))
	c.speed = speed
	c.mu.Unlock()
	c.notify()
	return nil
}

// Position returns the playback position within the current play.
func (c *Clock) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _, rel, _ := c.locate(c.position(c.now()))
	return rel
}

// Duration returns the duration of a single play at unit speed.
func (c *Clock) Duration() time.Duration {
	return c.pb.duration()
}

// State returns a snapshot of the Clock's state.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, loop, rel, _ := c.locate(c.position(c.now()))
	return State{
		Running:  c.running.Load() && !c.paused,
		Index:    i,
		Loop:     loop,
		Frames:   len(c.pb.delays),
		Position: rel,
		Duration: c.pb.duration(),
	}
}

func (c *Clock) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
