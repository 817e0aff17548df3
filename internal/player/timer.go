// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kortschak/gifview/internal/animation"
	"github.com/kortschak/gifview/internal/slogext"
)

// Timer is a player that advances through frames on a timer, showing each
// frame on its sink for the frame's delay. A Timer is safe for concurrent
// use.
type Timer struct {
	pb   *playback
	sink Sink
	log  *slog.Logger

	runner

	index atomic.Int64
	loop  atomic.Int64
	// seek holds a pending seek target plus one.
	// seekMu serialises seeks with the exit of the
	// playback goroutine, and exited is true when no
	// playback goroutine will consume a pending seek.
	seek   atomic.Int64
	seekMu sync.Mutex
	exited bool
	wake   chan struct{}
}

// NewTimer returns a new Timer showing frames from g on sink. The Timer is
// initially stopped.
func NewTimer(g *animation.GIF, sink Sink, opts Options, log *slog.Logger) (*Timer, error) {
	if sink == nil {
		return nil, errors.New("no sink")
	}
	pb, err := newPlayback(g, opts, LoopOnce)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slogext.Discard()
	}
	return &Timer{
		pb:   pb,
		sink: sink,
		log:    log.With(slog.String("component", "timer")),
		exited: true,
		wake:   make(chan struct{}, 1),
	}, nil
}

// Start starts playback from the first frame. If the Timer is already
// running, the running playback is stopped before the new one starts.
func (t *Timer) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.start(ctx, func() {
		t.index.Store(0)
		t.loop.Store(0)
		t.seek.Store(0)
		select {
		case <-t.wake:
		default:
		}
		t.seekMu.Lock()
		t.exited = false
		t.seekMu.Unlock()
	}, t.play)
	return nil
}

// Stop stops playback and waits for the playback goroutine to return.
func (t *Timer) Stop() {
	t.stop()
}

// Wait waits for playback to end and returns its result. Playback that
// ends at the end of the animation or by a call to Stop returns nil.
func (t *Timer) Wait(ctx context.Context) error {
	return t.wait(ctx)
}

// Done returns a channel that is closed when the current playback ends.
func (t *Timer) Done() <-chan struct{} {
	return t.doneChan()
}

// SeekFrame moves playback to frame i. If the Timer is running the frame
// is shown immediately.
func (t *Timer) SeekFrame(i int) error {
	if i < 0 || i >= len(t.pb.delays) {
		return animation.ErrFrameRange
	}
	t.seekMu.Lock()
	defer t.seekMu.Unlock()
	if t.exited {
		t.index.Store(int64(i))
		return nil
	}
	t.seek.Store(int64(i) + 1)
	select {
	case t.wake <- struct{}{}:
	default:
	}
	return nil
}

// SeekTime moves playback to the frame shown at d into the animation.
// Times beyond the animation's duration wrap.
func (t *Timer) SeekTime(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid seek time: %v", d)
	}
	return t.SeekFrame(t.pb.frameAt(d % t.pb.duration()))
}

// State returns a snapshot of the Timer's state.
func (t *Timer) State() State {
	i := int(t.index.Load())
	s := State{
		Running:  t.running(),
		Index:    i,
		Loop:     int(t.loop.Load()),
		Frames:   len(t.pb.delays),
		Position: t.pb.offsets[i],
		Duration: t.pb.duration(),
	}
	if err := t.result(); err != nil {
		s.Err = err.Error()
	}
	return s
}

func (t *Timer) play(ctx context.Context) error {
	n := len(t.pb.delays)
	t.log.LogAttrs(ctx, slog.LevelDebug, "start playback", slog.Int("frames", n), slog.Int("plays", t.pb.plays))
	defer func() {
		t.seekMu.Lock()
		if s := t.seek.Swap(0); s != 0 {
			t.index.Store(s - 1)
		}
		t.exited = true
		t.seekMu.Unlock()
	}()
	i := int(t.index.Load())
	loop := int(t.loop.Load())
	for {
		if s := t.seek.Swap(0); s != 0 {
			i = int(s - 1)
			t.index.Store(int64(i))
		}
		img, err := t.pb.render.Frame(i)
		if err != nil {
			return err
		}
		delay := scaled(t.pb.delays[i], t.pb.speed)
		err = t.sink.Show(ctx, Frame{Index: i, Image: img, Delay: delay, Loop: loop})
		if err != nil {
			return fmt.Errorf("show frame %d: %w", i, err)
		}
		if i == n-1 && t.pb.plays != 0 && loop+1 >= t.pb.plays && t.seek.Load() == 0 {
			t.log.LogAttrs(ctx, slog.LevelDebug, "end of animation", slog.Int("loop", loop))
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.log.LogAttrs(ctx, slog.LevelDebug, "stop playback", slog.Int("index", i), slog.Any("cause", context.Cause(ctx)))
			return ctx.Err()
		case <-t.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		i++
		if i == n {
			i = 0
			loop++
			t.loop.Store(int64(loop))
		}
		t.index.Store(int64(i))
	}
}
