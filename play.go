// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/kortschak/jsonrpc2"
	"golang.org/x/term"

	public "github.com/kortschak/gifview/config"
	"github.com/kortschak/gifview/internal/animation"
	"github.com/kortschak/gifview/internal/config"
	"github.com/kortschak/gifview/internal/control"
	"github.com/kortschak/gifview/internal/player"
	"github.com/kortschak/gifview/internal/sink"
	"github.com/kortschak/gifview/internal/state"
)

var errNoSource = errors.New("no animation source")

// debounce is the delay between a configuration file write and reading
// the new configuration.
const debounce = 100 * time.Millisecond

// app holds the command's state that persists across configuration
// changes.
type app struct {
	// cli holds the values of options set on the
	// command line and src is the positional
	// source argument. set holds the names of the
	// options that were set.
	cli public.Player
	src string
	set map[string]bool

	level     *slog.LevelVar
	addSource *atomic.Bool

	log  *slog.Logger
	mlog *slog.Logger
}

// configure applies the command line options to cfg, validates the result
// and updates the logging configuration.
func (a *app) configure(cfg *public.Player) (*public.Player, error) {
	c := *cfg
	cfg = &c
	if a.src != "" {
		cfg.Src = a.src
	}
	for name, ok := range a.set {
		if !ok {
			continue
		}
		switch name {
		case "mode":
			cfg.Mode = a.cli.Mode
		case "loop":
			cfg.Loop = a.cli.Loop
		case "delay":
			cfg.Delay = a.cli.Delay
		case "speed":
			cfg.Speed = a.cli.Speed
		case "stopped":
			cfg.Stopped = a.cli.Stopped
		case "width":
			cfg.Width = a.cli.Width
		case "height":
			cfg.Height = a.cli.Height
		case "scaler":
			cfg.Scaler = a.cli.Scaler
		case "fit":
			cfg.Fit = a.cli.Fit
		case "cache":
			cfg.Cache = a.cli.Cache
		case "policy":
			cfg.DelayPolicy = a.cli.DelayPolicy
		case "sink":
			cfg.Sink = a.cli.Sink
		case "out":
			cfg.Out = a.cli.Out
		case "resume":
			cfg.Resume = a.cli.Resume
		}
	}
	if a.set["control"] || a.set["addr"] {
		ctrl := public.Control{Network: "tcp"}
		if cfg.Control != nil {
			ctrl = *cfg.Control
		}
		if a.set["control"] {
			ctrl.Network = a.cli.Control.Network
		}
		if a.set["addr"] {
			ctrl.Addr = a.cli.Control.Addr
		}
		cfg.Control = &ctrl
	}
	err := config.Check(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Src == "" {
		return nil, errNoSource
	}

	if !a.set["log"] && cfg.LogLevel != nil {
		a.level.Set(*cfg.LogLevel)
	}
	if !a.set["lines"] && cfg.AddSource != nil {
		a.addSource.Store(*cfg.AddSource)
	}
	return cfg, nil
}

// watch plays the configured animation, restarting playback each time
// the configuration file at path changes, until ctx is cancelled.
func (a *app) watch(ctx context.Context, path string, cfg *public.Player) error {
	changes := make(chan config.Change)
	w, err := config.Watch(ctx, path, changes, debounce, a.log)
	if err != nil {
		return err
	}
	defer w.Close()
	for {
		pctx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- a.play(pctx, cfg)
		}()
	wait:
		for {
			select {
			case <-ctx.Done():
				cancel()
				if done != nil {
					return <-done
				}
				return nil
			case err := <-done:
				if err != nil {
					a.mlog.LogAttrs(ctx, slog.LevelError, "playback", slog.Any("error", err))
				}
				// Wait for the next change.
				done = nil
			case c := <-changes:
				if c.Err != nil {
					a.mlog.LogAttrs(ctx, slog.LevelWarn, "config stream error", slog.Any("error", c.Err))
					continue
				}
				if c.Config == nil {
					a.mlog.LogAttrs(ctx, slog.LevelWarn, "config removed", slog.Any("events", c.Event))
					continue
				}
				next, err := a.configure(c.Config)
				if err != nil {
					a.mlog.LogAttrs(ctx, slog.LevelWarn, "invalid config", slog.Any("error", err))
					continue
				}
				a.mlog.LogAttrs(ctx, slog.LevelInfo, "reload config", slog.Any("events", c.Event))
				cancel()
				if done != nil {
					<-done
				}
				cfg = next
				break wait
			}
		}
		cancel()
	}
}

// play plays the animation described by cfg until playback ends or ctx
// is cancelled.
func (a *app) play(ctx context.Context, cfg *public.Player) (err error) {
	a.mlog.LogAttrs(ctx, slog.LevelDebug, "play", slog.Any("config", cfg))
	f, err := os.Open(cfg.Src)
	if err != nil {
		return err
	}
	g, err := animation.Decode(f)
	f.Close()
	if err != nil {
		err = fmt.Errorf("%s: %w", cfg.Src, err)
		a.caption(ctx, cfg, err)
		return err
	}

	opts, err := options(cfg, a.log)
	if err != nil {
		return err
	}
	snk, closeSink, err := a.newSink(ctx, cfg, g)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeSink())
	}()

	var (
		p   control.Player
		run func(context.Context) error
	)
	switch cfg.Mode {
	case "", "timer":
		t, err := player.NewTimer(g, snk, opts, a.log)
		if err != nil {
			return err
		}
		p = t
		run = func(ctx context.Context) error {
			defer t.Stop()
			if cfg.Control != nil {
				// Playback is restartable by the control
				// server, so run until cancelled.
				<-ctx.Done()
				return nil
			}
			return t.Wait(ctx)
		}
	case "clock":
		c, err := player.NewClock(g, opts, a.log)
		if err != nil {
			return err
		}
		if cfg.Stopped {
			c.Pause()
		}
		p = c
		run = func(ctx context.Context) error {
			if cfg.Control != nil {
				return c.Run(ctx, snk)
			}
			return c.Play(ctx, snk)
		}
	default:
		return fmt.Errorf("invalid mode: %q", cfg.Mode)
	}

	var (
		db    *state.DB
		src   string
		ended bool
	)
	if cfg.Resume {
		db, src, err = a.openState(cfg)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, a.save(db, src, p, ended), db.Close())
		}()
	}

	if !cfg.Stopped {
		err = p.Start(ctx)
		if err != nil {
			return err
		}
		if db != nil {
			a.seek(ctx, db, src, p)
		}
	}
	if cfg.Control != nil {
		var srv *control.Server
		srv, err = control.NewServer(ctx, cfg.Control.Network, cfg.Control.Addr, p, jsonrpc2.NetListenOptions{}, a.log)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, srv.Close())
		}()
		a.mlog.LogAttrs(ctx, slog.LevelInfo, "control server", slog.String("network", cfg.Control.Network), slog.String("addr", srv.Addr().String()))
	}

	err = run(ctx)
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	ended = err == nil && ctx.Err() == nil
	return err
}

// options returns the player options described by cfg.
func options(cfg *public.Player, log *slog.Logger) (player.Options, error) {
	loop, err := player.ParseLoopMode(cfg.Loop)
	if err != nil {
		return player.Options{}, err
	}
	interp, err := animation.ParseInterpolator(cfg.Scaler)
	if err != nil {
		return player.Options{}, err
	}
	fit, err := animation.ParseFit(cfg.Fit)
	if err != nil {
		return player.Options{}, err
	}
	speed := cfg.Speed
	if speed == 0 {
		speed = 1
	}
	if cfg.Delay > 1 {
		speed *= float64(cfg.Delay)
	}
	opts := player.Options{
		Speed:        speed,
		Loop:         loop,
		Size:         image.Point{X: cfg.Width, Y: cfg.Height},
		Interpolator: interp,
		Fit:          fit,
		CacheSize:    cfg.Cache,
	}
	if cfg.DelayPolicy != "" {
		opts.Policy, err = animation.CompilePolicy(cfg.DelayPolicy, log)
		if err != nil {
			return player.Options{}, fmt.Errorf("delay policy: %w", err)
		}
	}
	return opts, nil
}

// newSink returns the sink described by cfg and a function to release it.
func (a *app) newSink(ctx context.Context, cfg *public.Player, g *animation.GIF) (player.Sink, func() error, error) {
	switch cfg.Sink {
	case "", "term":
		cols, rows := termSize(os.Stdout)
		t := sink.NewTerminal(os.Stdout, cols, rows)
		stop := watchResize(ctx, t, os.Stdout, a.log)
		return t, func() error {
			stop()
			return t.Close()
		}, nil
	case "dir":
		d, err := sink.NewDir(cfg.Out)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	case "gif":
		f, err := os.Create(cfg.Out)
		if err != nil {
			return nil, nil, err
		}
		s := sink.NewGIF(f, g.LoopCount)
		return s, func() error {
			return errors.Join(s.Close(), f.Close())
		}, nil
	case "none":
		return sink.Discard, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("invalid sink: %q", cfg.Sink)
	}
}

// termSize returns the size of the terminal f in character cells, leaving
// a line for the cursor. If f is not a terminal, zero is returned.
func termSize(f *os.File) (cols, rows int) {
	cols, rows, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0, 0
	}
	return cols, max(0, rows-1)
}

// caption shows err as scrolling text on the terminal if the terminal
// sink is in use.
func (a *app) caption(ctx context.Context, cfg *public.Player, err error) {
	if cfg.Sink != "" && cfg.Sink != "term" {
		return
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}
	pal := color.Palette{
		color.RGBA{A: 0xff},
		color.RGBA{R: 0xff, G: 0x40, B: 0x40, A: 0xff},
	}
	const fg, bg = 1, 0
	c, cerr := animation.Text(err.Error()).GIF(image.Rect(0, 0, 280, 39), pal, fg, bg)
	if cerr != nil {
		a.mlog.LogAttrs(ctx, slog.LevelWarn, "caption", slog.Any("error", cerr))
		return
	}
	cols, rows := termSize(os.Stdout)
	t := sink.NewTerminal(os.Stdout, cols, rows)
	defer t.Close()
	dst := image.NewRGBA(c.Bounds())
	cerr = c.Animate(ctx, dst, func(img image.Image) error {
		return t.Show(ctx, player.Frame{Image: img})
	})
	if cerr != nil && !errors.Is(cerr, context.Canceled) {
		a.mlog.LogAttrs(ctx, slog.LevelWarn, "caption", slog.Any("error", cerr))
	}
}

// openState opens the position store and returns it with the key for the
// animation described by cfg.
func (a *app) openState(cfg *public.Player) (*state.DB, string, error) {
	path, err := state.DefaultPath()
	if err != nil {
		return nil, "", fmt.Errorf("state store: %w", err)
	}
	src, err := filepath.Abs(cfg.Src)
	if err != nil {
		return nil, "", err
	}
	db, err := state.Open(path, a.log)
	if err != nil {
		return nil, "", fmt.Errorf("state store: %w", err)
	}
	return db, src, nil
}

// seek moves playback to the stored position for src if one exists and
// the animation has not changed length.
func (a *app) seek(ctx context.Context, db *state.DB, src string, p control.Player) {
	pos, err := db.Position(ctx, src)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			a.mlog.LogAttrs(ctx, slog.LevelWarn, "resume", slog.Any("error", err))
		}
		return
	}
	frames := p.State().Frames
	if pos.Frames != frames {
		a.mlog.LogAttrs(ctx, slog.LevelInfo, "animation changed", slog.String("src", src), slog.Int("stored", pos.Frames), slog.Int("frames", frames))
		return
	}
	err = p.SeekTime(pos.Elapsed)
	if err != nil {
		a.mlog.LogAttrs(ctx, slog.LevelWarn, "resume", slog.Any("error", err))
		return
	}
	a.mlog.LogAttrs(ctx, slog.LevelInfo, "resume", slog.String("src", src), slog.Int("frame", pos.Frame), slog.Duration("elapsed", pos.Elapsed))
}

// save stores the current playback position of p for src. If playback
// ran to the end of the animation, the stored position is removed so
// the next playback starts from the beginning.
func (a *app) save(db *state.DB, src string, p control.Player, ended bool) error {
	ctx := context.Background()
	if ended {
		return db.Delete(ctx, src)
	}
	s := p.State()
	return db.SetPosition(ctx, src, state.Position{
		Frame:   s.Index,
		Elapsed: s.Position,
		Frames:  s.Frames,
	})
}
