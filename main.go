// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The gifview command plays animated GIF images.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	public "github.com/kortschak/gifview/config"
	"github.com/kortschak/gifview/internal/config"
	"github.com/kortschak/gifview/internal/slogext"
	"github.com/kortschak/gifview/internal/version"
)

func main() {
	os.Exit(Main())
}

// Main is the gifview entry point. It returns the process exit status.
func Main() int {
	cfgPath := flag.String("config", "", "configuration file path (default $XDG_CONFIG_HOME/gifview/gifview.toml if present)")
	logging := flag.String("log", "info", "logging level (debug, info, warn or error)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	v := flag.Bool("version", false, "print version and exit")
	watch := flag.Bool("watch", false, "restart playback when the configuration file changes")

	var cli public.Player
	flag.StringVar(&cli.Mode, "mode", "", "player type (timer or clock)")
	flag.StringVar(&cli.Loop, "loop", "", "loop mode (once, forever or file)")
	flag.IntVar(&cli.Delay, "delay", 0, "frame delay divisor")
	flag.Float64Var(&cli.Speed, "speed", 0, "playback speed multiplier")
	flag.BoolVar(&cli.Stopped, "stopped", false, "wait for a control start call before playing")
	flag.IntVar(&cli.Width, "width", 0, "output width in pixels")
	flag.IntVar(&cli.Height, "height", 0, "output height in pixels")
	flag.StringVar(&cli.Scaler, "scaler", "", "scaling interpolator (nearest, approx-bilinear, bilinear or catmull-rom)")
	flag.StringVar(&cli.Fit, "fit", "", "scaling fit (stretch or contain)")
	flag.IntVar(&cli.Cache, "cache", 0, "number of rendered frames to cache (0 caches all)")
	flag.StringVar(&cli.DelayPolicy, "policy", "", "CEL frame delay policy")
	flag.StringVar(&cli.Sink, "sink", "", "output (term, dir, gif or none)")
	flag.StringVar(&cli.Out, "out", "", "output path for dir and gif sinks")
	network := flag.String("control", "", "control server network (unix or tcp)")
	addr := flag.String("addr", "", "control server address (implies -control=tcp if no network is configured)")
	flag.BoolVar(&cli.Resume, "resume", false, "persist and restore the playback position")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage of %s:

  %[1]s [options] [<file>]

Play an animated GIF. Options override values in the configuration file.

`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *v {
		err := version.Print(os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	if flag.NArg() > 1 {
		flag.Usage()
		return 2
	}
	cli.Control = &public.Control{Network: *network, Addr: *addr}
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	var level slog.LevelVar
	err := level.UnmarshalText([]byte(*logging))
	if err != nil {
		flag.Usage()
		return 2
	}
	addSource := slogext.NewAtomicBool(*lines)

	// log is the root logger.
	log := slog.New(slogext.GoID{Handler: slogext.NewJSONHandler(os.Stderr, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: addSource,
	})})

	a := &app{
		cli:       cli,
		src:       flag.Arg(0),
		set:       set,
		level:     &level,
		addSource: addSource,
		log:       log,
		// mlog is the logger for main.
		mlog: log.With(slog.String("component", "main")),
	}

	path := *cfgPath
	if path == "" {
		path, err = config.DefaultPath()
		if err != nil {
			if !errors.Is(err, syscall.ENOENT) {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			path = ""
		}
	}
	cfg := &public.Player{}
	if path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitStatus(err)
		}
	}
	cfg, err = a.configure(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitStatus(err)
	}
	if *watch && path == "" {
		fmt.Fprintln(os.Stderr, "watch requires a configuration file")
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *watch {
		err = a.watch(ctx, path, cfg)
	} else {
		err = a.play(ctx, cfg)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// exitStatus returns the exit status for a configuration error.
func exitStatus(err error) int {
	var invalid *config.InvalidError
	if errors.As(err, &invalid) || errors.Is(err, errNoSource) {
		return 2
	}
	return 1
}
