// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/kortschak/gifview/internal/control"
)

var (
	update = flag.Bool("update", false, "update tests")
	keep   = flag.Bool("keep", false, "keep $WORK directory after tests")
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"gifview": Main,
		"mkgif":   mkgif,
		"gifinfo": gifinfo,
		"ctl":     ctl,
	}))
}

func TestScripts(t *testing.T) {
	t.Parallel()

	p := testscript.Params{
		Dir:           filepath.Join("testdata"),
		UpdateScripts: *update,
		TestWork:      *keep,
		Setup: func(e *testscript.Env) error {
			e.Setenv("XDG_CONFIG_HOME", filepath.Join(e.WorkDir, "config"))
			e.Setenv("XDG_STATE_HOME", filepath.Join(e.WorkDir, "state"))
			e.Setenv("XDG_RUNTIME_DIR", filepath.Join(e.WorkDir, "run"))
			return nil
		},
		Cmds: map[string]func(ts *testscript.TestScript, neg bool, args []string){
			"sleep": sleep,
		},
	}
	testscript.Run(t, p)
}

func sleep(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("unsupported: ! sleep")
	}
	if len(args) != 1 {
		ts.Fatalf("usage: sleep duration")
	}
	d, err := time.ParseDuration(args[0])
	ts.Check(err)
	time.Sleep(d)
}

var mkgifPalette = color.Palette{
	color.RGBA{A: 0xff},
	color.RGBA{R: 0xff, A: 0xff},
	color.RGBA{G: 0xff, A: 0xff},
	color.RGBA{B: 0xff, A: 0xff},
}

// mkgif writes an animated GIF with the requested number of 8x8 frames,
// each filled with a different colour.
func mkgif() int {
	loop := flag.Int("loop", 0, "loop count")
	delay := flag.Int("delay", 1, "frame delay in hundredths of a second")
	flag.Parse()
	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: mkgif [-loop n] [-delay d] <out.gif> <frames>")
		return 2
	}
	n, err := strconv.Atoi(flag.Arg(1))
	if err != nil || n < 1 {
		fmt.Fprintf(os.Stderr, "invalid frame count: %q\n", flag.Arg(1))
		return 2
	}
	g := &gif.GIF{
		LoopCount: *loop,
		Config:    image.Config{Width: 8, Height: 8, ColorModel: mkgifPalette},
	}
	for i := 0; i < n; i++ {
		img := image.NewPaletted(image.Rect(0, 0, 8, 8), mkgifPalette)
		for j := range img.Pix {
			img.Pix[j] = uint8(i % len(mkgifPalette))
		}
		g.Image = append(g.Image, img)
		g.Delay = append(g.Delay, *delay)
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}
	f, err := os.Create(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	err = gif.EncodeAll(f, g)
	if err != nil {
		f.Close()
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	err = f.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// gifinfo prints a summary of a GIF file.
func gifinfo() int {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: gifinfo <file.gif>")
		return 2
	}
	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer f.Close()
	g, err := gif.DecodeAll(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	delays := make([]string, len(g.Delay))
	for i, d := range g.Delay {
		delays[i] = strconv.Itoa(d)
	}
	fmt.Printf("size=%dx%d frames=%d loop=%d delays=%s\n",
		g.Config.Width, g.Config.Height, len(g.Image), g.LoopCount, strings.Join(delays, ","))
	return 0
}

// ctl makes a control call to a gifview control server listening on
// a unix socket and prints the JSON encoded player state.
func ctl() int {
	flag.Parse()
	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: ctl <socket> <method> [<arg>]")
		return 2
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		c   *control.Client
		err error
	)
	for {
		c, err = control.Dial(ctx, "unix", flag.Arg(0), net.Dialer{})
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "failed to dial: %v\n", err)
			return 1
		case <-time.After(10 * time.Millisecond):
		}
	}
	defer c.Close()

	var res any
	switch method := flag.Arg(1); method {
	case "who":
		res, err = c.Who(ctx)
	case "state":
		res, err = c.State(ctx)
	case "start":
		res, err = c.Start(ctx)
	case "stop":
		res, err = c.Stop(ctx)
	case "seek-frame", "seek-time", "speed":
		if flag.NArg() != 3 {
			fmt.Fprintf(os.Stderr, "usage: ctl <socket> %s <arg>\n", method)
			return 2
		}
		arg := flag.Arg(2)
		switch method {
		case "seek-frame":
			var i int
			i, err = strconv.Atoi(arg)
			if err == nil {
				res, err = c.SeekFrame(ctx, i)
			}
		case "seek-time":
			var d time.Duration
			d, err = time.ParseDuration(arg)
			if err == nil {
				res, err = c.SeekTime(ctx, d)
			}
		case "speed":
			var f float64
			f, err = strconv.ParseFloat(arg, 64)
			if err == nil {
				res, err = c.SetSpeed(ctx, f)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown method: %s\n", method)
		return 2
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	b, err := json.Marshal(res)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("%s\n", b)
	return 0
}
