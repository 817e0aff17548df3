// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/kortschak/gifview/internal/sink"
)

// watchResize resizes t when the terminal f changes size. The returned
// function stops watching.
func watchResize(ctx context.Context, t *sink.Terminal, f *os.File, log *slog.Logger) (stop func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, unix.SIGWINCH)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-c:
				cols, rows := termSize(f)
				log.LogAttrs(ctx, slog.LevelDebug, "resize", slog.Int("cols", cols), slog.Int("rows", rows))
				t.Resize(cols, rows)
			}
		}
	}()
	return func() {
		signal.Stop(c)
		close(done)
	}
}
