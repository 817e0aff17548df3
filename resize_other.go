// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/kortschak/gifview/internal/sink"
)

// watchResize is a no-op on platforms without SIGWINCH.
func watchResize(ctx context.Context, t *sink.Terminal, f *os.File, log *slog.Logger) (stop func()) {
	return func() {}
}
