// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sink

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/kortschak/gifview/internal/player"
)

// Dir is a sink that writes each shown frame to a directory as a PNG
// image. Frames are named frame-%04d.png in the order they are shown.
// The directory is locked while the Dir is open.
type Dir struct {
	path string
	lock *flock.Flock

	mu sync.Mutex
	n  int
}

// lockName is the name of a Dir's lock file.
const lockName = ".lock"

// NewDir returns a Dir writing to the directory at path, creating it if
// necessary. It is an error if another Dir holds the directory.
func NewDir(path string) (*Dir, error) {
	err := os.MkdirAll(path, 0o755)
	if err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(path, lockName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s is in use", path)
	}
	return &Dir{path: path, lock: fl}, nil
}

// Show implements the player.Sink interface.
func (d *Dir) Show(ctx context.Context, f player.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := filepath.Join(d.path, fmt.Sprintf("frame-%04d.png", d.n))
	w, err := os.Create(name)
	if err != nil {
		return err
	}
	err = png.Encode(w, f.Image)
	if err != nil {
		w.Close()
		return err
	}
	err = w.Close()
	if err != nil {
		return err
	}
	d.n++
	return nil
}

// Len returns the number of frames written.
func (d *Dir) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

// Close releases the directory lock.
func (d *Dir) Close() error {
	return errors.Join(d.lock.Unlock(), os.Remove(d.lock.Path()))
}
