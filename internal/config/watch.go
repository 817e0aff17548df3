// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"hash"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change is a set of changes to a watched configuration file.
type Change struct {
	// Event holds the file system events that resulted in the change.
	Event []fsnotify.Event
	// Config is the new configuration. It is nil if the file was
	// removed or renamed, or if the new file is not valid.
	Config *Player
	// Err is any error encountered reading or validating the file.
	Err error
}

// Op returns the union of the operations in the change events.
func (c Change) Op() fsnotify.Op {
	var op fsnotify.Op
	for _, e := range c.Event {
		op |= e.Op
	}
	return op
}

// Sum is a configuration hash sum.
type Sum [sha1.Size]byte

func (s Sum) String() string {
	return hex.EncodeToString(s[:])
}

// Watcher watches a single configuration file for changes.
type Watcher struct {
	path     string
	debounce time.Duration
	changes  chan<- Change

	watcher *fsnotify.Watcher
	hash    hash.Hash
	sum     Sum

	log *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// Watch starts watching the configuration file at path, sending changes
// on the provided channel. Writes are debounced by the provided duration
// and changes that do not alter the semantic content of the configuration
// are not sent. The directory holding path must exist. The returned
// Watcher must be closed to release resources.
func Watch(ctx context.Context, path string, changes chan<- Change, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the parent directory so that files replaced by rename are
	// still seen.
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		watcher.Close()
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		path:     path,
		debounce: debounce,
		changes:  changes,
		watcher:  watcher,
		hash:     sha1.New(),
		log:      log.With(slog.String("component", "watcher")),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	b, err := os.ReadFile(path)
	if err == nil {
		_, w.sum, _ = w.parse(b)
	}
	go func() {
		defer close(w.done)
		w.process(ctx)
	}()
	return w, nil
}

// Close stops the watcher and waits for it to finish.
func (w *Watcher) Close() error {
	w.cancel()
	<-w.done
	return w.watcher.Close()
}

// process watches the fsnotify.Watcher events, filtering for the watched
// file and semantic changes.
func (w *Watcher) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write | fsnotify.Create):
				w.log.LogAttrs(ctx, slog.LevelDebug, "write", slog.String("name", ev.Name), slog.String("op", ev.Op.String()))
				select {
				case <-ctx.Done():
					return
				case <-time.After(w.debounce):
				}

				b, err := os.ReadFile(w.path)
				if err != nil {
					if errors.Is(err, os.ErrNotExist) {
						// Already gone; the remove event will follow.
						continue
					}
					w.log.LogAttrs(ctx, slog.LevelError, "read file", slog.Any("error", err))
					w.send(ctx, Change{Event: []fsnotify.Event{ev}, Err: err})
					continue
				}
				cfg, sum, err := w.parse(b)
				if sum == w.sum {
					w.log.LogAttrs(ctx, slog.LevelDebug, "no change", slog.String("sum", sum.String()))
					continue
				}
				w.log.LogAttrs(ctx, slog.LevelDebug, "set hash", slog.String("sum", sum.String()), slog.String("previous", w.sum.String()))
				w.sum = sum
				w.send(ctx, Change{
					Event:  []fsnotify.Event{ev},
					Config: cfg,
					Err:    err,
				})

			case ev.Has(fsnotify.Rename | fsnotify.Remove):
				w.log.LogAttrs(ctx, slog.LevelDebug, "remove", slog.String("name", ev.Name), slog.String("op", ev.Op.String()))
				w.sum = Sum{}
				w.send(ctx, Change{Event: []fsnotify.Event{ev}})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send(ctx, Change{Err: err})
		}
	}
}

// parse returns the parsed configuration and its hash sum. Valid
// configurations are hashed by their JSON encoding so that formatting
// changes are not reported. Invalid configurations are hashed by their
// raw bytes.
func (w *Watcher) parse(b []byte) (*Player, Sum, error) {
	var sum Sum
	w.hash.Reset()
	cfg, err := Parse(b)
	if err == nil && json.NewEncoder(w.hash).Encode(cfg) == nil {
		w.hash.Sum(sum[:0])
		return cfg, sum, nil
	}
	w.hash.Reset()
	w.hash.Write(b)
	w.hash.Sum(sum[:0])
	return nil, sum, err
}

func (w *Watcher) send(ctx context.Context, c Change) {
	select {
	case <-ctx.Done():
	case w.changes <- c:
	}
}
