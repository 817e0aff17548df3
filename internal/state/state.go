// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package state provides playback position persistence.
package state

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/kortschak/gifview/internal/xdg"

	// For sql.DB registration.
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no position is stored for a source.
var ErrNotFound = errors.New("not found")

// DB is a persistent position store.
type DB struct {
	mu    sync.Mutex
	store *sql.DB
	log   *slog.Logger
}

// Schema is the DB schema. Positions are keyed by the animation source
// path and nanosecond durations are stored as integers.
const Schema = `
create table if not exists position(
	src      TEXT NOT NULL PRIMARY KEY,
	frame    INTEGER NOT NULL,
	elapsed  INTEGER NOT NULL,
	frames   INTEGER NOT NULL,
	updated  TEXT NOT NULL
);
`

const (
	upsert = `
insert into position values(?, ?, ?, ?, ?)
  on conflict(src) do update set frame=?, elapsed=?, frames=?, updated=?;
`

	get = `
select frame, elapsed, frames, updated from position where src is ?;
`

	delet = `
delete from position where src is ?;
`

	dump = `
select * from position;
`
)

// Position is a stored playback position.
type Position struct {
	// Frame is the frame index being shown.
	Frame int `json:"frame"`
	// Elapsed is the playback position within
	// the animation's loop.
	Elapsed time.Duration `json:"elapsed"`
	// Frames is the number of frames in the
	// animation when the position was stored.
	Frames int `json:"frames"`
	// Updated is the time the position was stored.
	Updated time.Time `json:"updated"`
}

// DefaultPath returns the path to the default state database, creating
// the state directory if necessary.
func DefaultPath() (string, error) {
	dir, err := xdg.Ensure(xdg.StateHome, "gifview", 0o755)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.db"), nil
}

// Open opens a DB, creating the tables if required.
// See https://pkg.go.dev/modernc.org/sqlite#Driver.Open for name handling
// details.
func Open(name string, log *slog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(Schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DB{store: db, log: log.With(slog.String("component", "state"))}, nil
}

// SetPosition stores the playback position for src. If p.Updated is zero
// the current time is used.
func (db *DB) SetPosition(ctx context.Context, src string, p Position) error {
	if p.Updated.IsZero() {
		p.Updated = time.Now()
	}
	db.log.LogAttrs(ctx, slog.LevelDebug, "set", slog.String("src", src), slog.Any("position", p))
	updated := p.Updated.UTC().Format(time.RFC3339Nano)
	db.mu.Lock()
	_, err := db.store.ExecContext(ctx, upsert,
		src, p.Frame, int64(p.Elapsed), p.Frames, updated,
		p.Frame, int64(p.Elapsed), p.Frames, updated,
	)
	db.mu.Unlock()
	if err != nil {
		db.log.LogAttrs(ctx, slog.LevelError, "set", slog.String("src", src), slog.Any("error", err))
	}
	return err
}

// Position returns the stored playback position for src. Position returns
// ErrNotFound if no position is stored.
func (db *DB) Position(ctx context.Context, src string) (Position, error) {
	db.log.LogAttrs(ctx, slog.LevelDebug, "get", slog.String("src", src))
	db.mu.Lock()
	p, err := db.position(ctx, src)
	db.mu.Unlock()
	if err != nil && err != ErrNotFound {
		db.log.LogAttrs(ctx, slog.LevelError, "get", slog.String("src", src), slog.Any("error", err))
	}
	return p, err
}

func (db *DB) position(ctx context.Context, src string) (Position, error) {
	var (
		p       Position
		elapsed int64
		updated string
	)
	err := db.store.QueryRowContext(ctx, get, src).Scan(&p.Frame, &elapsed, &p.Frames, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Position{}, ErrNotFound
		}
		return Position{}, err
	}
	p.Elapsed = time.Duration(elapsed)
	p.Updated, err = time.Parse(time.RFC3339Nano, updated)
	return p, err
}

// Delete removes the stored position for src.
func (db *DB) Delete(ctx context.Context, src string) error {
	db.log.LogAttrs(ctx, slog.LevelDebug, "delete", slog.String("src", src))
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.store.ExecContext(ctx, delet, src)
	if err != nil {
		db.log.LogAttrs(ctx, slog.LevelError, "delete", slog.String("src", src), slog.Any("error", err))
	}
	return err
}

// Dump returns a Go map with the contents of the database.
func (db *DB) Dump(ctx context.Context) (map[string]Position, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	rows, err := db.store.QueryContext(ctx, dump)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var (
		src     string
		elapsed int64
		updated string
	)
	d := make(map[string]Position)
	for rows.Next() {
		var p Position
		err = rows.Scan(&src, &p.Frame, &elapsed, &p.Frames, &updated)
		if err != nil {
			return nil, err
		}
		p.Elapsed = time.Duration(elapsed)
		p.Updated, err = time.Parse(time.RFC3339Nano, updated)
		if err != nil {
			return nil, err
		}
		d[src] = p
	}
	return d, rows.Err()
}

// Close closes the database.
func (db *DB) Close() error {
	return db.store.Close()
}
