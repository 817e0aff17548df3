// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides configuration loading, validation and live
// reloading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kortschak/gifview/config"
	"github.com/kortschak/gifview/internal/xdg"
)

// Player is the publicly visible player configuration.
type Player = config.Player

// Name is the default configuration file name relative to the user's
// configuration directory.
var Name = filepath.Join("gifview", "gifview.toml")

// DefaultPath returns the path to the user's default configuration file.
// If no file is found DefaultPath returns ENOENT.
func DefaultPath() (string, error) {
	return xdg.Config(Name)
}

// InvalidError is returned when a configuration is not valid.
type InvalidError struct {
	// Paths is the set of invalid configuration paths.
	Paths [][]string
	Err   error
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *InvalidError) Unwrap() error { return e.Err }

// Load reads and validates the TOML configuration file at path.
func Load(path string) (*Player, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses a TOML configuration and validates it against the
// configuration schema. Unknown keys are an error. Dependencies between
// fields are not checked since they may be satisfied by command line
// options; see Check.
func Parse(b []byte) (*Player, error) {
	var cfg Player
	md, err := toml.Decode(string(b), &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		paths := make([][]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
			paths[i] = k
		}
		return nil, &InvalidError{
			Paths: paths,
			Err:   fmt.Errorf("unknown keys: %s", strings.Join(keys, ", ")),
		}
	}
	err = checkSchema(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Check validates cfg against the configuration schema and checks
// dependencies between fields. It is intended to be called on the final
// configuration after command line options have been applied.
func Check(cfg *Player) error {
	err := checkSchema(cfg)
	if err != nil {
		return err
	}
	switch cfg.Sink {
	case "dir", "gif":
		if cfg.Out == "" {
			return &InvalidError{
				Paths: [][]string{{"out"}},
				Err:   fmt.Errorf("%s sink requires an out path", cfg.Sink),
			}
		}
	}
	if cfg.Stopped && cfg.Control == nil {
		return &InvalidError{
			Paths: [][]string{{"stopped"}},
			Err:   errors.New("stopped requires a control server"),
		}
	}
	if cfg.Resume && cfg.Src == "" {
		return &InvalidError{
			Paths: [][]string{{"resume"}},
			Err:   errors.New("resume requires a source path"),
		}
	}
	return nil
}

func checkSchema(cfg *Player) error {
	paths, err := validate(cfg)
	if err != nil {
		return &InvalidError{Paths: paths, Err: err}
	}
	return nil
}
