// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xdg provides functions for locating the gifview configuration,
// state and runtime directories.
package xdg

import (
	"os"
	"path/filepath"
	"syscall"
)

// base is a single base directory definition. key is the environment
// variable overriding the directory and def is the default, relative to
// $HOME unless it is absolute. An empty def means there is no default.
type base struct {
	key, def string
}

// Config returns the path to the named file in the user's configuration
// directory. If no file is found Config returns ENOENT.
func Config(name string) (string, error) {
	return find(name, configHome)
}

// ConfigHome returns the user's configuration directory.
func ConfigHome() (string, bool) {
	return configHome.path()
}

// State returns the path to the named file in the user's state directory.
// If no file is found State returns ENOENT.
func State(name string) (string, error) {
	return find(name, stateHome)
}

// StateHome returns the user's state directory.
func StateHome() (string, bool) {
	return stateHome.path()
}

// Runtime returns the path to the named file in the runtime directory.
// If no file is found Runtime returns ENOENT.
func Runtime(name string) (string, error) {
	return find(name, runtimeDir)
}

// RuntimeDir returns the runtime directory.
func RuntimeDir() (string, bool) {
	return runtimeDir.path()
}

// Ensure returns the named directory within the provided base directory
// lookup, creating it with the given permissions if it does not exist.
func Ensure(dir func() (string, bool), name string, perm os.FileMode) (string, error) {
	root, ok := dir()
	if !ok {
		return "", syscall.ENOENT
	}
	path := filepath.Join(root, name)
	err := os.MkdirAll(path, perm)
	if err != nil {
		return "", err
	}
	return path, nil
}

func find(name string, b base) (string, error) {
	dir, ok := b.path()
	if !ok {
		return "", syscall.ENOENT
	}
	path := filepath.Join(dir, name)
	_, err := os.Stat(path)
	if err != nil {
		return "", syscall.ENOENT
	}
	return path, nil
}

// path returns the directory for b, preferring the environment.
func (b base) path() (string, bool) {
	return envOrDefault(b.key, b.def, "HOME")
}

// envOrDefault return the path corresponding to the provided key and default.
// If home is empty or the default is absolute, the default is returned
// unaltered, otherwise the default is returned relative to the value of the
// home environment variable.
func envOrDefault(key, def, home string) (string, bool) {
	if key != "" {
		val, ok := os.LookupEnv(key)
		if ok {
			return val, true
		}
	}
	if def == "" {
		return "", false
	}
	if home == "" || filepath.IsAbs(def) {
		return def, true
	}
	dir, ok := os.LookupEnv(home)
	if !ok {
		return "", false
	}
	return filepath.Join(dir, def), true
}
