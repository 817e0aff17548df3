// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package xdg

// https://specifications.freedesktop.org/basedir-spec/basedir-spec-0.8.html
var (
	configHome = base{key: "XDG_CONFIG_HOME", def: ".config"}
	stateHome  = base{key: "XDG_STATE_HOME", def: ".local/state"}

	// Fail rather than construct.
	runtimeDir = base{key: "XDG_RUNTIME_DIR"}
)
