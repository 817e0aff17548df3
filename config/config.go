// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides gifview configuration types and schemas.
package config

import (
	"log/slog"
)

// Player is a complete player configuration.
type Player struct {
	// Src is the path to the animation.
	Src string `json:"src,omitempty" toml:"src"`

	// Delay is a frame delay divisor. Playback speed
	// is multiplied by Delay. Zero is treated as 1.
	Delay int `json:"delay,omitempty" toml:"delay"`
	// Speed is a playback speed multiplier. Zero is
	// treated as 1.
	Speed float64 `json:"speed,omitempty" toml:"speed"`
	// Stopped indicates that playback should not
	// start until requested by a control call.
	Stopped bool `json:"stopped,omitempty" toml:"stopped"`
	// Mode is the player type, "timer" or "clock".
	Mode string `json:"mode,omitempty" toml:"mode"`
	// Loop is the loop mode, "once", "forever" or
	// "file". If empty, the player's default is used.
	Loop string `json:"loop,omitempty" toml:"loop"`

	// Width and Height are the output frame size. If
	// both are zero, frames are shown at the animation's
	// size.
	Width  int `json:"width,omitempty" toml:"width"`
	Height int `json:"height,omitempty" toml:"height"`
	// Scaler is the scaling interpolator name.
	Scaler string `json:"scaler,omitempty" toml:"scaler"`
	// Fit is the scaling fit mode name.
	Fit string `json:"fit,omitempty" toml:"fit"`
	// Cache is the number of rendered frames to retain.
	// Zero retains all frames.
	Cache int `json:"cache,omitempty" toml:"cache"`
	// DelayPolicy is a CEL expression overriding the
	// animation's frame delays.
	DelayPolicy string `json:"delay_policy,omitempty" toml:"delay_policy"`

	// Sink is the paint target, "term", "dir", "gif"
	// or "none".
	Sink string `json:"sink,omitempty" toml:"sink"`
	// Out is the output path for the dir and gif sinks.
	Out string `json:"out,omitempty" toml:"out"`

	// Control is the control server configuration.
	// If nil, no control server is started.
	Control *Control `json:"control,omitempty" toml:"control"`

	// Resume indicates that playback position should
	// be persisted and restored.
	Resume bool `json:"resume,omitempty" toml:"resume"`

	LogLevel  *slog.Level `json:"log_level,omitempty" toml:"log_level"`
	AddSource *bool       `json:"log_add_source,omitempty" toml:"log_add_source"`
}

// Control is the control server configuration.
type Control struct {
	// Network is the network the server listens on,
	// "unix" or "tcp".
	Network string `json:"network,omitempty" toml:"network"`
	// Addr is the listen address. If empty, a unix socket
	// is created in the runtime directory, or a tcp socket
	// is opened on a loopback address.
	Addr string `json:"addr,omitempty" toml:"addr"`
}

// Schema is the schema for a valid configuration.
const Schema = `
{
	src?:            string
	delay?:          int & >=1
	speed?:          number & >0
	stopped?:        bool
	mode?:           "timer" | "clock"
	loop?:           "once" | "forever" | "file"
	width?:          int & >=0
	height?:         int & >=0
	scaler?:         "nearest" | "approx-bilinear" | "bilinear" | "catmull-rom"
	fit?:            "stretch" | "contain"
	cache?:          int & >=0
	delay_policy?:   string
	sink?:           _#sink
	out?:            string
	control?:        _#control
	resume?:         bool
	log_level?:      _#log_level
	log_add_source?: bool
}

_#sink: "term" | "dir" | "gif" | "none"

_#control: {
	network: "unix" | "tcp"
	addr?:   string
}

_#log_level: =~"(?i)^(?:debug|info|warn|error)$"
`
