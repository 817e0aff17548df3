// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kortschak/jsonrpc2"

	"github.com/kortschak/gifview/internal/animation"
	"github.com/kortschak/gifview/internal/player"
	"github.com/kortschak/gifview/internal/slogext"
	"github.com/kortschak/gifview/internal/version"
	"github.com/kortschak/gifview/internal/xdg"
)

// RuntimeDir is the path within XDG_RUNTIME_DIR that unix sockets
// are created in if the unix network is used without an address.
const RuntimeDir = "gifview"

// Player is a controllable animation player.
type Player interface {
	// Start starts playback from the beginning. The
	// provided context bounds the playback lifetime.
	Start(context.Context) error
	Stop()
	SeekFrame(int) error
	SeekTime(time.Duration) error
	State() player.State
}

// Speeder is a Player that can change its playback speed.
type Speeder interface {
	SetSpeed(float64) error
}

// Server is a JSON RPC 2 playback control server.
type Server struct {
	listener *socket
	server   *jsonrpc2.Server
	network  string

	// ctx is the lifetime context for playback
	// started by a start call.
	ctx    context.Context
	player Player

	log *slog.Logger
}

// NewServer returns a new Server controlling p, listening on the provided
// network which may be either "unix" or "tcp". If addr is empty, a unix
// socket is created in the runtime directory or a tcp socket is opened on
// an ephemeral loopback port. Playback started by the server is bound to
// the lifetime of ctx.
func NewServer(ctx context.Context, network, addr string, p Player, options jsonrpc2.NetListenOptions, log *slog.Logger) (*Server, error) {
	if p == nil {
		return nil, errors.New("no player")
	}
	s := Server{
		network: network,
		ctx:     ctx,
		player:  p,
		log:     log.With(slog.String("component", "control")),
	}
	var (
		sock string
		err  error
	)
	switch network {
	case "unix":
		if addr != "" {
			break
		}
		dir, err := xdg.Runtime(RuntimeDir)
		if err != nil {
			if err != syscall.ENOENT {
				return nil, err
			}
			dir, err = xdg.Ensure(xdg.RuntimeDir, RuntimeDir, 0o700)
			if err != nil {
				return nil, fmt.Errorf("failed to create runtime directory: %w", err)
			}
		}
		sock, err = os.MkdirTemp(dir, fmt.Sprintf("sock-%d-*", os.Getpid()))
		if err != nil {
			return nil, err
		}
		addr = filepath.Join(sock, "control")
		s.log.LogAttrs(ctx, slog.LevelDebug, "control socket", slog.String("path", addr))
	case "tcp":
		if addr == "" {
			addr = "localhost:0"
		}
	default:
		return nil, fmt.Errorf("invalid network: %q", network)
	}

	s.listener, err = listen(ctx, s.network, addr, sock, options, s.log)
	if err != nil {
		if sock != "" {
			os.RemoveAll(sock)
		}
		return nil, err
	}
	s.server = jsonrpc2.NewServer(ctx, s.listener, &s)

	s.log.LogAttrs(ctx, slog.LevelDebug, "new server", slog.String("network", s.network), slog.Any("addr", slogext.Stringer{Stringer: s.listener.Addr()}))
	return &s, nil
}

// Addr returns the listener address of the server.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Bind binds the server's handler to a connection.
func (s *Server) Bind(ctx context.Context, conn *jsonrpc2.Connection) jsonrpc2.ConnectionOptions {
	s.log.LogAttrs(ctx, slog.LevelDebug, "binding")
	return jsonrpc2.ConnectionOptions{
		Handler: s,
	}
}

// Handle is the server's message handler.
func (s *Server) Handle(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	s.log.LogAttrs(ctx, slog.LevelDebug, "handle", slog.Any("req", slogext.Request{Request: req}))

	switch req.Method {
	case Who:
		var m Message[None]
		err := unmarshal(ctx, s.log, req, &m)
		if err != nil {
			return nil, err
		}
		v, err := version.String()
		if err != nil {
			v = err.Error()
		}
		return s.reply(ctx, req, v)

	case State:
		var m Message[None]
		err := unmarshal(ctx, s.log, req, &m)
		if err != nil {
			return nil, err
		}
		return s.reply(ctx, req, s.player.State())

	case Start:
		var m Message[None]
		err := unmarshal(ctx, s.log, req, &m)
		if err != nil {
			return nil, err
		}
		err = s.player.Start(s.ctx)
		if err != nil {
			return nil, s.playerError(ctx, req, err)
		}
		return s.reply(ctx, req, s.player.State())

	case Stop:
		var m Message[None]
		err := unmarshal(ctx, s.log, req, &m)
		if err != nil {
			return nil, err
		}
		s.player.Stop()
		return s.reply(ctx, req, s.player.State())

	case Seek:
		var m Message[Position]
		err := unmarshal(ctx, s.log, req, &m)
		if err != nil {
			return nil, err
		}
		switch pos := m.Body; {
		case (pos.Frame == nil) == (pos.Time == nil):
			return nil, NewError(ErrCodeInvalidMessage,
				"seek requires exactly one of frame or time",
				map[string]any{
					"type": ErrCodeParameters,
				},
			)
		case pos.Frame != nil:
			err = s.player.SeekFrame(*pos.Frame)
		default:
			err = s.player.SeekTime(pos.Time.Duration)
		}
		if err != nil {
			return nil, s.playerError(ctx, req, err)
		}
		return s.reply(ctx, req, s.player.State())

	case Speed:
		var m Message[float64]
		err := unmarshal(ctx, s.log, req, &m)
		if err != nil {
			return nil, err
		}
		p, ok := s.player.(Speeder)
		if !ok {
			return nil, NewError(ErrCodePlayer,
				"player does not support speed changes",
				map[string]any{
					"type": ErrCodeUnsupported,
				},
			)
		}
		err = p.SetSpeed(m.Body)
		if err != nil {
			return nil, s.playerError(ctx, req, err)
		}
		return s.reply(ctx, req, s.player.State())

	default:
		return nil, jsonrpc2.ErrNotHandled
	}
}

// unmarshal strictly decodes the request parameters into m, logging any
// error.
func unmarshal[T any](ctx context.Context, log *slog.Logger, req *jsonrpc2.Request, m *Message[T]) error {
	err := UnmarshalMessage(req.Params, m)
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError, req.Method, slog.Any("error", err))
	}
	return err
}

// reply returns a message holding body for calls and logs and drops the
// result for notifications.
func (s *Server) reply(ctx context.Context, req *jsonrpc2.Request, body any) (any, error) {
	if !req.IsCall() {
		s.log.LogAttrs(ctx, slog.LevelDebug, "dropping notify result", slog.String("method", req.Method))
		return nil, nil
	}
	return NewMessage(body), nil
}

func (s *Server) playerError(ctx context.Context, req *jsonrpc2.Request, err error) error {
	s.log.LogAttrs(ctx, slog.LevelError, req.Method, slog.Any("error", err))
	data := map[string]any{
		"state": s.player.State(),
	}
	if errors.Is(err, animation.ErrFrameRange) {
		data["type"] = ErrCodeRange
	}
	return NewError(ErrCodePlayer, err.Error(), data)
}

// Close shuts down the server and waits for active connections to close.
func (s *Server) Close() error {
	s.log.LogAttrs(context.Background(), slog.LevelDebug, "close")
	s.server.Shutdown()
	return s.server.Wait()
}
