// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package control

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"

	"github.com/kortschak/jsonrpc2"
)

// socket is a jsonrpc2.Listener for the control server. Unix socket files
// are removed on close, along with dir if it is not empty.
type socket struct {
	net net.Listener
	dir string
	log *slog.Logger
}

// listen returns a socket listening on the provided network address. dir
// is the private directory holding a unix socket created by the server.
func listen(ctx context.Context, network, addr, dir string, options jsonrpc2.NetListenOptions, log *slog.Logger) (*socket, error) {
	ln, err := options.NetListenConfig.Listen(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return &socket{net: ln, dir: dir, log: log}, nil
}

func (s *socket) Addr() net.Addr {
	return s.net.Addr()
}

func (s *socket) Accept(context.Context) (io.ReadWriteCloser, error) {
	return s.net.Accept()
}

// Close stops listening and removes any socket file. It does not close
// connections that have already been accepted.
func (s *socket) Close() error {
	addr := s.net.Addr()
	err := s.net.Close()
	if addr.Network() == "unix" {
		rerr := os.Remove(addr.String())
		if errors.Is(rerr, fs.ErrNotExist) {
			rerr = nil
		}
		err = errors.Join(err, rerr)
	}
	if s.dir != "" {
		s.log.LogAttrs(context.Background(), slog.LevelDebug, "remove socket dir", slog.String("dir", s.dir))
		rerr := os.RemoveAll(s.dir)
		if rerr != nil {
			s.log.LogAttrs(context.Background(), slog.LevelWarn, "failed to remove socket dir", slog.Any("error", rerr))
		}
	}
	return err
}

// Dialer returns nil; the control server is not dialed in process.
func (s *socket) Dialer() jsonrpc2.Dialer {
	return nil
}
