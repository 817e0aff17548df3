// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package control

import (
	"context"
	"net"
	"time"

	"github.com/kortschak/jsonrpc2"

	"github.com/kortschak/gifview/internal/player"
)

// Client is a playback control client.
type Client struct {
	conn *jsonrpc2.Connection
}

// Dial returns a Client connected to the control server at addr on the
// provided network.
func Dial(ctx context.Context, network, addr string, dialer net.Dialer) (*Client, error) {
	conn, err := jsonrpc2.Dial(ctx, jsonrpc2.NetDialer(network, addr, dialer), jsonrpc2.ConnectionOptions{})
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Who returns the version of the server.
func (c *Client) Who(ctx context.Context) (string, error) {
	return call[string](ctx, c.conn, Who, None{})
}

// State returns the current player state.
func (c *Client) State(ctx context.Context) (player.State, error) {
	return call[player.State](ctx, c.conn, State, None{})
}

// Start starts playback from the beginning.
func (c *Client) Start(ctx context.Context) (player.State, error) {
	return call[player.State](ctx, c.conn, Start, None{})
}

// Stop stops playback.
func (c *Client) Stop(ctx context.Context) (player.State, error) {
	return call[player.State](ctx, c.conn, Stop, None{})
}

// SeekFrame moves playback to the start of frame i.
func (c *Client) SeekFrame(ctx context.Context, i int) (player.State, error) {
	return call[player.State](ctx, c.conn, Seek, Position{Frame: &i})
}

// SeekTime moves playback to the frame being shown at d.
func (c *Client) SeekTime(ctx context.Context, d time.Duration) (player.State, error) {
	return call[player.State](ctx, c.conn, Seek, Position{Time: &Duration{d}})
}

// SetSpeed sets the playback speed multiplier.
func (c *Client) SetSpeed(ctx context.Context, speed float64) (player.State, error) {
	return call[player.State](ctx, c.conn, Speed, speed)
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func call[T, P any](ctx context.Context, conn *jsonrpc2.Connection, method string, params P) (T, error) {
	var m Message[T]
	err := conn.Call(ctx, method, NewMessage(params)).Await(ctx, &m)
	return m.Body, err
}
