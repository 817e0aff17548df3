// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"image"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kortschak/gifview/internal/locked"
)

func policyGIF(t *testing.T) *GIF {
	return mustGIF(t, newGIF(image.Point{X: 1, Y: 1},
		testFrame{rect: image.Rect(0, 0, 1, 1), delay: 0},
		testFrame{rect: image.Rect(0, 0, 1, 1), delay: 5},
		testFrame{rect: image.Rect(0, 0, 1, 1), delay: 10},
	))
}

var delaysTests = []struct {
	name    string
	policy  string
	want    []time.Duration
	wantErr string
}{
	{
		name: "default",
		want: []time.Duration{100 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond},
	},
	{
		name:   "native",
		policy: "delay * 10",
		want:   []time.Duration{0, 50 * time.Millisecond, 100 * time.Millisecond},
	},
	{
		name:   "floor",
		policy: "delay < 6 ? 60 : delay * 10",
		want:   []time.Duration{60 * time.Millisecond, 60 * time.Millisecond, 100 * time.Millisecond},
	},
	{
		name:   "last_hold",
		policy: "index == count-1 ? 1000 : 10",
		want:   []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, time.Second},
	},
	{
		name:   "debug",
		policy: `debug("delay", delay) * 10 + 1`,
		want:   []time.Duration{time.Millisecond, 51 * time.Millisecond, 101 * time.Millisecond},
	},
	{
		name:    "negative",
		policy:  "index == 1 ? -1 : 10",
		wantErr: "invalid delay for frame 1: negative delay: -1ms",
	},
	{
		name:    "zero",
		policy:  "0",
		wantErr: "invalid delay for frame -1: zero animation duration",
	},
}

func TestDelays(t *testing.T) {
	g := policyGIF(t)
	for _, test := range delaysTests {
		t.Run(test.name, func(t *testing.T) {
			var logBuf locked.BytesBuffer
			var policy DelayPolicy
			if test.policy != "" {
				log := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
				p, err := CompilePolicy(test.policy, log)
				if err != nil {
					t.Fatalf("unexpected error compiling policy: %v", err)
				}
				policy = p
			}
			got, err := Delays(g, policy)
			if test.wantErr != "" {
				var terr *TimingError
				if !errors.As(err, &terr) {
					t.Fatalf("unexpected error type: got:%T want:%T", err, terr)
				}
				if err.Error() != test.wantErr {
					t.Errorf("unexpected error: got:%q want:%q", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !cmp.Equal(got, test.want) {
				t.Errorf("unexpected delays:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, got))
			}
			if strings.Contains(test.policy, "debug") && !strings.Contains(logBuf.String(), "cel debug log") {
				t.Errorf("expected debug log, got:\n%s", &logBuf)
			}
		})
	}
}

func TestCompilePolicyError(t *testing.T) {
	for _, src := range []string{
		`"fast"`,
		"delay +",
		"frames * 2",
	} {
		_, err := CompilePolicy(src, nil)
		if err == nil {
			t.Errorf("expected error for %q", src)
		}
	}
}
