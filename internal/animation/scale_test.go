// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/draw"
)

var scalerBoundsTests = []struct {
	size image.Point
	src  image.Rectangle
	want image.Rectangle
}{
	{size: image.Point{}, src: image.Rect(0, 0, 10, 5), want: image.Rect(0, 0, 10, 5)},
	{size: image.Point{}, src: image.Rect(2, 2, 12, 7), want: image.Rect(0, 0, 10, 5)},
	{size: image.Point{X: 20, Y: 20}, src: image.Rect(0, 0, 10, 5), want: image.Rect(0, 0, 20, 20)},
	{size: image.Point{X: 20}, src: image.Rect(0, 0, 10, 5), want: image.Rect(0, 0, 20, 10)},
	{size: image.Point{Y: 20}, src: image.Rect(0, 0, 10, 5), want: image.Rect(0, 0, 40, 20)},
	{size: image.Point{X: 1}, src: image.Rect(0, 0, 10, 5), want: image.Rect(0, 0, 1, 1)},
}

func TestScalerBounds(t *testing.T) {
	for _, test := range scalerBoundsTests {
		got := Scaler{Size: test.size}.Bounds(test.src)
		if got != test.want {
			t.Errorf("unexpected bounds for size %v of %v: got:%v want:%v", test.size, test.src, got, test.want)
		}
	}
}

var keepAspectRatioTests = []struct {
	dst, src image.Rectangle
	want     image.Rectangle
}{
	{dst: image.Rect(0, 0, 4, 4), src: image.Rect(0, 0, 2, 1), want: image.Rect(0, 1, 4, 3)},
	{dst: image.Rect(0, 0, 4, 4), src: image.Rect(0, 0, 1, 2), want: image.Rect(1, 0, 3, 4)},
	{dst: image.Rect(0, 0, 4, 4), src: image.Rect(0, 0, 3, 3), want: image.Rect(0, 0, 4, 4)},
	{dst: image.Rect(0, 0, 8, 2), src: image.Rect(0, 0, 2, 2), want: image.Rect(3, 0, 5, 2)},
}

func TestKeepAspectRatio(t *testing.T) {
	for _, test := range keepAspectRatioTests {
		got := keepAspectRatio(test.dst, test.src)
		if got != test.want {
			t.Errorf("unexpected rectangle for %v in %v: got:%v want:%v", test.src, test.dst, got, test.want)
		}
	}
}

func TestScale(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, red)
	src.SetRGBA(1, 0, blue)

	t.Run("stretch", func(t *testing.T) {
		dst := image.NewRGBA(image.Rect(0, 0, 4, 2))
		Scaler{}.Scale(dst, src)
		want := [][]color.RGBA{
			{red, red, blue, blue},
			{red, red, blue, blue},
		}
		got := [][]color.RGBA{row(dst, 0), row(dst, 1)}
		if !cmp.Equal(got, want) {
			t.Errorf("unexpected scaled image:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
		}
	})

	t.Run("contain", func(t *testing.T) {
		dst := image.NewRGBA(image.Rect(0, 0, 2, 2))
		for i := range dst.Pix {
			dst.Pix[i] = 0xff
		}
		Scaler{Fit: Contain, Interpolator: draw.NearestNeighbor}.Scale(dst, src)
		want := [][]color.RGBA{
			{red, blue},
			{transparent, transparent},
		}
		got := [][]color.RGBA{row(dst, 0), row(dst, 1)}
		if !cmp.Equal(got, want) {
			t.Errorf("unexpected scaled image:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
		}
	})

	t.Run("copy", func(t *testing.T) {
		dst := image.NewRGBA(image.Rect(0, 0, 2, 1))
		Scaler{Fit: Contain}.Scale(dst, src)
		if !cmp.Equal(dst.Pix, src.Pix) {
			t.Errorf("unexpected copied image:\n--- want:\n+++ got:\n%s", cmp.Diff(src.Pix, dst.Pix))
		}
	})
}

func TestParse(t *testing.T) {
	for _, name := range []string{"", "nearest", "approx-bilinear", "bilinear", "catmull-rom"} {
		_, err := ParseInterpolator(name)
		if err != nil {
			t.Errorf("unexpected error for interpolator %q: %v", name, err)
		}
	}
	_, err := ParseInterpolator("lanczos")
	if err == nil {
		t.Error("expected error for unknown interpolator")
	}
	for name, want := range map[string]Fit{"": Stretch, "stretch": Stretch, "contain": Contain} {
		got, err := ParseFit(name)
		if err != nil {
			t.Errorf("unexpected error for fit %q: %v", name, err)
		}
		if got != want {
			t.Errorf("unexpected fit for %q: got:%v want:%v", name, got, want)
		}
	}
	_, err = ParseFit("cover")
	if err == nil {
		t.Error("expected error for unknown fit")
	}
}
