// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Fit specifies how a frame is fitted to an output size.
type Fit int

const (
	// Stretch scales the frame to fill the output.
	Stretch Fit = iota
	// Contain scales the frame to fit within the output,
	// keeping its aspect ratio and centring it.
	Contain
)

// ParseFit returns the Fit corresponding to the provided name.
// The empty string is Stretch.
func ParseFit(name string) (Fit, error) {
	switch name {
	case "", "stretch":
		return Stretch, nil
	case "contain":
		return Contain, nil
	default:
		return 0, fmt.Errorf("unknown fit: %q", name)
	}
}

func (f Fit) String() string {
	switch f {
	case Stretch:
		return "stretch"
	case Contain:
		return "contain"
	default:
		return fmt.Sprintf("Fit(%d)", int(f))
	}
}

// ParseInterpolator returns the interpolator corresponding to the provided
// name. The empty string is nearest neighbour.
func ParseInterpolator(name string) (draw.Interpolator, error) {
	switch name {
	case "", "nearest":
		return draw.NearestNeighbor, nil
	case "approx-bilinear":
		return draw.ApproxBiLinear, nil
	case "bilinear":
		return draw.BiLinear, nil
	case "catmull-rom":
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unknown scaler: %q", name)
	}
}

// Scaler scales composed frames to an output size.
type Scaler struct {
	// Size is the output size. If both dimensions
	// are zero, frames are not scaled. If one is
	// zero it is calculated from the other, keeping
	// the frame aspect ratio.
	Size image.Point

	// Interpolator is the scaling interpolator.
	// If nil, draw.NearestNeighbor is used.
	Interpolator draw.Interpolator

	Fit Fit
}

// Bounds returns the output bounds for frames with the provided bounds.
func (s Scaler) Bounds(src image.Rectangle) image.Rectangle {
	size := s.Size
	switch {
	case size.X <= 0 && size.Y <= 0:
		return image.Rectangle{Max: src.Size()}
	case size.X <= 0:
		size.X = max(1, src.Dx()*size.Y/src.Dy())
	case size.Y <= 0:
		size.Y = max(1, src.Dy()*size.X/src.Dx())
	}
	return image.Rectangle{Max: size}
}

// Scale renders src into dst.
func (s Scaler) Scale(dst *image.RGBA, src image.Image) {
	sb := src.Bounds()
	db := dst.Bounds()
	if db.Size() == sb.Size() {
		draw.Copy(dst, db.Min, src, sb, draw.Src, nil)
		return
	}
	interp := s.Interpolator
	if interp == nil {
		interp = draw.NearestNeighbor
	}
	if s.Fit == Contain {
		draw.Draw(dst, db, image.Transparent, image.Point{}, draw.Src)
		db = keepAspectRatio(db, sb)
	}
	interp.Scale(dst, db, src, sb, draw.Src, nil)
}

// keepAspectRatio returns a rectangle centred in dst that has the aspect
// ratio of src.
func keepAspectRatio(dst, src image.Rectangle) image.Rectangle {
	dx, dy := dst.Dx(), dst.Dy()
	sx, sy := src.Dx(), src.Dy()
	if sx*dy > sy*dx {
		dy = sy * dx / sx
	} else {
		dx = sx * dy / sy
	}
	offset := image.Point{X: (dst.Dx() - dx) / 2, Y: (dst.Dy() - dy) / 2}
	return image.Rectangle{Max: image.Point{X: dx, Y: dy}}.Add(dst.Min).Add(offset)
}
