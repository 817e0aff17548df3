// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"fmt"
)

// ErrCode is a decode failure class.
type ErrCode int

const (
	ErrCodeRead        ErrCode = iota + 1 // read failure
	ErrCodeFormat                         // not a decodable image
	ErrCodeNoFrames                       // no frames
	ErrCodeScreenDims                     // logical screen area less than one
	ErrCodeImageDims                      // frame area less than one
	ErrCodeNotConfined                    // frame larger than the logical screen
	ErrCodeMismatch                       // metadata count does not match frame count
	ErrCodeBackground                     // background index not in the global palette
)

// Decode error sentinels. A *DecodeError is errors.Is equal to the sentinel
// for its code.
var (
	ErrRead        = errors.New("read failed")
	ErrFormat      = errors.New("not a decodable image")
	ErrNoFrames    = errors.New("no frames")
	ErrScreenDims  = errors.New("invalid screen dimensions")
	ErrImageDims   = errors.New("invalid frame dimensions")
	ErrNotConfined = errors.New("frame not confined to screen")
	ErrMismatch    = errors.New("mismatched frame metadata")
	ErrBackground  = errors.New("background index not in palette")
)

var sentinels = map[ErrCode]error{
	ErrCodeRead:        ErrRead,
	ErrCodeFormat:      ErrFormat,
	ErrCodeNoFrames:    ErrNoFrames,
	ErrCodeScreenDims:  ErrScreenDims,
	ErrCodeImageDims:   ErrImageDims,
	ErrCodeNotConfined: ErrNotConfined,
	ErrCodeMismatch:    ErrMismatch,
	ErrCodeBackground:  ErrBackground,
}

// DecodeError is the error returned by [Decode].
type DecodeError struct {
	Code ErrCode
	// Frame is the index of the offending frame,
	// or -1 if the error is not frame specific.
	Frame int
	Err   error
}

func (e *DecodeError) Error() string {
	msg := sentinels[e.Code].Error()
	if e.Frame >= 0 {
		msg = fmt.Sprintf("%s: frame %d", msg, e.Frame)
	}
	if e.Err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	return target != nil && target == sentinels[e.Code]
}

func decodeErr(code ErrCode, frame int, err error) error {
	return &DecodeError{Code: code, Frame: frame, Err: err}
}

// ErrFrameRange is returned when a frame index is outside the animation.
var ErrFrameRange = errors.New("frame index out of range")

// TimingError is returned when a frame delay cannot be determined.
type TimingError struct {
	Frame int
	Err   error
}

func (e *TimingError) Error() string {
	return fmt.Sprintf("invalid delay for frame %d: %v", e.Frame, e.Err)
}

func (e *TimingError) Unwrap() error { return e.Err }
