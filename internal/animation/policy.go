// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// DelayPolicy determines frame display times.
type DelayPolicy interface {
	// Delay returns the display time for the frame at index
	// with the native delay, in hundredths of a second, in an
	// animation with count frames.
	Delay(index, delay, count int) (time.Duration, error)
}

// Delays returns the display time for each frame of g. If policy is nil,
// the GIF's FrameDelay is used. Policy failures are returned as a
// *TimingError.
func Delays(g *GIF, policy DelayPolicy) ([]time.Duration, error) {
	delays := make([]time.Duration, g.Len())
	var total time.Duration
	for i := range delays {
		if policy == nil {
			delays[i] = g.FrameDelay(i)
		} else {
			var native int
			if g.Delay != nil {
				native = g.Delay[i]
			}
			d, err := policy.Delay(i, native, len(delays))
			if err != nil {
				return nil, &TimingError{Frame: i, Err: err}
			}
			if d < 0 {
				return nil, &TimingError{Frame: i, Err: fmt.Errorf("negative delay: %v", d)}
			}
			delays[i] = d
		}
		total += delays[i]
	}
	if total <= 0 {
		return nil, &TimingError{Frame: -1, Err: errors.New("zero animation duration")}
	}
	return delays, nil
}

// CELPolicy is a DelayPolicy that evaluates a CEL expression. The
// expression has the int variables index, delay and count, and must
// evaluate to an int number of milliseconds.
//
// In addition to the standard CEL functions, a debug function is
// available that logs its second parameter with the first as a tag
// and returns the second parameter unaltered:
//
//	debug(<string>, <dyn>) -> <dyn>
type CELPolicy struct {
	src string
	prg cel.Program
}

// CompilePolicy returns a CELPolicy for the provided source. Debug calls are
// logged to log if it is not nil.
func CompilePolicy(src string, log *slog.Logger) (*CELPolicy, error) {
	env, err := cel.NewEnv(
		cel.Lib(policyLib{log: log}),
		cel.Variable("index", cel.IntType),
		cel.Variable("delay", cel.IntType),
		cel.Variable("count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create env: %v", err)
	}

	ast, iss := env.Compile(src)
	if iss.Err() != nil {
		return nil, fmt.Errorf("failed compilation: %v", iss.Err())
	}
	switch typ := ast.OutputType(); {
	case typ.IsExactType(cel.IntType), typ.IsExactType(cel.DynType):
	default:
		return nil, fmt.Errorf("delay policy must return int, not %v", typ)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed program instantiation: %v", err)
	}
	return &CELPolicy{src: src, prg: prg}, nil
}

// Delay implements the DelayPolicy interface.
func (p *CELPolicy) Delay(index, delay, count int) (time.Duration, error) {
	out, _, err := p.prg.Eval(map[string]any{
		"index": index,
		"delay": delay,
		"count": count,
	})
	if err != nil {
		return 0, fmt.Errorf("failed eval: %v", err)
	}
	ms, ok := out.Value().(int64)
	if !ok {
		return 0, fmt.Errorf("non-integer delay: %v", out.Value())
	}
	if ms < 0 {
		return 0, fmt.Errorf("negative delay: %dms", ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (p *CELPolicy) String() string {
	return p.src
}

type policyLib struct {
	log *slog.Logger
}

func (l policyLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("debug",
			cel.Overload(
				"debug_string_dyn",
				[]*cel.Type{cel.StringType, cel.DynType},
				cel.DynType,
				cel.BinaryBinding(l.logDebug),
				cel.OverloadIsNonStrict(),
			),
		),
	}
}

func (policyLib) ProgramOptions() []cel.ProgramOption { return nil }

func (l policyLib) logDebug(arg0, arg1 ref.Val) ref.Val {
	tag, ok := arg0.(types.String)
	if !ok {
		return types.ValOrErr(tag, "no such overload")
	}
	if l.log == nil {
		return arg1
	}
	l.log.LogAttrs(context.Background(), slog.LevelDebug, "cel debug log", slog.String("tag", string(tag)), slog.Any("value", arg1.Value()))
	return arg1
}
