// Package pattern implements the step/loop animation model: a flat op
// sequence parsed once at spec load, and a cursor-driven interpreter
// that yields frames over time.
package pattern

import (
	"time"

	"github.com/dokzlo13/notifyd/internal/color"
)

// OpKind discriminates the ops of a compiled pattern.
type OpKind uint8

const (
	OpStep OpKind = iota
	OpLoopStart
	OpLoopEnd
)

// Step is one frame descriptor within a pattern.
type Step struct {
	Color      color.Color
	Brightness *uint8
	Delay      time.Duration // hold time after the frame is emitted
	Transition time.Duration // fade time passed to the actuator
}

// Op is a single entry of a compiled pattern. Count is meaningful only
// for OpLoopEnd: the total number of passes through the loop body,
// 0 = infinite.
type Op struct {
	Kind  OpKind
	Step  Step
	Count int
}

// Pattern is an immutable compiled animation.
type Pattern struct {
	ops          []Op
	loopsForever bool
}

// Ops returns the compiled op sequence.
func (p Pattern) Ops() []Op {
	return p.ops
}

// Len returns the number of ops.
func (p Pattern) Len() int {
	return len(p.ops)
}

// LoopsForever reports whether the pattern contains an infinite loop
// and therefore never signals completion.
func (p Pattern) LoopsForever() bool {
	return p.loopsForever
}

// Steps returns the number of renderable steps (not markers).
func (p Pattern) Steps() int {
	n := 0
	for _, op := range p.ops {
		if op.Kind == OpStep {
			n++
		}
	}
	return n
}

// Solid builds a single-step pattern that shows one color indefinitely.
// Used for manual overrides and default notification colors.
func Solid(c color.Color, brightness *uint8) Pattern {
	return Pattern{ops: []Op{{Kind: OpStep, Step: Step{Color: c, Brightness: brightness}}}}
}
