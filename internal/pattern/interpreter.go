package pattern

import (
	"time"

	"github.com/dokzlo13/notifyd/internal/color"
)

// LoopState is one entry of the cursor's loop stack.
type LoopState struct {
	Start int `json:"start"` // op index of the loop-start marker
	Done  int `json:"done"`  // completed passes through the body
}

// Cursor is the resumable playback position within a pattern. It is
// serialized into snapshots, so all fields are plain data.
type Cursor struct {
	Index   int           `json:"index"`
	Loops   []LoopState   `json:"loops,omitempty"`
	InStep  time.Duration `json:"in_step,omitempty"`
	Emitted bool          `json:"emitted,omitempty"`
}

// Rewind clears the emitted flag so the current step's frame is produced
// again on the next Advance. Used when a paused instance regains the
// actuator and its frame must be re-dispatched.
func (c Cursor) Rewind() Cursor {
	c.Emitted = false
	return c
}

// Advance moves the cursor forward by the elapsed wall time and returns
// the frame to display, if a new one is due. At most one frame is
// produced per call. The returned bool signals pattern completion;
// patterns with an infinite loop never complete.
func Advance(p Pattern, cur Cursor, elapsed time.Duration) (*color.Frame, Cursor, bool) {
	ops := p.ops
	budget := elapsed

	for {
		if cur.Index >= len(ops) {
			return nil, cur, true
		}

		switch op := ops[cur.Index]; op.Kind {
		case OpLoopStart:
			cur.Loops = append(cur.Loops, LoopState{Start: cur.Index})
			cur.Index++

		case OpLoopEnd:
			if len(cur.Loops) == 0 {
				// Unbalanced cursor (stale snapshot); skip past.
				cur.Index++
				continue
			}
			top := &cur.Loops[len(cur.Loops)-1]
			top.Done++
			if op.Count == 0 || top.Done < op.Count {
				// Jump past the loop-start marker so the stack entry survives.
				cur.Index = top.Start + 1
			} else {
				cur.Loops = cur.Loops[:len(cur.Loops)-1]
				cur.Index++
			}

		case OpStep:
			step := op.Step
			if !cur.Emitted {
				cur.Emitted = true
				cur.InStep = 0
				frame := &color.Frame{
					Color:      step.Color,
					Brightness: step.Brightness,
					Transition: step.Transition,
				}
				if step.Delay == 0 {
					cur.Index++
					cur.Emitted = false
				}
				return frame, cur, cur.Index >= len(ops)
			}

			cur.InStep += budget
			if cur.InStep < step.Delay {
				return nil, cur, false
			}
			// Carry leftover time into the next step.
			budget = cur.InStep - step.Delay
			cur.Index++
			cur.Emitted = false
			cur.InStep = 0
		}
	}
}

// FrameAt returns the frame the pattern is currently showing at the
// given cursor, without advancing it. For a fresh cursor this is the
// first step's frame. Used by snapshot restore.
func FrameAt(p Pattern, cur Cursor) *color.Frame {
	ops := p.ops
	if len(ops) == 0 {
		return nil
	}

	start := cur.Index
	if start >= len(ops) {
		start = len(ops) - 1
	}
	if !cur.Emitted {
		start--
	}
	for i := start; i >= 0; i-- {
		if ops[i].Kind == OpStep {
			return stepFrame(ops[i].Step)
		}
	}
	// Nothing shown yet; fall forward to the first step.
	for i := 0; i < len(ops); i++ {
		if ops[i].Kind == OpStep {
			return stepFrame(ops[i].Step)
		}
	}
	return nil
}

func stepFrame(s Step) *color.Frame {
	return &color.Frame{Color: s.Color, Brightness: s.Brightness, Transition: s.Transition}
}
