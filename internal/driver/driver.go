// Package driver defines the actuator driver contract: apply a frame,
// report current state. Drivers are external collaborators; the engine
// only ever speaks this interface.
package driver

import (
	"context"
	"fmt"

	"github.com/dokzlo13/notifyd/internal/color"
)

// State is the actuator's current physical state, used for passthrough
// display only — never for priming a restore cache.
type State struct {
	On         bool
	Color      color.Color
	Brightness *uint8
}

// Driver drives one actuator. ApplyFrame must be idempotent-safe:
// re-applying the current frame is harmless. Implementations must
// honor the context deadline; a stuck device call is the caller's
// signal to drop the frame and retry next tick.
type Driver interface {
	ApplyFrame(ctx context.Context, frame color.Frame) error
	CurrentState(ctx context.Context) (State, error)
}

// Error wraps an actuator dispatch failure. Never fatal to the engine:
// the frame is dropped, logged, and retried on the next tick.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("driver %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
