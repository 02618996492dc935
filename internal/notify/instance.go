package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/dokzlo13/notifyd/internal/pattern"
)

// Instance is the runtime activation record of a spec while its switch
// is on. Destroyed, cursor included, on switch-off or timeout.
type Instance struct {
	Spec        *Spec
	ID          string
	ActivatedAt time.Time
	Cursor      pattern.Cursor
	Done        bool // finite pattern ran to completion; final frame holds
}

// NewInstance creates a fresh activation of the spec.
func NewInstance(spec *Spec, now time.Time) *Instance {
	return &Instance{
		Spec:        spec,
		ID:          uuid.NewString(),
		ActivatedAt: now,
	}
}

// Expired reports whether the instance's timeout has elapsed. A nil
// timeout never expires; a zero timeout expires only via pattern
// completion, which the render loop handles separately.
func (i *Instance) Expired(now time.Time) bool {
	if i.Spec.Timeout == nil || *i.Spec.Timeout == 0 {
		return false
	}
	return !now.Before(i.ActivatedAt.Add(*i.Spec.Timeout))
}
