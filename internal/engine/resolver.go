package engine

import (
	"sort"
	"time"

	"github.com/dokzlo13/notifyd/internal/color"
	"github.com/dokzlo13/notifyd/internal/notify"
)

// SelectionKind discriminates what the actuator should render.
type SelectionKind uint8

const (
	// SelPassthrough issues no commands; the actuator reflects its own state.
	SelPassthrough SelectionKind = iota
	SelManual
	SelInstance
)

func (k SelectionKind) String() string {
	switch k {
	case SelPassthrough:
		return "passthrough"
	case SelManual:
		return "manual"
	case SelInstance:
		return "instance"
	default:
		return "unknown"
	}
}

// Selection is the resolver's answer: at most one renderer per actuator.
type Selection struct {
	Kind     SelectionKind
	Instance *notify.Instance // set only for SelInstance
}

func (s Selection) equal(other Selection) bool {
	return s.Kind == other.Kind && s.Instance == other.Instance
}

// ManualOverride is the direct-control state of an actuator.
type ManualOverride struct {
	Color      color.Color
	Brightness *uint8
	SetAt      time.Time
}

// ResolveInput carries everything the priority resolver looks at.
type ResolveInput struct {
	Manual *ManualOverride
	// DynamicManual gives the override a synthetic priority of
	// max(active)+1 so direct control always supersedes notifications.
	// When disabled, the override competes with the fixed priority below.
	DynamicManual  bool
	ManualPriority int
	Active         []*notify.Instance
	AutoCycle      bool
	CycleCursor    int
}

// Resolve determines which single renderer should drive the actuator
// right now. Ties and empty active sets are defined outcomes, not errors.
func Resolve(in ResolveInput) Selection {
	group := TieGroup(in.Active)

	if in.Manual != nil {
		if in.DynamicManual || len(group) == 0 || in.ManualPriority >= group[0].Spec.Priority {
			return Selection{Kind: SelManual}
		}
	}

	if len(group) == 0 {
		return Selection{Kind: SelPassthrough}
	}
	if len(group) == 1 {
		return Selection{Kind: SelInstance, Instance: group[0]}
	}
	if in.AutoCycle {
		idx := in.CycleCursor % len(group)
		if idx < 0 {
			idx += len(group)
		}
		return Selection{Kind: SelInstance, Instance: group[idx]}
	}
	// Auto-cycle disabled: earliest activation wins, deterministically.
	return Selection{Kind: SelInstance, Instance: group[0]}
}

// TieGroup returns the active instances sharing the maximum priority,
// ordered by activation time (instance id breaks exact ties for a
// stable order).
func TieGroup(active []*notify.Instance) []*notify.Instance {
	if len(active) == 0 {
		return nil
	}

	max := active[0].Spec.Priority
	for _, inst := range active[1:] {
		if inst.Spec.Priority > max {
			max = inst.Spec.Priority
		}
	}

	var group []*notify.Instance
	for _, inst := range active {
		if inst.Spec.Priority == max {
			group = append(group, inst)
		}
	}

	sort.Slice(group, func(i, j int) bool {
		if !group[i].ActivatedAt.Equal(group[j].ActivatedAt) {
			return group[i].ActivatedAt.Before(group[j].ActivatedAt)
		}
		return group[i].ID < group[j].ID
	})
	return group
}
