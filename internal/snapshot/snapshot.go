// Package snapshot persists the minimal tracking state an actuator
// engine needs to survive a restart. A snapshot stores identities and
// cursors, never an actuator command to be blindly replayed.
package snapshot

import (
	"time"

	"github.com/dokzlo13/notifyd/internal/color"
	"github.com/dokzlo13/notifyd/internal/pattern"
)

// SelectedManual marks the manual override as the selected renderer in
// a snapshot, distinguishing it from any spec id.
const SelectedManual = "__manual__"

// InstanceRecord captures one active notification instance.
type InstanceRecord struct {
	SpecID      string         `json:"spec_id"`
	InstanceID  string         `json:"instance_id"`
	Cursor      pattern.Cursor `json:"cursor"`
	ActivatedAt time.Time      `json:"activated_at"`
	Done        bool           `json:"done,omitempty"`
}

// ManualRecord captures the manual override, when present.
type ManualRecord struct {
	Color      color.Color `json:"color"`
	Brightness *uint8      `json:"brightness,omitempty"`
}

// Snapshot is the persisted subset of an actuator's engine state.
type Snapshot struct {
	// Selected records which renderer owned the actuator at save time.
	// Restore recomputes the selection from Active and Manual rather
	// than trusting this field; it exists for inspecting stored rows.
	Selected string `json:"selected,omitempty"` // spec id, SelectedManual, or empty = passthrough

	Active []InstanceRecord `json:"active,omitempty"`
	Manual   *ManualRecord    `json:"manual,omitempty"`

	// LastManualColor survives manual-off, so a manual-on without a
	// color reuses it even across restarts.
	LastManualColor *color.Color `json:"last_manual_color,omitempty"`
}
