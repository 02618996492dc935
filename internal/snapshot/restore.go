package snapshot

import (
	"github.com/dokzlo13/notifyd/internal/color"
)

// RestoreBounds are the actuator's configured limits for frames emitted
// during restore-power. Restoring must never push an out-of-bounds
// value to hardware: values are clamped, not rejected.
type RestoreBounds struct {
	Pref      color.ModePref
	MinKelvin int
	MaxKelvin int
}

// RestoreFrame prepares a restored frame for dispatch: convert to the
// preferred color mode, then clamp. Conversion happens first so a
// kelvin preference is clamped in kelvin space.
func RestoreFrame(frame color.Frame, bounds RestoreBounds) color.Frame {
	out := frame.Preferred(bounds.Pref)
	out.Color = out.Color.ClampKelvin(bounds.MinKelvin, bounds.MaxKelvin)
	return out
}
