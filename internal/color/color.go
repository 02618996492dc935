// Package color provides the two color representations the engine speaks:
// RGB triples and color temperature in kelvin. A Color is a tagged value,
// never inferred from which fields happen to be set.
package color

import (
	"fmt"
	"math"
	"time"
)

// Mode identifies which representation a Color carries.
type Mode uint8

const (
	ModeRGB Mode = iota
	ModeKelvin
)

func (m Mode) String() string {
	switch m {
	case ModeRGB:
		return "rgb"
	case ModeKelvin:
		return "color_temp"
	default:
		return "unknown"
	}
}

// ModePref is a per-actuator preference for the representation of
// frames emitted during restore.
type ModePref uint8

const (
	PrefNone ModePref = iota
	PrefRGB
	PrefColorTemp
)

// WarmWhite is the default "on" color when nothing else is configured.
var WarmWhite = NewRGB(255, 249, 216)

// Color is a tagged RGB-or-kelvin value.
type Color struct {
	Mode   Mode  `json:"mode"`
	R      uint8 `json:"r,omitempty"`
	G      uint8 `json:"g,omitempty"`
	B      uint8 `json:"b,omitempty"`
	Kelvin int   `json:"kelvin,omitempty"`
}

// NewRGB returns an RGB color.
func NewRGB(r, g, b uint8) Color {
	return Color{Mode: ModeRGB, R: r, G: g, B: b}
}

// NewKelvin returns a color-temperature color.
func NewKelvin(k int) Color {
	return Color{Mode: ModeKelvin, Kelvin: k}
}

func (c Color) String() string {
	if c.Mode == ModeKelvin {
		return fmt.Sprintf("%dK", c.Kelvin)
	}
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// IsOff reports whether the color is RGB black, which drivers treat as "turn off".
func (c Color) IsOff() bool {
	return c.Mode == ModeRGB && c.R == 0 && c.G == 0 && c.B == 0
}

// ToRGB converts a kelvin color to its RGB approximation.
// RGB colors are returned unchanged.
func (c Color) ToRGB() Color {
	if c.Mode == ModeRGB {
		return c
	}
	r, g, b := kelvinToRGB(c.Kelvin)
	return NewRGB(r, g, b)
}

// ToKelvin converts an RGB color to an approximate color temperature.
// Kelvin colors are returned unchanged.
func (c Color) ToKelvin() Color {
	if c.Mode == ModeKelvin {
		return c
	}
	return NewKelvin(rgbToKelvin(c.R, c.G, c.B))
}

// ClampKelvin bounds a kelvin color to [min, max]. RGB colors and
// zero bounds pass through untouched.
func (c Color) ClampKelvin(min, max int) Color {
	if c.Mode != ModeKelvin {
		return c
	}
	k := c.Kelvin
	if min > 0 && k < min {
		k = min
	}
	if max > 0 && k > max {
		k = max
	}
	return NewKelvin(k)
}

// XY returns the CIE xy chromaticity of the color, for drivers that
// take xy coordinates instead of RGB.
func (c Color) XY() (float32, float32) {
	rgb := c.ToRGB()
	r := gammaExpand(float64(rgb.R) / 255.0)
	g := gammaExpand(float64(rgb.G) / 255.0)
	b := gammaExpand(float64(rgb.B) / 255.0)

	// sRGB D65 -> XYZ
	x := r*0.4124 + g*0.3576 + b*0.1805
	y := r*0.2126 + g*0.7152 + b*0.0722
	z := r*0.0193 + g*0.1192 + b*0.9505

	sum := x + y + z
	if sum == 0 {
		return 0.3127, 0.3290 // D65 white point
	}
	return float32(x / sum), float32(y / sum)
}

// Frame is one renderable unit: the payload of an "apply frame" call.
// A nil Brightness means brightness is not sent and the actuator keeps
// whatever it currently has.
type Frame struct {
	Color      Color         `json:"color"`
	Brightness *uint8        `json:"brightness,omitempty"`
	Transition time.Duration `json:"transition,omitempty"`
}

// Equal reports whether two frames would produce the same actuator state.
func (f Frame) Equal(other Frame) bool {
	if f.Color != other.Color || f.Transition != other.Transition {
		return false
	}
	if (f.Brightness == nil) != (other.Brightness == nil) {
		return false
	}
	return f.Brightness == nil || *f.Brightness == *other.Brightness
}

// Preferred converts the frame's color to the preferred representation.
// PrefNone keeps the frame as-is.
func (f Frame) Preferred(pref ModePref) Frame {
	switch pref {
	case PrefRGB:
		f.Color = f.Color.ToRGB()
	case PrefColorTemp:
		f.Color = f.Color.ToKelvin()
	}
	return f
}

func gammaExpand(v float64) float64 {
	if v > 0.04045 {
		return math.Pow((v+0.055)/1.055, 2.4)
	}
	return v / 12.92
}

// kelvinToRGB implements the Tanner Helland approximation, valid for
// roughly 1000K-40000K.
func kelvinToRGB(kelvin int) (uint8, uint8, uint8) {
	if kelvin < 1000 {
		kelvin = 1000
	}
	if kelvin > 40000 {
		kelvin = 40000
	}
	t := float64(kelvin) / 100.0

	var r, g, b float64
	if t <= 66 {
		r = 255
		g = 99.4708025861*math.Log(t) - 161.1195681661
	} else {
		r = 329.698727446 * math.Pow(t-60, -0.1332047592)
		g = 288.1221695283 * math.Pow(t-60, -0.0755148492)
	}
	if t >= 66 {
		b = 255
	} else if t <= 19 {
		b = 0
	} else {
		b = 138.5177312231*math.Log(t-10) - 305.0447927307
	}

	return clamp255(r), clamp255(g), clamp255(b)
}

// rgbToKelvin estimates the correlated color temperature via McCamy's
// formula over CIE xy chromaticity.
func rgbToKelvin(r8, g8, b8 uint8) int {
	c := NewRGB(r8, g8, b8)
	x64, y64 := c.XY()
	x, y := float64(x64), float64(y64)

	n := (x - 0.3320) / (0.1858 - y)
	cct := 449*n*n*n + 3525*n*n + 6823.3*n + 5520.33

	if cct < 1000 {
		cct = 1000
	}
	if cct > 40000 {
		cct = 40000
	}
	return int(cct)
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
