package color

import (
	"testing"
	"time"
)

func uint8Ptr(v uint8) *uint8 {
	return &v
}

func TestKelvinToRGB(t *testing.T) {
	tests := []struct {
		name   string
		kelvin int
		check  func(t *testing.T, c Color)
	}{
		{
			name:   "warm_2700k_red_dominant",
			kelvin: 2700,
			check: func(t *testing.T, c Color) {
				if c.R < 200 {
					t.Errorf("2700K red = %d, want > 200", c.R)
				}
				if c.B >= c.R {
					t.Errorf("2700K blue %d should be below red %d", c.B, c.R)
				}
			},
		},
		{
			name:   "neutral_6600k_near_white",
			kelvin: 6600,
			check: func(t *testing.T, c Color) {
				if c.R != 255 || c.B != 255 {
					t.Errorf("6600K = rgb(%d,%d,%d), want full red and blue", c.R, c.G, c.B)
				}
			},
		},
		{
			name:   "cool_10000k_blue_dominant",
			kelvin: 10000,
			check: func(t *testing.T, c Color) {
				if c.B < c.R {
					t.Errorf("10000K blue %d should not be below red %d", c.B, c.R)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewKelvin(tt.kelvin).ToRGB()
			if got.Mode != ModeRGB {
				t.Fatalf("ToRGB() mode = %v, want rgb", got.Mode)
			}
			tt.check(t, got)
		})
	}
}

func TestToKelvinRoundTrip(t *testing.T) {
	// CCT estimation is approximate; accept a generous tolerance.
	for _, kelvin := range []int{2700, 4000, 6500} {
		rgb := NewKelvin(kelvin).ToRGB()
		got := rgb.ToKelvin().Kelvin
		diff := got - kelvin
		if diff < 0 {
			diff = -diff
		}
		if diff > kelvin/4 {
			t.Errorf("round trip %dK -> %v -> %dK, drift too large", kelvin, rgb, got)
		}
	}
}

func TestClampKelvin(t *testing.T) {
	tests := []struct {
		name     string
		color    Color
		min, max int
		want     Color
	}{
		{"above_ceiling", NewKelvin(9000), 2000, 6500, NewKelvin(6500)},
		{"below_floor", NewKelvin(1200), 2000, 6500, NewKelvin(2000)},
		{"in_range", NewKelvin(3000), 2000, 6500, NewKelvin(3000)},
		{"zero_bounds_pass", NewKelvin(9000), 0, 0, NewKelvin(9000)},
		{"rgb_untouched", NewRGB(255, 0, 0), 2000, 6500, NewRGB(255, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.color.ClampKelvin(tt.min, tt.max); got != tt.want {
				t.Errorf("ClampKelvin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Frame
		want bool
	}{
		{
			name: "identical",
			a:    Frame{Color: NewRGB(255, 0, 0), Brightness: uint8Ptr(128)},
			b:    Frame{Color: NewRGB(255, 0, 0), Brightness: uint8Ptr(128)},
			want: true,
		},
		{
			name: "different_color",
			a:    Frame{Color: NewRGB(255, 0, 0)},
			b:    Frame{Color: NewRGB(0, 255, 0)},
			want: false,
		},
		{
			name: "nil_vs_set_brightness",
			a:    Frame{Color: NewRGB(255, 0, 0)},
			b:    Frame{Color: NewRGB(255, 0, 0), Brightness: uint8Ptr(255)},
			want: false,
		},
		{
			name: "different_transition",
			a:    Frame{Color: NewKelvin(2700), Transition: time.Second},
			b:    Frame{Color: NewKelvin(2700)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFramePreferred(t *testing.T) {
	rgbFrame := Frame{Color: NewRGB(255, 200, 150)}
	ctFrame := Frame{Color: NewKelvin(2700)}

	if got := ctFrame.Preferred(PrefRGB); got.Color.Mode != ModeRGB {
		t.Errorf("Preferred(rgb) mode = %v, want rgb", got.Color.Mode)
	}
	if got := rgbFrame.Preferred(PrefColorTemp); got.Color.Mode != ModeKelvin {
		t.Errorf("Preferred(color_temp) mode = %v, want color_temp", got.Color.Mode)
	}
	if got := rgbFrame.Preferred(PrefNone); got.Color != rgbFrame.Color {
		t.Errorf("Preferred(none) changed color: %v", got.Color)
	}
}

func TestXYWithinGamut(t *testing.T) {
	for _, c := range []Color{NewRGB(255, 0, 0), NewRGB(0, 0, 255), WarmWhite, NewKelvin(4000)} {
		x, y := c.XY()
		if x < 0 || x > 0.8 || y < 0 || y > 0.9 {
			t.Errorf("XY(%v) = (%f, %f), outside plausible gamut", c, x, y)
		}
	}
	// Black falls back to the white point instead of dividing by zero.
	x, y := NewRGB(0, 0, 0).XY()
	if x == 0 && y == 0 {
		t.Error("XY(black) returned origin, want white point fallback")
	}
}
