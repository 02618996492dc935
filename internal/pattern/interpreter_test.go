package pattern

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dokzlo13/notifyd/internal/color"
)

var (
	red  = color.NewRGB(255, 0, 0)
	blue = color.NewRGB(0, 0, 255)
)

func mustParse(t *testing.T, entries []string) Pattern {
	t.Helper()
	p, err := Parse(entries)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

// runFrames advances the pattern n times at a fixed tick and collects
// the emitted colors, stopping early on completion.
func runFrames(p Pattern, n int, tick time.Duration) ([]color.Color, bool) {
	var out []color.Color
	var cur Cursor
	var done bool
	for i := 0; i < n && !done; i++ {
		var frame *color.Frame
		frame, cur, done = Advance(p, cur, tick)
		if frame != nil {
			out = append(out, frame.Color)
		}
	}
	return out, done
}

func TestFiniteLoopRunsExactCount(t *testing.T) {
	p := mustParse(t, []string{
		"[",
		`{"rgb": [255, 0, 0], "delay": 0.3}`,
		`{"rgb": [0, 0, 255], "delay": 0.3}`,
		"], 3",
	})

	colors, done := runFrames(p, 20, 300*time.Millisecond)
	want := []color.Color{red, blue, red, blue, red, blue}
	if len(colors) != len(want) {
		t.Fatalf("frames = %v, want %v", colors, want)
	}
	for i := range want {
		if colors[i] != want[i] {
			t.Errorf("frame %d = %v, want %v", i, colors[i], want[i])
		}
	}
	if !done {
		t.Error("finite loop did not signal completion")
	}
}

func TestInfiniteLoopNeverCompletes(t *testing.T) {
	for _, close := range []string{"]", "], 0"} {
		t.Run(close, func(t *testing.T) {
			p := mustParse(t, []string{
				"[",
				`{"rgb": [255, 0, 0], "delay": 0.1}`,
				close,
			})
			_, done := runFrames(p, 500, 100*time.Millisecond)
			if done {
				t.Error("infinite loop signalled completion")
			}
		})
	}
}

func TestSingleStepCompletesImmediately(t *testing.T) {
	p := mustParse(t, []string{`{"rgb": [255, 0, 0]}`})

	frame, _, done := Advance(p, Cursor{}, 0)
	if frame == nil || frame.Color != red {
		t.Fatalf("frame = %v, want red", frame)
	}
	if !done {
		t.Error("zero-delay single step should complete on first advance")
	}
}

func TestDelayHoldsFrame(t *testing.T) {
	p := mustParse(t, []string{
		`{"rgb": [255, 0, 0], "delay": 1}`,
		`{"rgb": [0, 0, 255]}`,
	})

	frame, cur, done := Advance(p, Cursor{}, 0)
	if frame == nil || frame.Color != red || done {
		t.Fatalf("first advance = (%v, done=%v)", frame, done)
	}

	// Held during the delay: no new frame for 900ms of ticks.
	for i := 0; i < 9; i++ {
		frame, cur, done = Advance(p, cur, 100*time.Millisecond)
		if frame != nil || done {
			t.Fatalf("tick %d produced (%v, done=%v) during hold", i, frame, done)
		}
	}

	frame, _, done = Advance(p, cur, 100*time.Millisecond)
	if frame == nil || frame.Color != blue {
		t.Fatalf("after delay frame = %v, want blue", frame)
	}
	if !done {
		t.Error("pattern should complete after last zero-delay step")
	}
}

func TestElapsedCarriesAcrossSteps(t *testing.T) {
	p := mustParse(t, []string{
		`{"rgb": [255, 0, 0], "delay": 0.3}`,
		`{"rgb": [0, 0, 255], "delay": 0.3}`,
	})

	_, cur, _ := Advance(p, Cursor{}, 0)
	// One big tick covers the whole first delay with time to spare;
	// the second frame is due immediately.
	frame, _, _ := Advance(p, cur, 700*time.Millisecond)
	if frame == nil || frame.Color != blue {
		t.Fatalf("frame = %v, want blue after oversized tick", frame)
	}
}

func TestNestedLoops(t *testing.T) {
	p := mustParse(t, []string{
		"[",
		`{"rgb": [255, 0, 0], "delay": 0.1}`,
		"[",
		`{"rgb": [0, 0, 255], "delay": 0.1}`,
		"], 2",
		"], 2",
	})

	colors, done := runFrames(p, 50, 100*time.Millisecond)
	want := []color.Color{red, blue, blue, red, blue, blue}
	if len(colors) != len(want) {
		t.Fatalf("frames = %v, want %v", colors, want)
	}
	for i := range want {
		if colors[i] != want[i] {
			t.Errorf("frame %d = %v, want %v", i, colors[i], want[i])
		}
	}
	if !done {
		t.Error("nested finite loops did not complete")
	}
}

func TestCursorSurvivesSerialization(t *testing.T) {
	p := mustParse(t, []string{
		"[",
		`{"rgb": [255, 0, 0], "delay": 0.3}`,
		`{"rgb": [0, 0, 255], "delay": 0.3}`,
		"], 2",
	})

	_, cur, _ := Advance(p, Cursor{}, 0)                      // red shown
	_, cur, _ = Advance(p, cur, 300*time.Millisecond)         // blue shown
	data, err := json.Marshal(cur)
	if err != nil {
		t.Fatalf("marshal cursor: %v", err)
	}
	var restored Cursor
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal cursor: %v", err)
	}

	// Playback resumes exactly where it left off: red of the second pass.
	frame, _, done := Advance(p, restored, 300*time.Millisecond)
	if frame == nil || frame.Color != red || done {
		t.Fatalf("resumed advance = (%v, done=%v), want red", frame, done)
	}
}

func TestFrameAt(t *testing.T) {
	p := mustParse(t, []string{
		`{"rgb": [255, 0, 0], "delay": 0.3}`,
		`{"rgb": [0, 0, 255], "delay": 0.3}`,
	})

	if f := FrameAt(p, Cursor{}); f == nil || f.Color != red {
		t.Errorf("FrameAt(fresh) = %v, want red", f)
	}

	_, cur, _ := Advance(p, Cursor{}, 0)
	if f := FrameAt(p, cur); f == nil || f.Color != red {
		t.Errorf("FrameAt(after first emit) = %v, want red", f)
	}

	_, cur, _ = Advance(p, cur, 300*time.Millisecond)
	if f := FrameAt(p, cur); f == nil || f.Color != blue {
		t.Errorf("FrameAt(second step) = %v, want blue", f)
	}
}

func TestRewindReemitsCurrentStep(t *testing.T) {
	p := mustParse(t, []string{
		`{"rgb": [255, 0, 0], "delay": 1}`,
		`{"rgb": [0, 0, 255]}`,
	})

	_, cur, _ := Advance(p, Cursor{}, 0)
	frame, _, _ := Advance(p, cur.Rewind(), 0)
	if frame == nil || frame.Color != red {
		t.Fatalf("rewound advance = %v, want red again", frame)
	}
}
