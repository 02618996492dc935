package pattern

import (
	"errors"
	"testing"
	"time"

	"github.com/dokzlo13/notifyd/internal/color"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		name      string
		entries   []string
		wantOps   int
		wantSteps int
		forever   bool
	}{
		{
			name:      "single_step",
			entries:   []string{`{"rgb": [255, 0, 0]}`},
			wantOps:   1,
			wantSteps: 1,
		},
		{
			name:      "braces_optional",
			entries:   []string{`"rgb": [255, 0, 0], "delay": 0.5`},
			wantOps:   1,
			wantSteps: 1,
		},
		{
			name: "finite_loop",
			entries: []string{
				"[",
				`{"rgb": [0, 0, 255], "delay": 0.3}`,
				`{"rgb": [0, 0, 0], "delay": 0.3}`,
				"], 3",
			},
			wantOps:   4,
			wantSteps: 2,
		},
		{
			name: "infinite_loop_bare_close",
			entries: []string{
				"[",
				`{"kelvin": 2700, "delay": 1}`,
				"]",
			},
			wantOps:   3,
			wantSteps: 1,
			forever:   true,
		},
		{
			name: "infinite_loop_zero_count",
			entries: []string{
				"[",
				`{"kelvin": 2700, "delay": 1}`,
				"], 0",
			},
			wantOps:   3,
			wantSteps: 1,
			forever:   true,
		},
		{
			name: "nested_loops",
			entries: []string{
				"[",
				`{"rgb": [255, 0, 0]}`,
				"[",
				`{"rgb": [0, 255, 0], "delay": 0.1}`,
				"], 2",
				"], 4",
			},
			wantOps:   6,
			wantSteps: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.entries)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if p.Len() != tt.wantOps {
				t.Errorf("Len() = %d, want %d", p.Len(), tt.wantOps)
			}
			if p.Steps() != tt.wantSteps {
				t.Errorf("Steps() = %d, want %d", p.Steps(), tt.wantSteps)
			}
			if p.LoopsForever() != tt.forever {
				t.Errorf("LoopsForever() = %v, want %v", p.LoopsForever(), tt.forever)
			}
		})
	}
}

func TestParseStepFields(t *testing.T) {
	p, err := Parse([]string{`{"rgb": [10, 20, 30], "brightness": 128, "delay": 1.5, "transition": 0.2}`})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	step := p.Ops()[0].Step
	if step.Color != color.NewRGB(10, 20, 30) {
		t.Errorf("color = %v", step.Color)
	}
	if step.Brightness == nil || *step.Brightness != 128 {
		t.Errorf("brightness = %v, want 128", step.Brightness)
	}
	if step.Delay != 1500*time.Millisecond {
		t.Errorf("delay = %v, want 1.5s", step.Delay)
	}
	if step.Transition != 200*time.Millisecond {
		t.Errorf("transition = %v, want 200ms", step.Transition)
	}
}

func TestParseRGBPrecedence(t *testing.T) {
	// RGB wins when a step supplies both representations.
	p, err := Parse([]string{`{"rgb": [255, 0, 0], "kelvin": 2700}`})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := p.Ops()[0].Step.Color
	if got.Mode != color.ModeRGB {
		t.Errorf("color mode = %v, want rgb", got.Mode)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
	}{
		{"empty_pattern", []string{}},
		{"no_color", []string{`{"brightness": 200}`}},
		{"bad_json", []string{`{"rgb": [255,`}},
		{"rgb_wrong_arity", []string{`{"rgb": [255, 0]}`}},
		{"rgb_out_of_range", []string{`{"rgb": [255, 0, 300]}`}},
		{"negative_kelvin", []string{`{"kelvin": -100}`}},
		{"brightness_out_of_range", []string{`{"rgb": [1, 2, 3], "brightness": 300}`}},
		{"close_without_open", []string{`{"rgb": [1, 2, 3]}`, "], 2"}},
		{"unclosed_loop", []string{"[", `{"rgb": [1, 2, 3]}`}},
		{"empty_loop_body", []string{`{"rgb": [1, 2, 3]}`, "[", "], 0"}},
		{"bad_loop_count", []string{"[", `{"rgb": [1, 2, 3]}`, "], x"}},
		{"only_markers", []string{"[", "], 2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.entries)
			if err == nil {
				t.Fatal("Parse() succeeded, want error")
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("error type = %T, want *ParseError", err)
			}
		})
	}
}
