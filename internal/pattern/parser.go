package pattern

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dokzlo13/notifyd/internal/color"
)

// ParseError describes a malformed pattern entry. Patterns are parsed
// once at spec load time; a ParseError makes the owning spec unloadable.
type ParseError struct {
	Entry int // 1-based index of the offending entry
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pattern entry #%d: %s", e.Entry, e.Msg)
}

// stepText is the JSON shape of a single step entry.
type stepText struct {
	RGB        []int    `json:"rgb"`
	Kelvin     *int     `json:"kelvin"`
	Brightness *int     `json:"brightness"`
	Delay      *float64 `json:"delay"`
	Transition *float64 `json:"transition"`
}

// Parse compiles pattern text into a Pattern. Each entry is either a
// loop-start "[", a loop-end "]" / "], N", or a JSON step object
// (surrounding braces optional). A step must carry "rgb" or "kelvin";
// rgb wins when both are present. An empty pattern is invalid.
func Parse(entries []string) (Pattern, error) {
	var p Pattern
	type openLoop struct {
		entry int // for the unclosed-loop error
		opIdx int
	}
	var stack []openLoop

	for i, raw := range entries {
		entry := i + 1
		item := strings.TrimSpace(raw)
		switch {
		case item == "":
			return Pattern{}, &ParseError{Entry: entry, Msg: "empty entry"}

		case item == "[":
			stack = append(stack, openLoop{entry: entry, opIdx: len(p.ops)})
			p.ops = append(p.ops, Op{Kind: OpLoopStart})

		case strings.HasPrefix(item, "]"):
			count, err := parseLoopEnd(item)
			if err != nil {
				return Pattern{}, &ParseError{Entry: entry, Msg: err.Error()}
			}
			if len(stack) == 0 {
				return Pattern{}, &ParseError{Entry: entry, Msg: "loop close with no open loop"}
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !hasStep(p.ops[open.opIdx+1:]) {
				return Pattern{}, &ParseError{Entry: entry, Msg: "loop body has no steps"}
			}
			if count == 0 {
				p.loopsForever = true
			}
			p.ops = append(p.ops, Op{Kind: OpLoopEnd, Count: count})

		default:
			step, err := parseStep(item)
			if err != nil {
				return Pattern{}, &ParseError{Entry: entry, Msg: err.Error()}
			}
			p.ops = append(p.ops, Op{Kind: OpStep, Step: step})
		}
	}

	if len(stack) > 0 {
		return Pattern{}, &ParseError{
			Entry: stack[0].entry,
			Msg:   "loop opened here was never closed",
		}
	}
	if p.Steps() == 0 {
		return Pattern{}, &ParseError{Entry: len(entries), Msg: "pattern has no steps"}
	}
	return p, nil
}

func hasStep(ops []Op) bool {
	for _, op := range ops {
		if op.Kind == OpStep {
			return true
		}
	}
	return false
}

// parseLoopEnd handles "]" and "], N". A bare "]" or "], 0" loops forever.
func parseLoopEnd(item string) (int, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(item, "]"))
	if rest == "" {
		return 0, nil
	}
	rest = strings.TrimSpace(strings.TrimPrefix(rest, ","))
	count, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid loop count %q", rest)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

func parseStep(item string) (Step, error) {
	// Braces are optional, same as the original pattern syntax.
	text := "{" + strings.Trim(item, "{}") + "}"

	var st stepText
	if err := json.Unmarshal([]byte(text), &st); err != nil {
		return Step{}, fmt.Errorf("invalid step: %v", err)
	}

	var step Step
	switch {
	case st.RGB != nil:
		if len(st.RGB) != 3 {
			return Step{}, fmt.Errorf("rgb needs 3 channels, got %d", len(st.RGB))
		}
		for _, ch := range st.RGB {
			if ch < 0 || ch > 255 {
				return Step{}, fmt.Errorf("rgb channel %d out of range 0-255", ch)
			}
		}
		step.Color = color.NewRGB(uint8(st.RGB[0]), uint8(st.RGB[1]), uint8(st.RGB[2]))
	case st.Kelvin != nil:
		if *st.Kelvin <= 0 {
			return Step{}, fmt.Errorf("kelvin %d must be positive", *st.Kelvin)
		}
		step.Color = color.NewKelvin(*st.Kelvin)
	default:
		return Step{}, fmt.Errorf("step must have 'rgb' or 'kelvin'")
	}

	if st.Brightness != nil {
		if *st.Brightness < 0 || *st.Brightness > 255 {
			return Step{}, fmt.Errorf("brightness %d out of range 0-255", *st.Brightness)
		}
		b := uint8(*st.Brightness)
		step.Brightness = &b
	}
	if st.Delay != nil {
		if *st.Delay < 0 {
			return Step{}, fmt.Errorf("delay must not be negative")
		}
		step.Delay = time.Duration(*st.Delay * float64(time.Second))
	}
	if st.Transition != nil {
		if *st.Transition < 0 {
			return Step{}, fmt.Errorf("transition must not be negative")
		}
		step.Transition = time.Duration(*st.Transition * float64(time.Second))
	}
	return step, nil
}
