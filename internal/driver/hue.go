package driver

import (
	"context"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/notifyd/internal/color"
)

// Hue drives a single light on a Hue bridge. Bridge calls are rate
// limited so a flapping pattern cannot flood the bridge API.
type Hue struct {
	bridge  *huego.Bridge
	lightID int
	limiter *rate.Limiter
}

// NewHue creates a Hue driver for one light.
func NewHue(bridge *huego.Bridge, lightID int, rateLimitRPS float64) *Hue {
	if rateLimitRPS == 0 {
		rateLimitRPS = 10.0
	}
	return &Hue{
		bridge:  bridge,
		lightID: lightID,
		limiter: rate.NewLimiter(rate.Limit(rateLimitRPS), int(rateLimitRPS)),
	}
}

// ApplyFrame applies the frame to the light. An RGB black frame turns
// the light off instead.
func (h *Hue) ApplyFrame(ctx context.Context, frame color.Frame) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return &Error{Op: "rate_wait", Err: err}
	}

	light, err := h.bridge.GetLightContext(ctx, h.lightID)
	if err != nil {
		return &Error{Op: "get_light", Err: err}
	}

	if frame.Color.IsOff() {
		log.Debug().Int("light", h.lightID).Msg("Turning off light")
		if err := light.OffContext(ctx); err != nil {
			return &Error{Op: "turn_off", Err: err}
		}
		return nil
	}

	state := huego.State{
		On:             true,
		TransitionTime: uint16(frame.Transition / (100 * time.Millisecond)),
	}
	if frame.Color.Mode == color.ModeKelvin {
		state.Ct = kelvinToMired(frame.Color.Kelvin)
	} else {
		x, y := frame.Color.XY()
		state.Xy = []float32{x, y}
	}
	if frame.Brightness != nil {
		state.Bri = *frame.Brightness
	}

	log.Debug().
		Int("light", h.lightID).
		Str("color", frame.Color.String()).
		Dur("transition", frame.Transition).
		Msg("Applying frame to light")

	if err := light.SetStateContext(ctx, state); err != nil {
		return &Error{Op: "set_state", Err: err}
	}
	return nil
}

// CurrentState reads the light's current physical state.
func (h *Hue) CurrentState(ctx context.Context) (State, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return State{}, &Error{Op: "rate_wait", Err: err}
	}

	light, err := h.bridge.GetLightContext(ctx, h.lightID)
	if err != nil {
		return State{}, &Error{Op: "get_light", Err: err}
	}

	st := State{On: light.State.On}
	bri := light.State.Bri
	st.Brightness = &bri
	if light.State.ColorMode == "ct" && light.State.Ct > 0 {
		st.Color = color.NewKelvin(miredToKelvin(light.State.Ct))
	} else {
		// xy/hs modes both round-trip through kelvin estimation poorly;
		// passthrough display only needs an approximation.
		st.Color = color.WarmWhite
	}
	return st, nil
}

func kelvinToMired(kelvin int) uint16 {
	if kelvin <= 0 {
		return 0
	}
	return uint16(1000000 / kelvin)
}

func miredToKelvin(mired uint16) int {
	if mired == 0 {
		return 0
	}
	return 1000000 / int(mired)
}
