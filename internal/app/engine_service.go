package app

import (
	"context"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/notifyd/internal/color"
	"github.com/dokzlo13/notifyd/internal/config"
	"github.com/dokzlo13/notifyd/internal/driver"
	"github.com/dokzlo13/notifyd/internal/engine"
	"github.com/dokzlo13/notifyd/internal/eventbus"
	"github.com/dokzlo13/notifyd/internal/notify"
	"github.com/dokzlo13/notifyd/internal/snapshot"
)

// EngineService owns the per-actuator engines and the bus routing
// that feeds them.
type EngineService struct {
	actuators []config.ActuatorConfig
	engines   map[string]*engine.Engine
}

// NewEngineService builds one engine per configured actuator.
func NewEngineService(cfg *config.Config, bridge *huego.Bridge, store *snapshot.Store, specs map[string]*notify.Spec) *EngineService {
	s := &EngineService{
		actuators: cfg.Actuators,
		engines:   make(map[string]*engine.Engine, len(cfg.Actuators)),
	}

	for _, a := range cfg.Actuators {
		drv := driver.NewHue(bridge, a.Light, cfg.Hue.RateLimitRPS)
		subs := notify.ResolveSubscriptions(specs, a.Subscriptions.Specs, a.Subscriptions.Pools)
		s.engines[a.ID] = engine.New(engineOptions(a), drv, store, specs, subs)
	}
	return s
}

func engineOptions(a config.ActuatorConfig) engine.Options {
	opts := engine.Options{
		ActuatorID:      a.ID,
		TickInterval:    a.TickInterval.Duration(),
		DispatchTimeout: a.DispatchTimeout.Duration(),
		AutoCycle:       a.AutoCycle,
		CycleDelay:      a.CycleDelay.Duration(),
		PeekDuration:    a.PeekDuration.Duration(),
		DynamicPriority: a.DynamicManual(),
		ManualPriority:  a.ManualPriority,
		RestorePower:    a.RestorePower,
		Bounds: snapshot.RestoreBounds{
			Pref:      modePref(a.ColorModePref),
			MinKelvin: a.MinKelvin,
			MaxKelvin: a.MaxKelvin,
		},
	}
	if opts.ManualPriority == 0 {
		opts.ManualPriority = engine.DefaultManualPriority
	}
	if len(a.ManualRGB) == 3 {
		opts.ManualColor = color.NewRGB(uint8(a.ManualRGB[0]), uint8(a.ManualRGB[1]), uint8(a.ManualRGB[2]))
	}
	return opts
}

func modePref(s string) color.ModePref {
	switch s {
	case "rgb":
		return color.PrefRGB
	case "color_temp":
		return color.PrefColorTemp
	default:
		return color.PrefNone
	}
}

// Subscribe wires bus events into the engines. Switch events fan out to
// every engine (subscription filtering happens inside); manual events
// go to the addressed actuator; spec reloads are re-resolved per
// actuator before delivery. All three register on the ordered path so
// rapid on/off toggles reach an engine in publish order.
func (s *EngineService) Subscribe(bus *eventbus.Bus) {
	bus.SubscribeOrdered(eventbus.EventTypeSwitch, func(ev eventbus.Event) {
		for _, eng := range s.engines {
			eng.Submit(ev)
		}
	})

	bus.SubscribeOrdered(eventbus.EventTypeManual, func(ev eventbus.Event) {
		if ev.Manual == nil {
			return
		}
		eng, ok := s.engines[ev.Manual.ActuatorID]
		if !ok {
			log.Warn().Str("actuator", ev.Manual.ActuatorID).Msg("Manual request for unknown actuator")
			return
		}
		eng.Submit(ev)
	})

	bus.SubscribeOrdered(eventbus.EventTypeSpecs, func(ev eventbus.Event) {
		specs, ok := ev.Data.(map[string]*notify.Spec)
		if !ok {
			return
		}
		for _, a := range s.actuators {
			s.engines[a.ID].Submit(eventbus.Event{
				Type: eventbus.EventTypeSpecs,
				Data: engine.SpecsUpdate{
					Specs: specs,
					Subs:  notify.ResolveSubscriptions(specs, a.Subscriptions.Specs, a.Subscriptions.Pools),
				},
			})
		}
	})
}

// Restore rebuilds each engine's state from its snapshot. Failures are
// not fatal: the affected actuator starts clean.
func (s *EngineService) Restore(ctx context.Context) {
	now := time.Now()
	for id, eng := range s.engines {
		if err := eng.Restore(ctx, now); err != nil {
			log.Error().Err(err).Str("actuator", id).Msg("State restore failed, starting clean")
		}
	}
}

// Start launches every engine's render loop.
func (s *EngineService) Start(ctx context.Context) {
	for _, eng := range s.engines {
		go func() {
			if err := eng.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Engine stopped with error")
			}
		}()
	}
}
