// Package engine runs one render loop per actuator: it tracks active
// notification instances, resolves which one owns the actuator, plays
// its pattern, and persists enough state to survive a restart without
// replaying stale commands.
package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/notifyd/internal/color"
	"github.com/dokzlo13/notifyd/internal/driver"
	"github.com/dokzlo13/notifyd/internal/eventbus"
	"github.com/dokzlo13/notifyd/internal/notify"
	"github.com/dokzlo13/notifyd/internal/pattern"
	"github.com/dokzlo13/notifyd/internal/snapshot"
)

// Default configuration
const (
	DefaultTickInterval    = 100 * time.Millisecond
	DefaultDispatchTimeout = 5 * time.Second
	DefaultManualPriority  = 1000
	DefaultCycleDelay      = 5 * time.Second

	eventQueueSize = 64
)

// SnapshotStore is the persistence the engine needs. *snapshot.Store
// satisfies it; tests use an in-memory fake.
type SnapshotStore interface {
	Save(actuatorID string, snap *snapshot.Snapshot) error
	Load(actuatorID string) (*snapshot.Snapshot, error)
}

// Options configures one actuator engine.
type Options struct {
	ActuatorID      string
	TickInterval    time.Duration
	DispatchTimeout time.Duration

	// AutoCycle rotates through equal-priority instances every CycleDelay.
	AutoCycle  bool
	CycleDelay time.Duration

	// PeekDuration bounds the temporary-display window of temp_display
	// specs. Zero disables peeking on this actuator.
	PeekDuration time.Duration

	// DynamicPriority makes the manual override always outrank
	// notifications; otherwise it competes with ManualPriority.
	DynamicPriority bool
	ManualPriority  int

	// ManualColor is shown on manual-on when the request names no color
	// and no previous manual color is remembered. Zero value means warm white.
	ManualColor color.Color

	// RestorePower dispatches the restored frame on startup. When false
	// the actuator is left untouched until the next switch or manual event.
	RestorePower bool
	Bounds       snapshot.RestoreBounds
}

// SpecsUpdate is the payload of a specs-reload event, pre-resolved for
// one actuator.
type SpecsUpdate struct {
	Specs map[string]*notify.Spec
	Subs  notify.SubscriptionSet
}

// Engine owns all runtime state of one actuator. State is mutated only
// from the Run goroutine; other goroutines talk to it through Submit.
type Engine struct {
	opts  Options
	drv   driver.Driver
	store SnapshotStore

	events chan eventbus.Event

	specs       map[string]*notify.Spec
	subs        notify.SubscriptionSet
	manual      *ManualOverride
	manualColor color.Color
	active      map[string]*notify.Instance
	parked      map[string]pattern.Cursor
	peeks       peekQueue
	selected    Selection
	cycleCursor int
	lastCycleAt time.Time
	lastTickAt  time.Time
	lastFrame   *color.Frame
	pending     *color.Frame // frame whose dispatch failed, retried next tick

	// startupQuiet holds every dispatch after a quiet restore until the
	// first switch or manual event for this actuator.
	startupQuiet bool
}

// New creates an engine for one actuator. The specs map and subscription
// set are replaced wholesale on reload events, never mutated.
func New(opts Options, drv driver.Driver, store SnapshotStore, specs map[string]*notify.Spec, subs notify.SubscriptionSet) *Engine {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = DefaultDispatchTimeout
	}
	if opts.AutoCycle && opts.CycleDelay <= 0 {
		opts.CycleDelay = DefaultCycleDelay
	}

	manualColor := opts.ManualColor
	if manualColor == (color.Color{}) {
		manualColor = color.WarmWhite
	}
	if specs == nil {
		specs = map[string]*notify.Spec{}
	}

	return &Engine{
		opts:        opts,
		drv:         drv,
		store:       store,
		events:      make(chan eventbus.Event, eventQueueSize),
		specs:       specs,
		subs:        subs,
		manualColor: manualColor,
		active:      make(map[string]*notify.Instance),
		parked:      make(map[string]pattern.Cursor),
	}
}

// Submit queues an event for the run loop. Non-blocking: a full queue
// drops the event with a warning.
func (e *Engine) Submit(ev eventbus.Event) {
	select {
	case e.events <- ev:
	default:
		log.Warn().
			Str("actuator", e.opts.ActuatorID).
			Str("event_type", string(ev.Type)).
			Msg("Engine queue full, dropping event")
	}
}

// Run drives the render loop until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()

	e.lastTickAt = time.Now()
	e.lastCycleAt = e.lastTickAt
	log.Info().
		Str("actuator", e.opts.ActuatorID).
		Dur("tick_interval", e.opts.TickInterval).
		Msg("Actuator engine started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("actuator", e.opts.ActuatorID).Msg("Actuator engine stopped")
			return nil
		case ev := <-e.events:
			now := time.Now()
			e.handleEvent(ev, now)
			e.drainEvents(now)
		case now := <-ticker.C:
			e.tick(ctx, now)
		}
	}
}

// drainEvents coalesces bursts so one tick sees their combined effect.
func (e *Engine) drainEvents(now time.Time) {
	for {
		select {
		case ev := <-e.events:
			e.handleEvent(ev, now)
		default:
			return
		}
	}
}

func (e *Engine) handleEvent(ev eventbus.Event, now time.Time) {
	switch ev.Type {
	case eventbus.EventTypeSwitch:
		if ev.Switch != nil {
			e.handleSwitch(*ev.Switch, now)
		}
	case eventbus.EventTypeManual:
		if ev.Manual != nil {
			e.handleManual(*ev.Manual, now)
		}
	case eventbus.EventTypeSpecs:
		if upd, ok := ev.Data.(SpecsUpdate); ok {
			e.handleSpecsUpdate(upd)
		}
	}
}

func (e *Engine) handleSwitch(ev eventbus.SwitchEvent, now time.Time) {
	if !e.subs.Contains(ev.NotifyID) {
		return
	}
	e.startupQuiet = false
	if ev.On {
		e.activate(ev.NotifyID, now)
	} else {
		e.deactivate(ev.NotifyID)
	}
}

func (e *Engine) activate(specID string, now time.Time) {
	spec, ok := e.specs[specID]
	if !ok {
		log.Warn().
			Str("actuator", e.opts.ActuatorID).
			Str("notify", specID).
			Msg("Subscribed notification has no loaded spec")
		return
	}
	if _, exists := e.active[specID]; exists {
		log.Debug().
			Str("actuator", e.opts.ActuatorID).
			Str("notify", specID).
			Msg("Notification already active")
		return
	}

	inst := notify.NewInstance(spec, now)
	if spec.Resume {
		// Reactivation continues from the parked position.
		if cur, ok := e.parked[specID]; ok {
			inst.Cursor = cur
			delete(e.parked, specID)
		}
	}
	e.active[specID] = inst

	if spec.TempDisplay && e.opts.PeekDuration > 0 {
		e.peeks.push(specID, now.Add(e.opts.PeekDuration))
	}

	log.Info().
		Str("actuator", e.opts.ActuatorID).
		Str("notify", specID).
		Int("priority", spec.Priority).
		Msg("Notification activated")
	e.persist()
}

func (e *Engine) deactivate(specID string) {
	inst, ok := e.active[specID]
	if !ok {
		return
	}
	delete(e.active, specID)
	if inst.Spec.Resume {
		e.parked[specID] = inst.Cursor
	}
	e.peeks.remove(specID)

	log.Info().
		Str("actuator", e.opts.ActuatorID).
		Str("notify", specID).
		Msg("Notification deactivated")
	e.persist()
}

func (e *Engine) handleManual(ev eventbus.ManualEvent, now time.Time) {
	if ev.ActuatorID != e.opts.ActuatorID {
		return
	}
	e.startupQuiet = false
	if !ev.On {
		if e.manual == nil {
			return
		}
		e.manual = nil
		log.Info().Str("actuator", e.opts.ActuatorID).Msg("Manual override cleared")
	} else {
		if ev.Color != nil {
			e.manualColor = *ev.Color
		}
		e.manual = &ManualOverride{Color: e.manualColor, Brightness: ev.Brightness, SetAt: now}
		log.Info().
			Str("actuator", e.opts.ActuatorID).
			Str("color", e.manualColor.String()).
			Msg("Manual override set")
	}
	e.persist()
}

// handleSpecsUpdate swaps in a reloaded spec set. Running instances keep
// the spec they were activated with so their cursors stay valid; only
// instances whose id disappeared are dropped.
func (e *Engine) handleSpecsUpdate(upd SpecsUpdate) {
	e.specs = upd.Specs
	if upd.Subs != nil {
		e.subs = upd.Subs
	}
	for id := range e.active {
		if _, ok := e.specs[id]; !ok {
			e.deactivate(id)
		}
	}
	for id := range e.parked {
		if _, ok := e.specs[id]; !ok {
			delete(e.parked, id)
		}
	}
	log.Info().
		Str("actuator", e.opts.ActuatorID).
		Int("specs", len(e.specs)).
		Msg("Notification specs reloaded")
}

// tick is one render-loop iteration: expire, reselect, advance, dispatch.
// Split from Run so tests can drive it with synthetic timestamps.
func (e *Engine) tick(ctx context.Context, now time.Time) {
	elapsed := now.Sub(e.lastTickAt)
	if elapsed < 0 {
		elapsed = 0
	}
	e.lastTickAt = now

	e.expire(now)
	e.peeks.prune(now, func(id string) bool {
		_, ok := e.active[id]
		return ok
	})
	e.advanceCycle(now)

	sel := e.currentSelection()
	if !sel.equal(e.selected) {
		e.selected = sel
		e.pending = nil
		log.Debug().
			Str("actuator", e.opts.ActuatorID).
			Str("selection", sel.Kind.String()).
			Msg("Selection changed")
		e.persist()
		if sel.Kind == SelInstance {
			// Repaint what the incoming instance is currently showing.
			// Its cursor and hold timing continue undisturbed.
			if f := pattern.FrameAt(sel.Instance.Spec.Pattern, sel.Instance.Cursor); f != nil {
				e.send(ctx, *f)
			}
		}
	}

	e.render(ctx, elapsed)
}

func (e *Engine) expire(now time.Time) {
	for id, inst := range e.active {
		if inst.Expired(now) {
			log.Info().
				Str("actuator", e.opts.ActuatorID).
				Str("notify", id).
				Msg("Notification timed out")
			e.deactivate(id)
		}
	}
}

// advanceCycle rotates the tie cursor. Cycling pauses while a manual
// override or a temporary display holds the actuator.
func (e *Engine) advanceCycle(now time.Time) {
	if !e.opts.AutoCycle || e.opts.CycleDelay <= 0 {
		return
	}
	if e.manual != nil || !e.peeks.empty() {
		return
	}
	group := TieGroup(e.activeList())
	if len(group) < 2 {
		e.lastCycleAt = now
		return
	}
	if now.Sub(e.lastCycleAt) < e.opts.CycleDelay {
		return
	}
	e.cycleCursor++
	e.lastCycleAt = now
}

// currentSelection checks the temporary-display slot first, then falls
// back to priority resolution.
func (e *Engine) currentSelection() Selection {
	if id, ok := e.peeks.current(); ok {
		if inst, ok := e.active[id]; ok {
			return Selection{Kind: SelInstance, Instance: inst}
		}
	}
	return Resolve(ResolveInput{
		Manual:         e.manual,
		DynamicManual:  e.opts.DynamicPriority,
		ManualPriority: e.opts.ManualPriority,
		Active:         e.activeList(),
		AutoCycle:      e.opts.AutoCycle,
		CycleCursor:    e.cycleCursor,
	})
}

func (e *Engine) activeList() []*notify.Instance {
	if len(e.active) == 0 {
		return nil
	}
	out := make([]*notify.Instance, 0, len(e.active))
	for _, inst := range e.active {
		out = append(out, inst)
	}
	return out
}

func (e *Engine) render(ctx context.Context, elapsed time.Duration) {
	if e.pending != nil {
		retry := *e.pending
		e.pending = nil
		e.send(ctx, retry)
	}

	switch e.selected.Kind {
	case SelPassthrough:
		// Nobody owns the actuator; its state is its own.
		e.lastFrame = nil

	case SelManual:
		e.send(ctx, color.Frame{Color: e.manual.Color, Brightness: e.manual.Brightness})

	case SelInstance:
		inst := e.selected.Instance
		frame, cur, done := pattern.Advance(inst.Spec.Pattern, inst.Cursor, elapsed)
		inst.Cursor = cur
		if frame != nil {
			e.send(ctx, *frame)
		}
		if done && !inst.Done {
			inst.Done = true
			if inst.Spec.Timeout != nil && *inst.Spec.Timeout == 0 {
				log.Info().
					Str("actuator", e.opts.ActuatorID).
					Str("notify", inst.Spec.ID).
					Msg("Pattern completed, clearing notification")
				e.deactivate(inst.Spec.ID)
			} else {
				e.persist()
			}
		}
	}
}

// send dispatches a frame, parking it for a retry on the next tick when
// the device call fails. A newer frame supersedes a parked one. During
// the startup quiet period frames are swallowed.
func (e *Engine) send(ctx context.Context, frame color.Frame) {
	if e.startupQuiet {
		return
	}
	if e.dispatch(ctx, frame) {
		e.pending = nil
	} else {
		e.pending = &frame
	}
}

// dispatch applies a frame unless the actuator already shows it.
func (e *Engine) dispatch(ctx context.Context, frame color.Frame) bool {
	if e.lastFrame != nil && e.lastFrame.Equal(frame) {
		return true
	}

	dctx, cancel := context.WithTimeout(ctx, e.opts.DispatchTimeout)
	defer cancel()

	if err := e.drv.ApplyFrame(dctx, frame); err != nil {
		log.Warn().
			Err(err).
			Str("actuator", e.opts.ActuatorID).
			Str("color", frame.Color.String()).
			Msg("Frame dispatch failed")
		return false
	}

	e.lastFrame = &frame
	log.Debug().
		Str("actuator", e.opts.ActuatorID).
		Str("color", frame.Color.String()).
		Msg("Frame dispatched")
	return true
}

func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.Save(e.opts.ActuatorID, e.buildSnapshot()); err != nil {
		log.Error().
			Err(err).
			Str("actuator", e.opts.ActuatorID).
			Msg("Snapshot save failed")
	}
}

func (e *Engine) buildSnapshot() *snapshot.Snapshot {
	snap := &snapshot.Snapshot{}

	switch e.selected.Kind {
	case SelManual:
		snap.Selected = snapshot.SelectedManual
	case SelInstance:
		snap.Selected = e.selected.Instance.Spec.ID
	}

	for id, inst := range e.active {
		snap.Active = append(snap.Active, snapshot.InstanceRecord{
			SpecID:      id,
			InstanceID:  inst.ID,
			Cursor:      inst.Cursor,
			ActivatedAt: inst.ActivatedAt,
			Done:        inst.Done,
		})
	}
	sort.Slice(snap.Active, func(i, j int) bool {
		return snap.Active[i].SpecID < snap.Active[j].SpecID
	})

	if e.manual != nil {
		snap.Manual = &snapshot.ManualRecord{Color: e.manual.Color, Brightness: e.manual.Brightness}
	}
	lastManual := e.manualColor
	snap.LastManualColor = &lastManual
	return snap
}

// Restore rebuilds engine state from the persisted snapshot. Instances
// referencing specs that no longer exist are dropped, and the selection
// is recomputed rather than trusted. A frame reaches the actuator only
// when RestorePower is set; otherwise the presumed-current frame seeds
// the dedup state and dispatching stays suppressed until the next
// switch or manual event.
func (e *Engine) Restore(ctx context.Context, now time.Time) error {
	if e.store == nil {
		return nil
	}

	snap, err := e.store.Load(e.opts.ActuatorID)
	if err != nil {
		if errors.Is(err, snapshot.ErrCorrupt) {
			log.Warn().
				Err(err).
				Str("actuator", e.opts.ActuatorID).
				Msg("Corrupt snapshot, starting clean")
			return nil
		}
		return err
	}
	if snap == nil {
		return nil
	}

	for _, rec := range snap.Active {
		spec, ok := e.specs[rec.SpecID]
		if !ok {
			log.Warn().
				Str("actuator", e.opts.ActuatorID).
				Str("notify", rec.SpecID).
				Msg("Snapshot references unknown spec, dropping")
			continue
		}
		e.active[rec.SpecID] = &notify.Instance{
			Spec:        spec,
			ID:          rec.InstanceID,
			ActivatedAt: rec.ActivatedAt,
			Cursor:      rec.Cursor,
			Done:        rec.Done,
		}
	}
	if snap.LastManualColor != nil {
		e.manualColor = *snap.LastManualColor
	}
	if snap.Manual != nil {
		e.manual = &ManualOverride{Color: snap.Manual.Color, Brightness: snap.Manual.Brightness, SetAt: now}
		e.manualColor = snap.Manual.Color
	}

	e.selected = e.currentSelection()
	log.Info().
		Str("actuator", e.opts.ActuatorID).
		Int("active", len(e.active)).
		Str("selection", e.selected.Kind.String()).
		Msg("State restored")

	frame := e.selectionFrame()
	if frame == nil {
		return nil
	}
	out := snapshot.RestoreFrame(*frame, e.opts.Bounds)
	if e.selected.Kind == SelManual {
		// Keep the override consistent with what restore shows.
		e.manual.Color = out.Color
		e.manualColor = out.Color
	}

	if e.opts.RestorePower {
		e.dispatch(ctx, out)
	} else {
		// The frame is presumed already showing; hold all dispatches
		// until the next switch or manual event.
		e.lastFrame = &out
		e.startupQuiet = true
	}
	return nil
}

// selectionFrame is the frame the current selection is presently
// showing, without advancing anything.
func (e *Engine) selectionFrame() *color.Frame {
	switch e.selected.Kind {
	case SelManual:
		return &color.Frame{Color: e.manual.Color, Brightness: e.manual.Brightness}
	case SelInstance:
		inst := e.selected.Instance
		return pattern.FrameAt(inst.Spec.Pattern, inst.Cursor)
	}
	return nil
}
