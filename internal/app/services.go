package app

import (
	"context"
	"fmt"

	"github.com/amimof/huego"

	"github.com/dokzlo13/notifyd/internal/config"
	"github.com/dokzlo13/notifyd/internal/eventbus"
	"github.com/dokzlo13/notifyd/internal/notify"
	"github.com/dokzlo13/notifyd/internal/snapshot"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	Store  *snapshot.Store
	Bus    *eventbus.Bus
	Bridge *huego.Bridge

	// High-level services
	Engines *EngineService
	Health  *HealthService
	Webhook *WebhookService
	Watcher *notify.Watcher
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize snapshot storage
	store, err := snapshot.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.Store = store

	// Initialize event bus
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	// Load notification specs; a broken specs file fails startup
	specs, err := notify.LoadSpecs(cfg.Specs.Path)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load notification specs: %w", err)
	}

	// Hue bridge client, shared by all actuator drivers
	s.Bridge = huego.New(config.ExpandEnvString(cfg.Hue.Bridge), config.ExpandEnvString(cfg.Hue.Token))

	// One engine per configured actuator
	s.Engines = NewEngineService(cfg, s.Bridge, store, specs)

	// Specs hot reload publishes the new set to the bus
	if cfg.Specs.Watch {
		s.Watcher = notify.NewWatcher(cfg.Specs.Path, func(next map[string]*notify.Spec) {
			s.Bus.Publish(eventbus.Event{Type: eventbus.EventTypeSpecs, Data: next})
		})
	}

	// Initialize health service
	s.Health = NewHealthService(cfg)

	// Initialize webhook service
	s.Webhook = NewWebhookService(cfg, s.Bus)

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a background service fails fatally.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// Verify bridge connectivity so auth problems surface at startup
	if _, err := s.Bridge.GetConfigContext(ctx); err != nil {
		return fmt.Errorf("failed to reach hue bridge: %w", err)
	}

	// Route bus events into the engines before anything can publish
	s.Engines.Subscribe(s.Bus)

	// Rebuild engine state from snapshots before the render loops start
	s.Engines.Restore(ctx)

	// Start all background services
	s.Engines.Start(ctx)
	if s.Watcher != nil {
		go func() {
			if err := s.Watcher.Run(ctx); err != nil {
				onFatalError(err)
			}
		}()
	}
	s.Health.Start(ctx)
	s.Webhook.Start(ctx)

	return nil
}

// ClearState drops all persisted actuator snapshots.
func (s *Services) ClearState() error {
	return s.Store.Clear()
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		s.Bus.Close(ctx)
	}
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Store != nil {
		s.Store.Close()
	}
}
