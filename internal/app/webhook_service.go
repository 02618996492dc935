package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/notifyd/internal/config"
	"github.com/dokzlo13/notifyd/internal/eventbus"
	"github.com/dokzlo13/notifyd/internal/webhook"
)

// WebhookService wraps the webhook HTTP server.
type WebhookService struct {
	cfg    *config.Config
	server *webhook.Server
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(cfg *config.Config, bus *eventbus.Bus) *WebhookService {
	server := webhook.NewServer(cfg.Webhook.Host, cfg.Webhook.Port, bus)
	return &WebhookService{
		cfg:    cfg,
		server: server,
	}
}

// Start begins the webhook server. It is the only control surface, so
// there is no disable switch.
func (s *WebhookService) Start(ctx context.Context) {
	go func() {
		if err := s.server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			log.Error().Err(err).Msg("Webhook server error")
		}
	}()
}
