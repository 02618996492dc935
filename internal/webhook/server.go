// Package webhook exposes the HTTP control surface: notification
// switches and manual actuator control, translated into bus events.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/notifyd/internal/color"
	"github.com/dokzlo13/notifyd/internal/eventbus"
)

// Server is an HTTP server that translates control requests into bus events.
type Server struct {
	addr       string
	bus        *eventbus.Bus
	httpServer *http.Server
}

// NewServer creates a new webhook server.
func NewServer(host string, port int, bus *eventbus.Bus) *Server {
	return &Server{
		addr: fmt.Sprintf("%s:%d", host, port),
		bus:  bus,
	}
}

// Run starts the webhook server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
	}

	log.Info().Str("addr", s.addr).Msg("Starting webhook server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Webhook server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /notify/{id}", s.handleNotify)
	mux.HandleFunc("POST /actuator/{id}/manual", s.handleManual)
	return mux
}

type notifyRequest struct {
	On bool `json:"on"`
}

// handleNotify toggles a notification switch. The spec id is not
// validated here: which engines care is a subscription question.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	log.Debug().
		Str("notify", id).
		Bool("on", req.On).
		Msg("Received notification switch request")

	s.bus.Publish(eventbus.Event{
		Type:   eventbus.EventTypeSwitch,
		Switch: &eventbus.SwitchEvent{NotifyID: id, On: req.On},
	})

	writeOK(w)
}

type manualRequest struct {
	On         bool   `json:"on"`
	RGB        []int  `json:"rgb"`
	Kelvin     *int   `json:"kelvin"`
	Brightness *uint8 `json:"brightness"`
}

// handleManual sets or clears the manual override of one actuator.
// Color is optional; rgb wins when both representations are present.
func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var c *color.Color
	switch {
	case req.RGB != nil:
		if len(req.RGB) != 3 {
			http.Error(w, "rgb needs 3 channels", http.StatusBadRequest)
			return
		}
		for _, ch := range req.RGB {
			if ch < 0 || ch > 255 {
				http.Error(w, "rgb channel out of range 0-255", http.StatusBadRequest)
				return
			}
		}
		v := color.NewRGB(uint8(req.RGB[0]), uint8(req.RGB[1]), uint8(req.RGB[2]))
		c = &v
	case req.Kelvin != nil:
		if *req.Kelvin <= 0 {
			http.Error(w, "kelvin must be positive", http.StatusBadRequest)
			return
		}
		v := color.NewKelvin(*req.Kelvin)
		c = &v
	}

	log.Debug().
		Str("actuator", id).
		Bool("on", req.On).
		Msg("Received manual control request")

	s.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeManual,
		Manual: &eventbus.ManualEvent{
			ActuatorID: id,
			On:         req.On,
			Color:      c,
			Brightness: req.Brightness,
		},
	})

	writeOK(w)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
