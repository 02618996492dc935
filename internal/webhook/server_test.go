package webhook

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dokzlo13/notifyd/internal/color"
	"github.com/dokzlo13/notifyd/internal/eventbus"
)

func post(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event) eventbus.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event published")
		return eventbus.Event{}
	}
}

func TestHandleNotify(t *testing.T) {
	bus := eventbus.New()
	events := make(chan eventbus.Event, 1)
	bus.Subscribe(eventbus.EventTypeSwitch, func(ev eventbus.Event) { events <- ev })

	srv := NewServer("127.0.0.1", 0, bus)
	handler := srv.routes()

	rec := post(t, handler, "/notify/doorbell", `{"on": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	ev := waitEvent(t, events)
	if ev.Switch == nil || ev.Switch.NotifyID != "doorbell" || !ev.Switch.On {
		t.Errorf("published %+v, want doorbell on", ev.Switch)
	}
}

func TestHandleNotifyBadBody(t *testing.T) {
	srv := NewServer("127.0.0.1", 0, eventbus.New())
	rec := post(t, srv.routes(), "/notify/doorbell", `{"on": `)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleManual(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantColor *color.Color
		wantOn    bool
	}{
		{
			name:      "rgb",
			body:      `{"on": true, "rgb": [255, 0, 0]}`,
			wantCode:  http.StatusOK,
			wantColor: ptr(color.NewRGB(255, 0, 0)),
			wantOn:    true,
		},
		{
			name:      "kelvin",
			body:      `{"on": true, "kelvin": 2700}`,
			wantCode:  http.StatusOK,
			wantColor: ptr(color.NewKelvin(2700)),
			wantOn:    true,
		},
		{
			name:     "no_color",
			body:     `{"on": true}`,
			wantCode: http.StatusOK,
			wantOn:   true,
		},
		{
			name:     "off",
			body:     `{"on": false}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "bad_rgb_len",
			body:     `{"on": true, "rgb": [255, 0]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "rgb_out_of_range",
			body:     `{"on": true, "rgb": [300, 0, 0]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad_kelvin",
			body:     `{"on": true, "kelvin": -5}`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := eventbus.New()
			events := make(chan eventbus.Event, 1)
			bus.Subscribe(eventbus.EventTypeManual, func(ev eventbus.Event) { events <- ev })

			srv := NewServer("127.0.0.1", 0, bus)
			rec := post(t, srv.routes(), "/actuator/livingroom/manual", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}

			ev := waitEvent(t, events)
			if ev.Manual == nil {
				t.Fatal("no manual payload")
			}
			if ev.Manual.ActuatorID != "livingroom" {
				t.Errorf("actuator = %q, want livingroom", ev.Manual.ActuatorID)
			}
			if ev.Manual.On != tt.wantOn {
				t.Errorf("on = %v, want %v", ev.Manual.On, tt.wantOn)
			}
			switch {
			case tt.wantColor == nil && ev.Manual.Color != nil:
				t.Errorf("color = %v, want none", ev.Manual.Color)
			case tt.wantColor != nil && (ev.Manual.Color == nil || *ev.Manual.Color != *tt.wantColor):
				t.Errorf("color = %v, want %v", ev.Manual.Color, tt.wantColor)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := NewServer("127.0.0.1", 0, eventbus.New())
	req := httptest.NewRequest(http.MethodGet, "/notify/doorbell", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func ptr[T any](v T) *T { return &v }
