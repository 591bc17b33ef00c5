package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elijahnyp/pjlink_controller/pjlink"
	"github.com/elijahnyp/pjlink_controller/state"
	. "github.com/elijahnyp/pjlink_controller/util"
	"github.com/gorilla/websocket"
)

func serve(handler http.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestAPISystemStatus(t *testing.T) {
	stub := newProjectorStub(t)
	useProjectors(t,
		ProjectorConfig{Name: "hall", Address: stub.Addr()},
		ProjectorConfig{Name: "booth", Address: "127.0.0.1:1"},
	)
	hall, _ := registry.Get("hall")
	waitUntil(t, 2*time.Second, "hall connected", func() bool { return hall.Status().Connected })

	w := serve(APISystemStatus, http.MethodGet, "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}

	var status SystemStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if status.Total != 2 || status.Connected != 1 || status.PoweredOn != 0 {
		t.Errorf("status = %+v", status)
	}
	if len(status.Projectors) != 2 || status.Projectors[0].Name != "hall" {
		t.Errorf("projectors = %+v", status.Projectors)
	}

	if w := serve(APISystemStatus, http.MethodPost, "/api/status"); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/status = %d, expected 405", w.Code)
	}
}

func TestAPIProjectorDetail(t *testing.T) {
	useProjectors(t, ProjectorConfig{Name: "hall", Address: "127.0.0.1:1", Label: "Hall"})

	tests := []struct {
		name   string
		target string
		code   int
	}{
		{"Known", "/api/projector?name=hall", http.StatusOK},
		{"Missing name", "/api/projector", http.StatusBadRequest},
		{"Unknown", "/api/projector?name=lobby", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(APIProjectorDetail, http.MethodGet, tt.target)
			if w.Code != tt.code {
				t.Errorf("Expected status %d, got %d", tt.code, w.Code)
			}
		})
	}

	w := serve(APIProjectorDetail, http.MethodGet, "/api/projector?name=hall")
	var status state.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if status.Name != "hall" || status.Label != "Hall" || status.Connected {
		t.Errorf("status = %+v", status)
	}
}

func TestAPIProjectorPower(t *testing.T) {
	stub := newProjectorStub(t)
	useProjectors(t,
		ProjectorConfig{Name: "hall", Address: stub.Addr()},
		ProjectorConfig{Name: "booth", Address: "127.0.0.1:1"},
	)
	hall, _ := registry.Get("hall")
	waitUntil(t, 2*time.Second, "hall connected", func() bool { return hall.Status().Connected })

	tests := []struct {
		name   string
		method string
		target string
		code   int
	}{
		{"Connected", http.MethodPost, "/api/projector/power?name=hall&on=true", http.StatusAccepted},
		{"Disconnected", http.MethodPost, "/api/projector/power?name=booth&on=true", http.StatusServiceUnavailable},
		{"Bad payload", http.MethodPost, "/api/projector/power?name=hall&on=perhaps", http.StatusBadRequest},
		{"Unknown", http.MethodPost, "/api/projector/power?name=lobby&on=1", http.StatusNotFound},
		{"Wrong method", http.MethodGet, "/api/projector/power?name=hall&on=1", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(APIProjectorPower, tt.method, tt.target)
			if w.Code != tt.code {
				t.Errorf("Expected status %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
		})
	}
	waitUntil(t, 2*time.Second, "power frame", func() bool { return stub.Has("%1POWR 1") })
}

func TestAPIProjectorInput(t *testing.T) {
	stub := newProjectorStub(t)
	useProjectors(t, ProjectorConfig{Name: "hall", Address: stub.Addr()})
	hall, _ := registry.Get("hall")
	waitUntil(t, 2*time.Second, "hall connected", func() bool { return hall.Status().Connected })

	w := serve(APIProjectorInput, http.MethodPost, "/api/projector/input?name=hall&code=31")
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}
	var result commandResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if result.Projector != "hall" || result.Status != "sent" {
		t.Errorf("result = %+v", result)
	}
	waitUntil(t, 2*time.Second, "input frame", func() bool { return stub.Has("%1INPT 31") })

	w = serve(APIProjectorInput, http.MethodPost, "/api/projector/input?name=hall")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing code = %d, expected 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid input code") {
		t.Errorf("error body = %s", w.Body.String())
	}
}

func TestCommandStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{nil, http.StatusAccepted},
		{pjlink.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("set-power: %w", pjlink.ErrNotConnected), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := commandStatus(tt.err); got != tt.code {
			t.Errorf("commandStatus(%v) = %d, expected %d", tt.err, got, tt.code)
		}
	}
}

func TestServeWebSocket(t *testing.T) {
	useProjectors(t, ProjectorConfig{Name: "hall", Address: "127.0.0.1:1"})

	server := httptest.NewServer(http.HandlerFunc(ServeWebSocket))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var first struct {
		Type string       `json:"type"`
		Data state.Status `json:"data"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if first.Type != "projector_status" || first.Data.Name != "hall" {
		t.Errorf("first message = %+v", first)
	}

	// registration races the dial returning, so keep broadcasting until seen
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				wsHub.BroadcastUpdate("test_update", map[string]string{"hello": "world"})
			}
		}
	}()

	for {
		var msg WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("no broadcast received: %v", err)
		}
		if msg.Type == "test_update" {
			break
		}
	}
}
