package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/elijahnyp/pjlink_controller/pjlink"
	"github.com/elijahnyp/pjlink_controller/state"
	. "github.com/elijahnyp/pjlink_controller/util"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *WSHub
}

// WSHub maintains the set of active clients and broadcasts messages
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WebSocketMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// SystemStatus represents the overall system status
type SystemStatus struct {
	Projectors []state.Status `json:"projectors"`
	Total      int            `json:"total"`
	Connected  int            `json:"connected"`
	PoweredOn  int            `json:"powered_on"`
}

type commandResult struct {
	Projector string `json:"projector"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

var wsHub *WSHub

func init() {
	wsHub = NewHub()
	go wsHub.Run()
}

// NewHub creates a new WebSocket hub
func NewHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WebSocketMessage, 64),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the WebSocket hub
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			Logger.Info().Msg("Client connected to WebSocket")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				Logger.Info().Msg("Client disconnected from WebSocket")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastUpdate sends an update to all connected clients
func (h *WSHub) BroadcastUpdate(messageType string, data interface{}) {
	select {
	case h.broadcast <- WebSocketMessage{Type: messageType, Data: data}:
	default:
		// Channel is full, skip this update
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		Logger.Debug().Err(err).Msg("Error writing close message")
	}
}

// ServeWebSocket handles websocket requests from the peer. Each new client
// gets the current status of every projector before live updates.
func ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan WebSocketMessage, 256),
		hub:  wsHub,
	}
	for _, status := range registry.Statuses() {
		client.send <- WebSocketMessage{Type: "projector_status", Data: status}
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Error().Err(err).Msg("Error encoding response")
	}
}

// lookupProjector resolves the name query parameter, writing the error
// response itself when it cannot.
func lookupProjector(w http.ResponseWriter, r *http.Request) (*ProjectorHandle, bool) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "Projector name required", http.StatusBadRequest)
		return nil, false
	}
	projector, ok := registry.Get(name)
	if !ok {
		http.Error(w, "Unknown projector", http.StatusNotFound)
		return nil, false
	}
	return projector, true
}

func commandStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusAccepted
	case errors.Is(err, pjlink.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, pjlink.ErrNotConnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeCommandResult(w http.ResponseWriter, name string, err error) {
	result := commandResult{Projector: name, Status: "sent"}
	if err != nil {
		result.Status = "failed"
		result.Error = err.Error()
	}
	writeJSON(w, commandStatus(err), result)
}

// APISystemStatus returns the overall system status as JSON
func APISystemStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Bad Request Method", http.StatusMethodNotAllowed)
		return
	}
	status := SystemStatus{Projectors: registry.Statuses()}
	status.Total = len(status.Projectors)
	for _, p := range status.Projectors {
		if p.Connected {
			status.Connected++
		}
		if p.Power == pjlink.PowerOn.String() {
			status.PoweredOn++
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// APIProjectorDetail returns the status of one projector
func APIProjectorDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Bad Request Method", http.StatusMethodNotAllowed)
		return
	}
	projector, ok := lookupProjector(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projector.Status())
}

// APIProjectorPower switches a projector on or off: POST ?name=hall&on=true
func APIProjectorPower(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Bad Request Method", http.StatusMethodNotAllowed)
		return
	}
	projector, ok := lookupProjector(w, r)
	if !ok {
		return
	}
	on, err := parseSwitch(r.URL.Query().Get("on"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeCommandResult(w, projector.Name(), projector.SetPower(on))
}

// APIProjectorInput changes the selected input: POST ?name=hall&code=31
func APIProjectorInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Bad Request Method", http.StatusMethodNotAllowed)
		return
	}
	projector, ok := lookupProjector(w, r)
	if !ok {
		return
	}
	writeCommandResult(w, projector.Name(), projector.ChangeInput(r.URL.Query().Get("code")))
}
