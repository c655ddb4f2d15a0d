package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bballdavis/wattbox-go/protocol"
	"github.com/bballdavis/wattbox-go/wattbox"
)

// Server handles incoming HTTP requests for interacting with the
// connected WattBox device
type Server struct {
	Logger *slog.Logger
	Client *wattbox.Client
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /device", s.handleDevice)
	mux.HandleFunc("GET /outlets", s.handleOutlets)
	mux.HandleFunc("POST /outlets/{outlet}", s.handleOutletSet)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)

}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleDevice returns the full aggregated device state
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	includePower := r.URL.Query().Get("power") != "false"

	info, err := s.Client.DeviceInfo(r.Context(), includePower)
	if err != nil {
		s.Logger.Error("Failed to collect device info", "error", err)
		s.sendError(w, err.Error(), deviceStatusCode(err))
		return
	}

	s.sendJSON(w, info)
}

// handleOutlets returns every outlet's on/off state and name
func (s *Server) handleOutlets(w http.ResponseWriter, r *http.Request) {
	states, err := s.Client.OutletStatus(r.Context())
	if err != nil {
		s.Logger.Error("Failed to query outlet status", "error", err)
		s.sendError(w, err.Error(), deviceStatusCode(err))
		return
	}

	names, err := s.Client.OutletNames(r.Context())
	if err != nil {
		s.Logger.Warn("Failed to query outlet names", "error", err)
		names = nil
	}

	type OutletResponse struct {
		Index int    `json:"index"`
		Name  string `json:"name"`
		On    bool   `json:"on"`
	}

	outlets := make([]OutletResponse, len(states))
	for i, on := range states {
		name := "Outlet " + strconv.Itoa(i+1)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		outlets[i] = OutletResponse{Index: i + 1, Name: name, On: on}
	}

	s.sendJSON(w, outlets)
}

// handleOutletSet applies an action (ON, OFF, TOGGLE, RESET) to one outlet
func (s *Server) handleOutletSet(w http.ResponseWriter, r *http.Request) {
	outlet, err := strconv.Atoi(r.PathValue("outlet"))
	if err != nil || outlet < 0 {
		s.sendError(w, "invalid outlet number", http.StatusBadRequest)
		return
	}

	type OutletSetRequest struct {
		Action       string `json:"action"`
		DelaySeconds int    `json:"delay_seconds"`
	}

	var req OutletSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	action := protocol.Action(req.Action)
	if !protocol.ValidAction(action) {
		s.sendError(w, "action must be one of ON, OFF, TOGGLE, RESET", http.StatusBadRequest)
		return
	}

	delay := time.Duration(req.DelaySeconds) * time.Second
	if err := s.Client.SetOutlet(r.Context(), outlet, action, delay); err != nil {
		s.Logger.Error("Failed to set outlet", "outlet", outlet, "action", req.Action, "error", err)
		s.sendError(w, err.Error(), deviceStatusCode(err))
		return
	}

	s.Logger.Info("Outlet action applied", "outlet", outlet, "action", req.Action)
	w.WriteHeader(http.StatusOK)
}

// deviceStatusCode maps client errors to HTTP status codes
func deviceStatusCode(err error) int {
	var cmdErr *wattbox.CommandError
	switch {
	case errors.As(err, &cmdErr):
		return http.StatusBadRequest
	case errors.Is(err, wattbox.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, wattbox.ErrClosed), errors.Is(err, wattbox.ErrNotConnected):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
