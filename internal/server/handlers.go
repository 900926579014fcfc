package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/hubgate/internal/catalog"
	"github.com/HerbHall/hubgate/internal/control"
	"github.com/HerbHall/hubgate/internal/version"
)

// snapshot fetches and normalizes the current device catalog. Nothing is
// cached: every request sees the hub's latest state.
func (s *Server) snapshot(r *http.Request) ([]catalog.Device, error) {
	accessories, err := s.reader.FetchAccessories(r.Context())
	if err != nil {
		return nil, err
	}
	return s.catalog.Normalize(accessories), nil
}

// handleHealth reports liveness. It never errors: an unreachable hub
// degrades the status instead.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	deviceCount := 0

	devices, err := s.snapshot(r)
	if err != nil {
		s.logger.Warn("health probe could not reach hub", zap.Error(err))
		status = "degraded"
	} else {
		deviceCount = len(devices)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"plugin":    "hubgate",
		"version":   version.Short(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"devices":   deviceCount,
	})
}

// handleListDevices returns the full normalized catalog.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.snapshot(r)
	if err != nil {
		s.logger.Error("device snapshot failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream hub unavailable")
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleDevicesByType returns the catalog filtered by canonical type.
func (s *Server) handleDevicesByType(w http.ResponseWriter, r *http.Request) {
	deviceType := r.PathValue("type")
	if !catalog.ValidType(deviceType) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown device type %q", deviceType))
		return
	}

	devices, err := s.snapshot(r)
	if err != nil {
		s.logger.Error("device snapshot failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream hub unavailable")
		return
	}
	writeJSON(w, http.StatusOK, catalog.FilterByType(devices, catalog.DeviceType(deviceType)))
}

// handleGetDevice returns a single device or 404.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	devices, err := s.snapshot(r)
	if err != nil {
		s.logger.Error("device snapshot failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream hub unavailable")
		return
	}

	device, err := catalog.Find(devices, id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("device %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// handleControlOne executes one action against one device.
func (s *Server) handleControlOne(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		Action string `json:"action"`
		Value  any    `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	result, err := s.dispatcher.ControlOne(r.Context(), control.Request{
		ID:     id,
		Action: body.Action,
		Value:  body.Value,
	})
	if err != nil {
		var vErr *control.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Message)
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleControlBatch executes a batch of control requests. Per-device
// failures land in the result array; the response itself is always 200
// once the batch shape validates.
func (s *Server) handleControlBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Devices []control.Request `json:"devices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.Devices) == 0 {
		writeError(w, http.StatusBadRequest, "devices is required")
		return
	}

	results := s.dispatcher.ControlBatch(r.Context(), body.Devices)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleListAudit returns recent control audit entries.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store not available")
		return
	}

	deviceID := r.URL.Query().Get("device_id")
	limit := parseLimit(r, 100)

	entries, err := s.audit.List(r.Context(), deviceID, limit)
	if err != nil {
		s.logger.Warn("failed to list audit entries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Helpers ---

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the fixed {error, message} error shape.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}

// parseLimit extracts a limit query parameter with a default value.
func parseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}
