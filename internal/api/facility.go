package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-occupancy/internal/automation"
	"github.com/nerrad567/gray-logic-occupancy/internal/facility"
)

// occupancyRequest is the body of PUT /rooms/{id}/occupancy.
type occupancyRequest struct {
	Occupied *bool  `json:"occupied"`
	Source   string `json:"source,omitempty"`
}

// applianceStateRequest is the body of PUT /appliances/{id}/state.
type applianceStateRequest struct {
	State facility.PowerState `json:"state"`
}

// settingsPatchRequest is the body of PATCH /settings. Falsy values,
// including an empty autoShutdownTime, leave the field unchanged.
type settingsPatchRequest struct {
	InactivityMinutes *int                  `json:"inactivityMinutes"`
	AutoShutdownTime  *string               `json:"autoShutdownTime"`
	Sensitivity       *facility.Sensitivity `json:"sensitivity"`
	WeekendMode       *facility.WeekendMode `json:"weekendMode"`
}

func (r settingsPatchRequest) toPatch() (facility.SettingsPatch, error) {
	patch := facility.SettingsPatch{
		InactivityMinutes: r.InactivityMinutes,
		Sensitivity:       r.Sensitivity,
		WeekendMode:       r.WeekendMode,
	}
	if r.AutoShutdownTime != nil && *r.AutoShutdownTime != "" {
		ct, err := facility.ParseClockTime(*r.AutoShutdownTime)
		if err != nil {
			return patch, err
		}
		patch.AutoShutdownTime = &ct
	}
	return patch, nil
}

func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": snap.Rooms,
		"count": len(snap.Rooms),
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	room, err := s.engine.Room(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleSetOccupancy(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req occupancyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Occupied == nil {
		writeValidationError(w, "occupied is required")
		return
	}
	source := automation.SourceManual
	switch automation.Source(req.Source) {
	case "", automation.SourceManual:
	case automation.SourceSensor:
		source = automation.SourceSensor
	default:
		writeValidationError(w, "source must be manual or sensor")
		return
	}

	room, err := s.engine.SetOccupancy(id, *req.Occupied, source)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleSetApplianceState(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req applianceStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	appliance, err := s.engine.ControlAppliance(id, req.State, automation.SourceManual)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appliance)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Settings())
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	settings, err := s.engine.UpdateSettings(patch)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleEmergencyShutdown(w http.ResponseWriter, _ *http.Request) {
	s.engine.EmergencyShutdown(automation.SourceManual)
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"stats":  snap.Stats,
	})
}

// writeEngineError maps engine errors to HTTP responses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, automation.ErrRoomNotFound):
		writeNotFound(w, "room not found")
	case errors.Is(err, automation.ErrApplianceNotFound):
		writeNotFound(w, "appliance not found")
	case errors.Is(err, automation.ErrInvalidPowerState):
		writeValidationError(w, "state must be on or off")
	case errors.Is(err, facility.ErrInvalidSettings):
		writeValidationError(w, err.Error())
	default:
		s.logger.Error("engine request failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}

// parseID reads a positive integer {id} URL parameter, writing a 400 if it
// is malformed.
func parseID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid id")
		return 0, false
	}
	return id, true
}
