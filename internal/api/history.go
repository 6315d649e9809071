package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/automation"
	"github.com/nerrad567/gray-logic-occupancy/internal/history"
)

const maxHistoryLimit = 200

// handleListHistory returns automation events newest first.
//
// Query parameters: room_id, type, since (RFC 3339), limit (1-200).
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "automation history is disabled")
		return
	}

	filter, err := parseHistoryFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	events, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing automation history", "error", err)
		writeInternalError(w, "failed to load automation history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func parseHistoryFilter(r *http.Request) (history.Filter, error) {
	q := r.URL.Query()
	var f history.Filter

	if v := q.Get("room_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			return f, fmt.Errorf("invalid room_id")
		}
		f.RoomID = &id
	}
	if v := q.Get("type"); v != "" {
		f.Type = automation.EventType(v)
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid since timestamp")
		}
		f.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > maxHistoryLimit {
			return f, fmt.Errorf("limit must be between 1 and %d", maxHistoryLimit)
		}
		f.Limit = limit
	}
	return f, nil
}
