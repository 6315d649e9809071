package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Get("/state", s.handleGetState)

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", s.handleListRooms)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRoom)
				r.Put("/occupancy", s.handleSetOccupancy)
			})
		})

		r.Put("/appliances/{id}/state", s.handleSetApplianceState)

		r.Get("/settings", s.handleGetSettings)
		r.Patch("/settings", s.handlePatchSettings)

		r.Post("/emergency-shutdown", s.handleEmergencyShutdown)

		r.Get("/history", s.handleListHistory)

		r.Get("/ws", s.handleWebSocket)
	})

	if s.panel != nil {
		r.Handle("/*", s.panel)
	}

	return r
}

// handleHealth returns liveness plus the engine's online flag.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()
	status := "ok"
	code := http.StatusOK
	if !snap.SystemStatus.Online {
		status = "offline"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"online":  snap.SystemStatus.Online,
	})
}
