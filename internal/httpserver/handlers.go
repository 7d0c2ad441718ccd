package httpserver

import (
	"encoding/json"
	"net/http"
	"time"
)

type statusResponse struct {
	Healthy   bool      `json:"healthy"`
	Ready     bool      `json:"ready"`
	Uptime    string    `json:"uptime"`
	StartTime time.Time `json:"startTime"`
	UptimeSec float64   `json:"uptimeSeconds"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if s.inShutdown.Load() || !s.watch.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.watch.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	uptime := time.Since(s.startTime)

	response := statusResponse{
		Healthy:   s.watch.Healthy(),
		Ready:     s.watch.Ready(),
		Uptime:    uptime.Round(time.Second).String(),
		StartTime: s.startTime,
		UptimeSec: uptime.Seconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode status response")
	}
}
