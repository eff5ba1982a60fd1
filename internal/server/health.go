package server

import (
	"encoding/json"
	"net/http"
)

// HealthHandler reports this server's identity, rank and current
// coordinator view — enough for an operator or load balancer probe to
// tell a live server from a wedged one.
func (s *Server) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.electionMu.Lock()
		body := map[string]any{
			"status":      "ok",
			"name":        s.Name,
			"rank":        s.rank,
			"coordinator": s.coordinator,
			"clock":       s.clk.Value(),
		}
		s.electionMu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
}
