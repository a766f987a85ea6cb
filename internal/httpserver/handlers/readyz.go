package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/svclane/rolloutd/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready     bool   `json:"ready"`
	RolloutID string `json:"rollout_id,omitempty"`
}

// Readyz reports ready once a complete traffic assignment has been
// installed. Until then the proxy has nothing to route with.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		_, ok := d.Snapshot.Current()
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(readyzResponse{Ready: false})
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(readyzResponse{
			Ready:     true,
			RolloutID: d.Snapshot.RolloutID(),
		})
	}
}
