package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/svclane/rolloutd/internal/httpserver/deps"
)

type configSummary struct {
	Percent int `json:"percent"`
	Bytes   int `json:"bytes"`
}

type rolloutResponse struct {
	ServiceName string          `json:"service_name"`
	Strategy    string          `json:"strategy"`
	RolloutID   string          `json:"rollout_id,omitempty"`
	InstalledAt string          `json:"installed_at,omitempty"`
	Configs     []configSummary `json:"configs,omitempty"`
}

// Rollout reports the installed traffic assignment. The documents
// themselves are opaque and potentially large, so only sizes are exposed.
func Rollout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		resp := rolloutResponse{
			ServiceName: d.ServiceName,
			Strategy:    d.RolloutStrategy,
		}

		if asg, ok := d.Snapshot.Current(); ok {
			resp.RolloutID = asg.RolloutID
			resp.InstalledAt = d.Snapshot.InstalledAt().Format(time.RFC3339)
			for _, c := range asg.Configs {
				resp.Configs = append(resp.Configs, configSummary{
					Percent: c.Percent,
					Bytes:   len(c.Config),
				})
			}
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
