package handlers

import (
	"net/http"

	"github.com/svclane/rolloutd/internal/httpserver/deps"
	"github.com/svclane/rolloutd/internal/logger"
)

// Check forces an immediate rollout-id check instead of waiting for the
// next detector tick. The throttle window still applies downstream.
func Check(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.CheckTrigger == nil {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte("rollout checks disabled (fixed strategy)\n"))
			return
		}

		select {
		case d.CheckTrigger <- struct{}{}:
			d.Logger.Info("manual rollout check triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("rollout check triggered\n"))
		default:
			d.Logger.Warn("rollout check already pending",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("rollout check already pending\n"))
		}
	}
}
