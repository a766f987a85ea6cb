package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchCyclesTotal counts completed fetch cycles by outcome.
	FetchCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rolloutd_fetch_cycles_total",
		Help: "Completed rollout fetch cycles by result",
	}, []string{"result"})

	// ConfigFetchesTotal counts individual service-config downloads.
	ConfigFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rolloutd_config_fetches_total",
		Help: "Service-config downloads by result",
	}, []string{"result"})

	// TimersArmedTotal counts fetch timers armed by the scheduler.
	TimersArmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rolloutd_timers_armed_total",
		Help: "One-shot fetch timers armed",
	})

	// InstalledConfigs reports the size of the currently installed
	// traffic assignment.
	InstalledConfigs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rolloutd_installed_configs",
		Help: "Number of service configs in the installed assignment",
	})

	// LastInstallTimestamp reports when the last assignment was installed.
	LastInstallTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rolloutd_last_install_timestamp_seconds",
		Help: "Unix time of the last successful assignment install",
	})
)

// Fetch cycle results.
const (
	CycleSuccess      = "success"
	CycleUnchanged    = "rollout_unchanged"
	CycleRolloutError = "rollout_error"
	CycleDecodeError  = "decode_error"
	CycleConfigError  = "config_error"
)

// IncFetchCycle records the outcome of one fetch cycle.
func IncFetchCycle(result string) {
	FetchCyclesTotal.WithLabelValues(result).Inc()
}

// IncConfigFetch records the outcome of one service-config download.
func IncConfigFetch(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	ConfigFetchesTotal.WithLabelValues(result).Inc()
}

// IncTimerArmed records that the scheduler armed a fetch timer.
func IncTimerArmed() {
	TimersArmedTotal.Inc()
}

// ObserveInstall records a successful assignment install.
func ObserveInstall(configs int, at time.Time) {
	InstalledConfigs.Set(float64(configs))
	LastInstallTimestamp.Set(float64(at.Unix()))
}
