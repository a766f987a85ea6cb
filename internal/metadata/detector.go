package metadata

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/svclane/rolloutd/internal/logger"
	"github.com/svclane/rolloutd/internal/rollout"
	"github.com/svclane/rolloutd/internal/transport"
)

// Notifier receives latest-rollout-id signals. Satisfied by
// *rollout.Manager; throttling and install semantics live there, the
// detector only reports what the control plane advertises.
type Notifier interface {
	SetLatestRolloutID(id string, now time.Time)
}

// Detector periodically asks the control plane for the newest rollout id of
// the managed service and forwards changes to the Notifier. It is the
// external watcher that drives the rollout manager.
type Detector struct {
	fetcher     transport.Fetcher
	notifier    Notifier
	logger      logger.Logger
	baseURL     string
	serviceName string
	interval    time.Duration

	lastSeen      string
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewDetector creates a detector polling every interval. manualTrigger may
// be nil; when provided, a send on it forces an immediate check.
func NewDetector(
	f transport.Fetcher,
	notifier Notifier,
	log logger.Logger,
	baseURL string,
	serviceName string,
	interval time.Duration,
	manualTrigger chan struct{},
) *Detector {
	if baseURL == "" {
		baseURL = rollout.DefaultManagementBaseURL
	}
	return &Detector{
		fetcher:       f,
		notifier:      notifier,
		logger:        log,
		baseURL:       baseURL,
		serviceName:   serviceName,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic detection loop. The first check runs
// immediately so a fresh instance converges without waiting one interval.
func (d *Detector) Start(ctx context.Context) error {
	d.Check(ctx)

	ticker := time.NewTicker(d.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Check(ctx)
			case <-d.manualTrigger:
				d.logger.Info("manual rollout check triggered")
				d.Check(ctx)
			case <-d.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the detection loop.
func (d *Detector) Stop() {
	close(d.stopCh)
}

// Check fetches the newest rollout id once and signals the notifier when it
// differs from the last observation. Errors are logged and retried on the
// next tick.
func (d *Detector) Check(ctx context.Context) {
	id, err := d.fetchLatestRolloutID(ctx)
	if err != nil {
		d.logger.Warn("failed to check latest rollout id", logger.Error(err))
		return
	}

	if id == d.lastSeen {
		return
	}
	d.lastSeen = id

	d.logger.Info("latest rollout id changed",
		logger.String("rollout_id", id))
	d.notifier.SetLatestRolloutID(id, time.Now())
}

func (d *Detector) fetchLatestRolloutID(ctx context.Context) (string, error) {
	url := rollout.RolloutsURL(d.baseURL, d.serviceName)
	status, body, err := d.fetcher.Get(ctx, url)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("rollouts endpoint returned status %d", status)
	}

	ro, err := rollout.DecodeRollouts(body)
	if err != nil {
		return "", err
	}
	return ro.ID, nil
}
