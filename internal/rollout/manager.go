package rollout

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/svclane/rolloutd/internal/clock"
	"github.com/svclane/rolloutd/internal/logger"
	"github.com/svclane/rolloutd/internal/metrics"
	"github.com/svclane/rolloutd/internal/transport"
)

// DefaultFetchThrottleWindow bounds how often a fetch cycle may start.
const DefaultFetchThrottleWindow = 5 * time.Minute

// InstallFunc receives a complete weighted assignment. It is called at most
// once per successful fetch cycle and never with a partial set; a failed
// cycle is signaled by the absence of a call.
type InstallFunc func(a Assignment)

// Options configures a Manager. ServiceName, Fetcher and Install are
// required; the rest default to production values.
type Options struct {
	ServiceName string
	BaseURL     string        // control plane base URL, defaults to DefaultManagementBaseURL
	Window      time.Duration // fetch throttle window, defaults to DefaultFetchThrottleWindow
	Fetcher     transport.Fetcher
	Clock       clock.Clock
	Rand        *rand.Rand // jitter source, seeded per process by default
	Logger      logger.Logger
	Install     InstallFunc
}

// Manager keeps the proxy's service-configuration set synchronized with the
// control plane. External watchers feed it "latest rollout id" signals;
// it coalesces them into at most one throttled, jittered fetch cycle per
// window and publishes complete assignments through the install callback.
//
// All state transitions happen under one mutex; HTTP fetches run outside it.
type Manager struct {
	log     logger.Logger
	clk     clock.Clock
	fetcher transport.Fetcher
	configs *ConfigFetcher
	install InstallFunc

	serviceName string
	baseURL     string
	window      time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu               sync.Mutex
	rng              *rand.Rand
	currentRolloutID string
	pendingRolloutID string
	nextWindowStart  time.Time
	timerArmed       bool
	timer            clock.Timer
	signaled         bool // set by the first SetLatestRolloutID, seals SetCurrentRolloutID
	stopped          bool
}

// NewManager builds a Manager. The context bounds every fetch the manager
// issues; cancelling it (or calling Stop) drops in-flight work.
func NewManager(ctx context.Context, opts Options) *Manager {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultManagementBaseURL
	}
	if opts.Window <= 0 {
		opts.Window = DefaultFetchThrottleWindow
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	mctx, cancel := context.WithCancel(ctx)
	return &Manager{
		log:         opts.Logger,
		clk:         opts.Clock,
		fetcher:     opts.Fetcher,
		configs:     NewConfigFetcher(opts.Fetcher, opts.BaseURL, opts.ServiceName),
		install:     opts.Install,
		serviceName: opts.ServiceName,
		baseURL:     opts.BaseURL,
		window:      opts.Window,
		ctx:         mctx,
		cancel:      cancel,
		rng:         opts.Rand,
	}
}

// SetCurrentRolloutID seeds the installed rollout id at startup so the first
// matching signal becomes a no-op. Must not be called once signals flow.
func (m *Manager) SetCurrentRolloutID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signaled {
		m.log.Warn("ignoring rollout id seed after first signal",
			logger.String("rollout_id", id))
		return
	}
	m.currentRolloutID = id
}

// CurrentRolloutID returns the rollout id of the most recently installed
// assignment, or empty before the first success.
func (m *Manager) CurrentRolloutID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentRolloutID
}

// SetLatestRolloutID records that the control plane advertises id as the
// latest rollout. now is caller-supplied so watchers and tests share one
// clock.
//
// The call arms at most one one-shot fetch timer per throttle window, with a
// uniformly random delay in [0, window) to spread fleet load. Repeated
// signals while a timer is armed only update the pending id; signals inside
// an elapsed window are deferred to the next one.
func (m *Manager) SetLatestRolloutID(id string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.signaled = true
	if m.stopped {
		return
	}

	if id == m.currentRolloutID && !m.timerArmed {
		return
	}

	m.pendingRolloutID = id

	if m.timerArmed {
		// The armed fetch will observe the updated pending id.
		return
	}

	if now.Before(m.nextWindowStart) {
		// Inside the window of the last cycle. The id stays pending and a
		// later signal past the boundary arms the next fetch.
		return
	}

	delay := time.Duration(m.rng.Int63n(int64(m.window)))
	m.nextWindowStart = now.Add(m.window)
	m.timerArmed = true
	m.timer = m.clk.AfterFunc(delay, m.runCycle)
	metrics.IncTimerArmed()

	m.log.Info("rollout fetch scheduled",
		logger.String("latest_rollout_id", id),
		logger.Duration("delay", delay))
}

// Stop cancels the armed timer, if any, and drops in-flight fetches. The
// install callback is never invoked after Stop returns.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	t := m.timer
	m.timer = nil
	m.timerArmed = false
	m.mu.Unlock()

	if t != nil {
		t.Stop()
	}
	m.cancel()
}

// runCycle is the timer continuation: one complete fetch cycle. Failure at
// any step aborts the cycle without touching installed state; the next
// signal past the window boundary retries from scratch.
func (m *Manager) runCycle() {
	m.mu.Lock()
	m.timerArmed = false
	m.timer = nil
	if m.stopped {
		m.mu.Unlock()
		return
	}
	current := m.currentRolloutID
	pending := m.pendingRolloutID
	m.mu.Unlock()

	m.log.Debug("starting rollout fetch cycle",
		logger.String("pending_rollout_id", pending),
		logger.String("current_rollout_id", current))

	ro, ok := m.fetchRollout()
	if !ok {
		return
	}

	if ro.ID == current {
		m.log.Debug("rollout id unchanged, skipping install",
			logger.String("rollout_id", ro.ID))
		metrics.IncFetchCycle(metrics.CycleUnchanged)
		return
	}

	asg, ok := m.fetchConfigs(ro)
	if !ok {
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.currentRolloutID = ro.ID
	m.mu.Unlock()

	metrics.IncFetchCycle(metrics.CycleSuccess)
	metrics.ObserveInstall(len(asg.Configs), m.clk.Now())
	m.log.Info("installing rollout",
		logger.String("rollout_id", ro.ID),
		logger.Int("configs", len(asg.Configs)))

	m.install(*asg)
}

// fetchRollout downloads and decodes the active rollout.
func (m *Manager) fetchRollout() (*Rollout, bool) {
	url := RolloutsURL(m.baseURL, m.serviceName)
	status, body, err := m.fetcher.Get(m.ctx, url)
	if err != nil || status != http.StatusOK {
		m.log.Warn("rollouts fetch failed",
			logger.Int("status", status),
			logger.Error(err))
		metrics.IncFetchCycle(metrics.CycleRolloutError)
		return nil, false
	}

	ro, err := DecodeRollouts(body)
	if err != nil {
		m.log.Warn("rollouts response invalid", logger.Error(err))
		metrics.IncFetchCycle(metrics.CycleDecodeError)
		return nil, false
	}
	return ro, true
}

// fetchConfigs downloads every referenced service config concurrently and
// assembles the assignment. All downloads must succeed or nothing is
// returned, a half-populated set is never installed.
func (m *Manager) fetchConfigs(ro *Rollout) (*Assignment, bool) {
	entries := make([]ConfigEntry, len(ro.Traffic))

	g, ctx := errgroup.WithContext(m.ctx)
	for i, share := range ro.Traffic {
		g.Go(func() error {
			doc, err := m.configs.Fetch(ctx, share.ConfigID)
			metrics.IncConfigFetch(err == nil)
			if err != nil {
				return err
			}
			entries[i] = ConfigEntry{Config: doc, Percent: share.Percent}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		m.log.Warn("service config fetch failed, rollout not installed",
			logger.String("rollout_id", ro.ID),
			logger.Error(err))
		metrics.IncFetchCycle(metrics.CycleConfigError)
		return nil, false
	}

	return &Assignment{RolloutID: ro.ID, Configs: entries}, true
}
