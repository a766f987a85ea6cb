package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/svclane/rolloutd/internal/config"
	"github.com/svclane/rolloutd/internal/httpserver"
	"github.com/svclane/rolloutd/internal/httpserver/deps"
	"github.com/svclane/rolloutd/internal/logger"
	"github.com/svclane/rolloutd/internal/metadata"
	"github.com/svclane/rolloutd/internal/rollout"
	"github.com/svclane/rolloutd/internal/snapshot"
	"github.com/svclane/rolloutd/internal/transport"
	"github.com/svclane/rolloutd/internal/version"
)

type App struct {
	cfg      *config.Config
	logger   logger.Logger
	server   *httpserver.Server
	store    *snapshot.Store
	fetcher  *transport.Client
	manager  *rollout.Manager   // nil with the fixed strategy
	detector *metadata.Detector // nil with the fixed strategy
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	fetcher := transport.NewClient(cfg.HTTPTimeout, nil)
	store := snapshot.NewStore()

	// Resolve the service identity. Instance metadata attributes fill in
	// what the server config left blank.
	if cfg.MetadataEnabled && (cfg.ServiceName == "" || cfg.ServiceConfigID == "") {
		mdCtx, cancel := context.WithTimeout(context.Background(), cfg.MetadataTimeout)
		attrs, err := metadata.NewClient(cfg.MetadataTimeout, cfg.MetadataBaseURL).Fetch(mdCtx)
		cancel()
		if err != nil {
			loggerClient.Warn("instance metadata unavailable", logger.Error(err))
		} else {
			if cfg.ServiceName == "" {
				cfg.ServiceName = attrs.ServiceName
			}
			if cfg.ServiceConfigID == "" {
				cfg.ServiceConfigID = attrs.ConfigID
			}
		}
	}
	if cfg.ServiceName == "" {
		loggerClient.Errorf("no service name in server config, environment, or instance metadata")
		os.Exit(1)
	}

	a := &App{
		cfg:     cfg,
		logger:  loggerClient,
		store:   store,
		fetcher: fetcher,
	}

	var checkTrigger chan struct{}
	if cfg.RolloutStrategy == config.StrategyManaged {
		checkTrigger = make(chan struct{}, 1)

		a.manager = rollout.NewManager(context.Background(), rollout.Options{
			ServiceName: cfg.ServiceName,
			BaseURL:     cfg.ManagementBaseURL,
			Window:      cfg.FetchThrottleWindow,
			Fetcher:     fetcher,
			Logger:      loggerClient,
			Install: func(asg rollout.Assignment) {
				store.Install(asg)
			},
		})

		a.detector = metadata.NewDetector(
			fetcher,
			a.manager,
			loggerClient,
			cfg.ManagementBaseURL,
			cfg.ServiceName,
			cfg.DetectInterval,
			checkTrigger,
		)
	}

	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		ServiceName:     cfg.ServiceName,
		RolloutStrategy: cfg.RolloutStrategy,
		Snapshot:        store,
		CheckTrigger:    checkTrigger,
	}

	a.server = httpserver.New(cfg, loggerClient, d)
	return a
}

func (a *App) Run() error {
	a.logger.Infof("Starting rolloutd v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("rolloutd %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)
	a.logger.Info("tracking service",
		logger.String("service_name", a.cfg.ServiceName),
		logger.String("strategy", a.cfg.RolloutStrategy))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch a.cfg.RolloutStrategy {
	case config.StrategyManaged:
		if err := a.detector.Start(ctx); err != nil {
			return fmt.Errorf("failed to start rollout detector: %w", err)
		}
		a.logger.Info("rollout detector started",
			logger.Duration("interval", a.cfg.DetectInterval),
			logger.Duration("throttle_window", a.cfg.FetchThrottleWindow))
	case config.StrategyFixed:
		if err := a.installFixed(ctx); err != nil {
			return fmt.Errorf("failed to install pinned service config: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	if a.detector != nil {
		a.detector.Stop()
	}
	if a.manager != nil {
		a.manager.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.logger.Info("rolloutd stopped cleanly")
	return nil
}

// installFixed downloads the pinned service config once and serves it at
// 100% traffic. No manager, no detector, no further fetches.
func (a *App) installFixed(ctx context.Context) error {
	if a.cfg.ServiceConfigID == "" {
		return fmt.Errorf("fixed strategy requires a service config id")
	}

	cf := rollout.NewConfigFetcher(a.fetcher, a.cfg.ManagementBaseURL, a.cfg.ServiceName)
	doc, err := cf.Fetch(ctx, a.cfg.ServiceConfigID)
	if err != nil {
		return err
	}

	a.store.Install(rollout.Assignment{
		RolloutID: a.cfg.ServiceConfigID,
		Configs:   []rollout.ConfigEntry{{Config: doc, Percent: 100}},
	})
	a.logger.Info("pinned service config installed",
		logger.String("config_id", a.cfg.ServiceConfigID))
	return nil
}
