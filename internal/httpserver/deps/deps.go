package deps

import (
	"time"

	"github.com/svclane/rolloutd/internal/logger"
	"github.com/svclane/rolloutd/internal/snapshot"
)

type Deps struct {
	Logger          logger.Logger
	StartTime       time.Time
	Version         string
	Commit          string
	BuildDate       string
	GoVersion       string
	TimeNow         func() time.Time // for testing, defaults to time.Now
	ServiceName     string           // managed API service name
	RolloutStrategy string           // "managed" or "fixed"
	Snapshot        *snapshot.Store  // installed traffic assignment
	CheckTrigger    chan struct{}    // channel to force an immediate rollout check (nil with fixed strategy)
}
