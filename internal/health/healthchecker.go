// Package health folds dependency probes into the single service health
// flag served by the health endpoint.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker is a periodically evaluated dependency probe. The store
// checker is the only dependency wired today; the feed generator proxy is
// stateless and carries none.
type HealthChecker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// HealthPinger is implemented by dependencies that expose a liveness probe.
// HealthPing returns nil when the dependency is reachable.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}

// ServiceHealthChecker reports healthy only while every dependency does.
// It starts unhealthy until the first evaluation.
type ServiceHealthChecker struct {
	healthy atomic.Bool
	deps    []HealthChecker
	log     zerolog.Logger
}

func NewServiceHealthChecker(log zerolog.Logger, deps ...HealthChecker) *ServiceHealthChecker {
	return &ServiceHealthChecker{deps: deps, log: log}
}

// IsHealthy returns the cached service health flag.
func (h *ServiceHealthChecker) IsHealthy() bool { return h.healthy.Load() }

// Start re-evaluates dependency health on the given interval until ctx is
// done. Transitions are logged with the names of the failing dependencies.
func (h *ServiceHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	was := false
	eval := func() {
		var down []string
		for _, dep := range h.deps {
			if !dep.IsHealthy() {
				down = append(down, dep.Name())
			}
		}
		up := len(down) == 0
		h.healthy.Store(up)
		if up != was {
			if up {
				h.log.Info().Msg("service health: UP")
			} else {
				h.log.Error().Strs("down", down).Msg("service health: DOWN")
			}
			was = up
		}
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}
