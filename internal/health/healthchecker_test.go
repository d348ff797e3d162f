package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeDep struct {
	name string
	up   atomic.Bool
}

func (f *fakeDep) Name() string                               { return f.name }
func (f *fakeDep) IsHealthy() bool                            { return f.up.Load() }
func (f *fakeDep) Start(ctx context.Context, _ time.Duration) {}

func TestServiceHealthTracksDependencies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := &fakeDep{name: "store"}
	db.up.Store(true)

	svc := NewServiceHealthChecker(zerolog.Nop(), db)
	if svc.IsHealthy() {
		t.Fatalf("must start unhealthy before the first evaluation")
	}

	go svc.Start(ctx, 10*time.Millisecond)
	waitTrue(t, svc.IsHealthy)

	db.up.Store(false)
	waitTrue(t, func() bool { return !svc.IsHealthy() })

	db.up.Store(true)
	waitTrue(t, svc.IsHealthy)
}

func waitTrue(t *testing.T, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}
