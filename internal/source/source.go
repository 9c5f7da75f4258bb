// Package source defines the boundary to the usage-metering backend. The
// dashboard never talks to provider APIs itself; a local agent process
// aggregates them and serves snapshots over a unix socket.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/janekbaraniewski/usagesync/internal/core"
)

var (
	// ErrBackendUnreachable marks a network/process-level failure reaching
	// the agent. Retried by the normal polling cadence, never fatal.
	ErrBackendUnreachable = errors.New("usage backend unreachable")

	// ErrNoDataYet marks an empty snapshot list: the agent is up but has not
	// finished its first provider round. Distinct from "zero providers".
	ErrNoDataYet = errors.New("no usage data yet")
)

// UsageSource fetches the current snapshot list for all configured providers.
type UsageSource interface {
	// Fetch returns all provider snapshots. An empty list means "no data
	// yet", not "zero providers".
	Fetch(ctx context.Context, forceRefresh bool) ([]core.UsageSnapshot, error)

	// IsBackendRunning, Start and WaitUntilReady are used only during the
	// orchestrator's startup phase to bring up the agent before the first poll.
	IsBackendRunning(ctx context.Context) bool
	Start() error
	WaitUntilReady(ctx context.Context, timeout time.Duration) error
}
