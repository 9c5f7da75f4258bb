// Package syncer owns the refresh cadence: a bounded cold-start scan right
// after activation, steady interval polling, forced refreshes, and an
// immediate refresh on resume from suspend. All paths funnel through a single
// refresh method guarded by a single-flight flag.
package syncer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/janekbaraniewski/usagesync/internal/bus"
	"github.com/janekbaraniewski/usagesync/internal/config"
	"github.com/janekbaraniewski/usagesync/internal/core"
	"github.com/janekbaraniewski/usagesync/internal/notify"
	"github.com/janekbaraniewski/usagesync/internal/source"
)

type State int

const (
	StateIdle State = iota
	StateColdStart
	StateSteady
	StateRefreshing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateColdStart:
		return "cold_start"
	case StateSteady:
		return "steady"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type StatusSeverity int

const (
	StatusInfo StatusSeverity = iota
	StatusWarn
	StatusError
)

// StatusFunc receives both transient progress text and terminal error text.
type StatusFunc func(message string, severity StatusSeverity)

// ApplyFunc delivers a fresh snapshot list plus the preferences it was
// fetched under. The caller is responsible for marshalling the call back onto
// the UI goroutine (program.Send in the dashboard wiring).
type ApplyFunc func(snaps []core.UsageSnapshot, prefs config.Preferences)

// Recorder persists successful polls; satisfied by history.Store.
type Recorder interface {
	RecordPoll(ctx context.Context, snaps []core.UsageSnapshot) error
}

type Options struct {
	ColdStartAttempts int           // default 30
	ColdStartInterval time.Duration // default 2s
	ReadyTimeout      time.Duration // agent bring-up budget, default 15s
}

func (o Options) withDefaults() Options {
	if o.ColdStartAttempts <= 0 {
		o.ColdStartAttempts = 30
	}
	if o.ColdStartInterval <= 0 {
		o.ColdStartInterval = 2 * time.Second
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = 15 * time.Second
	}
	return o
}

type Orchestrator struct {
	source  source.UsageSource
	store   config.Store
	machine *notify.Machine
	apply   ApplyFunc
	status  StatusFunc
	opts    Options

	signals  *bus.Bus
	recorder Recorder

	mu        sync.Mutex
	state     State
	inFlight  bool
	snapshots []core.UsageSnapshot

	force chan bool

	// interval yields the steady polling interval; defaults to the
	// preference-derived value and is replaceable in tests.
	interval func() time.Duration
}

func New(
	src source.UsageSource,
	store config.Store,
	machine *notify.Machine,
	apply ApplyFunc,
	status StatusFunc,
	opts Options,
) *Orchestrator {
	o := &Orchestrator{
		source:  src,
		store:   store,
		machine: machine,
		apply:   apply,
		status:  status,
		opts:    opts.withDefaults(),
		state:   StateIdle,
		force:   make(chan bool, 1),
	}
	o.interval = o.refreshInterval
	return o
}

// SetSignals wires the event bus; the orchestrator subscribes to resume and
// config topics while running and disposes its subscriptions on exit.
func (o *Orchestrator) SetSignals(b *bus.Bus) { o.signals = b }

// SetRecorder wires an optional poll-history recorder.
func (o *Orchestrator) SetRecorder(r Recorder) { o.recorder = r }

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Snapshots() []core.UsageSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]core.UsageSnapshot, len(o.snapshots))
	copy(out, o.snapshots)
	return out
}

// ForceRefresh requests an immediate refresh. Requests while one is already
// pending are dropped, not queued.
func (o *Orchestrator) ForceRefresh() {
	select {
	case o.force <- true:
	default:
	}
}

// Run executes the orchestrator until the context is cancelled: agent
// bring-up, cold-start scan, then the steady polling loop. It never returns
// an error to the caller; failures surface through the status sink.
func (o *Orchestrator) Run(ctx context.Context) {
	o.setState(StateColdStart)
	o.bringUpBackend(ctx)

	ok := o.coldStart(ctx)

	// Forced refreshes that arrived during the cold-start scan are dropped,
	// not queued; the scan was already polling as fast as allowed.
	select {
	case <-o.force:
	default:
	}

	if ok {
		o.setState(StateSteady)
	} else {
		if ctx.Err() != nil {
			return
		}
		o.setState(StateFailed)
		o.emitStatus("No usage data yet. Try refreshing.", StatusError)
	}

	o.steadyLoop(ctx)
}

func (o *Orchestrator) bringUpBackend(ctx context.Context) {
	if o.source.IsBackendRunning(ctx) {
		return
	}
	o.emitStatus("Starting usage agent…", StatusInfo)
	if err := o.source.Start(); err != nil {
		// The cold-start scan below keeps retrying either way.
		o.emitStatus(fmt.Sprintf("Agent start failed: %v", err), StatusWarn)
		return
	}
	if err := o.source.WaitUntilReady(ctx, o.opts.ReadyTimeout); err != nil {
		o.emitStatus(fmt.Sprintf("Agent not ready: %v", err), StatusWarn)
	}
}

// coldStart polls rapidly until the first non-empty snapshot list arrives or
// the attempt budget is exhausted.
func (o *Orchestrator) coldStart(ctx context.Context) bool {
	attempts := o.opts.ColdStartAttempts
	ticker := time.NewTicker(o.opts.ColdStartInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= attempts; attempt++ {
		if o.refresh(ctx, true) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if attempt == attempts {
			break
		}
		o.emitStatus(fmt.Sprintf("Waiting for data… (%d/%d)", attempt, attempts), StatusInfo)
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return false
}

func (o *Orchestrator) steadyLoop(ctx context.Context) {
	interval := o.interval()
	var ticker *time.Ticker
	var tickC <-chan time.Time
	if interval > 0 {
		ticker = time.NewTicker(interval)
		tickC = ticker.C
		defer ticker.Stop()
	}

	resumeCh, disposeResume := o.subscribe(bus.TopicResume)
	defer disposeResume()
	configCh, disposeConfig := o.subscribe(bus.TopicConfig)
	defer disposeConfig()

	for {
		select {
		case <-ctx.Done():
			return

		case <-tickC:
			o.runRefresh(ctx, false)

		case forced := <-o.force:
			o.runRefresh(ctx, forced)

		case _, ok := <-resumeCh:
			if !ok {
				resumeCh = nil
				continue
			}
			// Wall-clock time while suspended is unreliable for interval
			// tracking: refresh immediately and restart the timer phase.
			o.runRefresh(ctx, true)
			if ticker != nil {
				ticker.Reset(interval)
			}

		case _, ok := <-configCh:
			if !ok {
				configCh = nil
				continue
			}
		}

		if next := o.interval(); next != interval {
			interval = next
			if ticker != nil {
				ticker.Stop()
				ticker = nil
				tickC = nil
			}
			if interval > 0 {
				ticker = time.NewTicker(interval)
				tickC = ticker.C
			}
		}
	}
}

func (o *Orchestrator) runRefresh(ctx context.Context, forced bool) {
	o.setState(StateRefreshing)
	ok := o.refresh(ctx, forced)

	o.mu.Lock()
	hasData := len(o.snapshots) > 0
	o.mu.Unlock()

	switch {
	case ok, hasData:
		// A failed refresh with a last-known-good list stays on screen.
		o.setState(StateSteady)
	default:
		o.setState(StateFailed)
	}
}

// refresh is the single funnel every polling path goes through. It reloads
// settings (picking up out-of-band edits), fetches, and on success replaces
// the cached list and runs the notification + apply pipeline. On failure the
// previous snapshot stays displayed. The in-flight flag guarantees
// single-flight; a competing call returns false immediately.
func (o *Orchestrator) refresh(ctx context.Context, forced bool) bool {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return false
	}
	o.inFlight = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	prefs, err := o.store.LoadPreferences()
	if err != nil {
		log.Printf("syncer: load preferences: %v", err)
		prefs = config.DefaultPreferences()
	}
	providerCfgs, err := o.store.LoadProviderConfigs()
	if err != nil {
		log.Printf("syncer: load provider configs: %v", err)
	}

	snaps, err := o.source.Fetch(ctx, forced)
	if err != nil {
		o.emitStatus(fmt.Sprintf("Refresh failed: %v", err), StatusError)
		return false
	}
	if len(snaps) == 0 {
		// Backend is up but has nothing yet; keep whatever is on screen.
		log.Printf("syncer: %v", source.ErrNoDataYet)
		return false
	}

	o.mu.Lock()
	o.snapshots = snaps
	o.mu.Unlock()

	o.machine.Observe(snaps, mutedProviders(providerCfgs), prefs.NotificationsEnabled)

	if o.recorder != nil {
		if err := o.recorder.RecordPoll(ctx, snaps); err != nil {
			log.Printf("syncer: record poll: %v", err)
		}
	}

	if o.apply != nil {
		o.apply(dropHidden(snaps, providerCfgs), prefs)
	}
	o.emitStatus("Updated "+time.Now().Format("15:04:05"), StatusInfo)
	return true
}

func (o *Orchestrator) refreshInterval() time.Duration {
	prefs, err := o.store.LoadPreferences()
	if err != nil {
		return time.Duration(config.DefaultPreferences().AutoRefreshIntervalSeconds) * time.Second
	}
	return time.Duration(prefs.AutoRefreshIntervalSeconds) * time.Second
}

func (o *Orchestrator) subscribe(topic bus.Topic) (<-chan struct{}, func()) {
	if o.signals == nil {
		return nil, func() {}
	}
	return o.signals.Subscribe(topic)
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) emitStatus(msg string, severity StatusSeverity) {
	if o.status != nil {
		o.status(msg, severity)
	}
}

// dropHidden filters providers the user hid from display. The notification
// machine still observes them; hiding a provider is not muting it.
func dropHidden(snaps []core.UsageSnapshot, configs []config.ProviderConfig) []core.UsageSnapshot {
	hidden := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if cfg.Hidden {
			hidden[cfg.ProviderID] = true
		}
	}
	if len(hidden) == 0 {
		return snaps
	}
	out := make([]core.UsageSnapshot, 0, len(snaps))
	for _, s := range snaps {
		if !hidden[s.ProviderID] {
			out = append(out, s)
		}
	}
	return out
}

func mutedProviders(configs []config.ProviderConfig) map[string]bool {
	muted := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if cfg.MuteNotifications {
			muted[cfg.ProviderID] = true
		}
	}
	return muted
}
