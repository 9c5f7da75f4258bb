// Package notify derives quota depleted/refreshed events from consecutive
// snapshot observations. Each state transition fires exactly once; repeated
// observations of the same state are silent.
package notify

import (
	"fmt"
	"log"

	"github.com/janekbaraniewski/usagesync/internal/core"
	"github.com/samber/lo"
)

// Sink delivers notifications. Delivery failures are logged and swallowed;
// they never interrupt a refresh cycle.
type Sink interface {
	ShowDepleted(providerName, message string) error
	ShowRefreshed(providerName, message string, providerID string) error
}

// Machine tracks per-provider depletion state across polls. State lives only
// in memory for the orchestrator session.
type Machine struct {
	sink     Sink
	depleted map[string]bool
}

func NewMachine(sink Sink) *Machine {
	return &Machine{
		sink:     sink,
		depleted: make(map[string]bool),
	}
}

// Depleted reports whether a snapshot has exhausted its allowance.
func Depleted(s core.UsageSnapshot) bool {
	if core.UsedPercent(s) >= 100 {
		return true
	}
	if s.CostBearing() && s.CostLimit > 0 && s.CostLimit-s.CostUsed <= 0 {
		return true
	}
	return false
}

// Observe folds one snapshot list into the machine. The first sighting of a
// provider records its state without emitting, so an already-exhausted quota
// does not alarm on startup. Providers absent from the list are pruned
// afterwards. muted suppresses individual providers even when enabled is true.
func (m *Machine) Observe(snaps []core.UsageSnapshot, muted map[string]bool, enabled bool) {
	for _, snap := range snaps {
		now := Depleted(snap)
		was, seen := m.depleted[snap.ProviderID]
		m.depleted[snap.ProviderID] = now

		if !seen || was == now {
			continue
		}
		if !enabled || muted[snap.ProviderID] {
			continue
		}

		if now {
			m.emitDepleted(snap)
		} else {
			m.emitRefreshed(snap)
		}
	}

	present := lo.SliceToMap(snaps, func(s core.UsageSnapshot) (string, struct{}) {
		return s.ProviderID, struct{}{}
	})
	for id := range m.depleted {
		if _, ok := present[id]; !ok {
			delete(m.depleted, id)
		}
	}
}

// Tracked returns the provider ids currently held by the machine.
func (m *Machine) Tracked() []string {
	return lo.Keys(m.depleted)
}

// IsDepleted reports the recorded state for a provider id.
func (m *Machine) IsDepleted(providerID string) bool {
	return m.depleted[providerID]
}

func (m *Machine) emitDepleted(snap core.UsageSnapshot) {
	if m.sink == nil {
		return
	}
	msg := fmt.Sprintf("%s has exhausted its quota", snap.ProviderName)
	if err := m.sink.ShowDepleted(snap.ProviderName, msg); err != nil {
		log.Printf("notify: depleted event for %s: %v", snap.ProviderID, err)
	}
}

func (m *Machine) emitRefreshed(snap core.UsageSnapshot) {
	if m.sink == nil {
		return
	}
	msg := fmt.Sprintf("%s quota is available again", snap.ProviderName)
	if err := m.sink.ShowRefreshed(snap.ProviderName, msg, snap.ProviderID); err != nil {
		log.Printf("notify: refreshed event for %s: %v", snap.ProviderID, err)
	}
}
