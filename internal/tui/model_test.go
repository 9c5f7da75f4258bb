package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/janekbaraniewski/usagesync/internal/config"
	"github.com/janekbaraniewski/usagesync/internal/core"
	"github.com/janekbaraniewski/usagesync/internal/syncer"
)

type stubStore struct {
	prefs config.Preferences
	saved int
}

func (s *stubStore) LoadPreferences() (config.Preferences, error) { return s.prefs, nil }

func (s *stubStore) SavePreferences(p config.Preferences) error {
	s.prefs = p
	s.saved++
	return nil
}

func (s *stubStore) LoadProviderConfigs() ([]config.ProviderConfig, error) { return nil, nil }

func testSnaps() []core.UsageSnapshot {
	return []core.UsageSnapshot{
		{ProviderID: "anthropic", ProviderName: "Anthropic", PaymentType: core.PaymentQuota, UsagePercentage: 70, IsAvailable: true},
		{ProviderID: "openai", ProviderName: "OpenAI", PaymentType: core.PaymentUsageBased, UsagePercentage: 25, CostUsed: 2.5, CostLimit: 10, IsAvailable: true},
	}
}

func updated(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("update returned %T", next)
	}
	return model
}

func dataMsg(prefs config.Preferences) SnapshotsMsg {
	return SnapshotsMsg{Snapshots: testSnaps(), Preferences: prefs}
}

func TestViewShowsLoadingUntilFirstData(t *testing.T) {
	store := &stubStore{prefs: config.DefaultPreferences()}
	m := NewModel(store, nil)

	out := ansi.Strip(m.View())
	if strings.Contains(out, "Anthropic") {
		t.Error("no provider rows before the first snapshot")
	}

	m = updated(t, m, dataMsg(store.prefs))
	out = ansi.Strip(m.View())
	for _, want := range []string{"Plans & Quotas", "Pay As You Go", "Anthropic", "OpenAI"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "$2.50 / $10.00") {
		t.Errorf("view missing cost status:\n%s", out)
	}
}

func TestFailedStateShowsError(t *testing.T) {
	store := &stubStore{prefs: config.DefaultPreferences()}
	m := NewModel(store, nil)

	m = updated(t, m, StateMsg(syncer.StateFailed))
	m = updated(t, m, StatusMsg{Text: "No usage data yet. Try refreshing.", Severity: syncer.StatusError})

	out := ansi.Strip(m.View())
	if !strings.Contains(out, "No usage data yet") {
		t.Errorf("failed view = %q", out)
	}
}

func TestCollapseHidesChildren(t *testing.T) {
	store := &stubStore{prefs: config.DefaultPreferences()}
	m := NewModel(store, nil)
	m = updated(t, m, dataMsg(store.prefs))

	// Cursor starts on the first section header.
	linesBefore := len(m.lines)
	m = updated(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(m.lines) >= linesBefore {
		t.Errorf("lines after collapse = %d, want < %d", len(m.lines), linesBefore)
	}

	m = updated(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(m.lines) != linesBefore {
		t.Errorf("lines after expand = %d, want %d", len(m.lines), linesBefore)
	}
}

func TestPreferenceTogglesPersist(t *testing.T) {
	store := &stubStore{prefs: config.DefaultPreferences()}
	m := NewModel(store, nil)
	m = updated(t, m, dataMsg(store.prefs))

	m = updated(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	if !m.prefs.PrivacyMode || !store.prefs.PrivacyMode {
		t.Error("privacy toggle not applied and persisted")
	}

	m = updated(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	if m.prefs.CompactMode == config.DefaultPreferences().CompactMode {
		t.Error("compact toggle not applied")
	}
	if store.saved != 2 {
		t.Errorf("preference saves = %d, want 2", store.saved)
	}
}

func TestSelectedProviderFromCursor(t *testing.T) {
	store := &stubStore{prefs: config.DefaultPreferences()}
	m := NewModel(store, nil)
	m = updated(t, m, dataMsg(store.prefs))

	// Walk down until a provider-scoped line is selected.
	found := false
	for i := 0; i < len(m.lines); i++ {
		m.cursor = i
		if id := m.selectedProvider(); id == "anthropic" {
			found = true
			break
		}
	}
	if !found {
		t.Error("no cursor position resolves to provider anthropic")
	}
}

func TestRefreshKeyInvokesCallback(t *testing.T) {
	store := &stubStore{prefs: config.DefaultPreferences()}
	m := NewModel(store, nil)

	calls := 0
	m.SetOnRefresh(func() { calls++ })
	m = updated(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if calls != 1 {
		t.Errorf("refresh callback calls = %d, want 1", calls)
	}
}
