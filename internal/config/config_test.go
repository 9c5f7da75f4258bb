package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func tempStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	return NewFileStoreAt(
		filepath.Join(dir, "settings.json"),
		filepath.Join(dir, "providers.json"),
	)
}

func TestLoadPreferencesDefaultsWhenMissing(t *testing.T) {
	store := tempStore(t)

	prefs, err := store.LoadPreferences()
	if err != nil {
		t.Fatalf("LoadPreferences: %v", err)
	}
	if !reflect.DeepEqual(prefs, DefaultPreferences()) {
		t.Errorf("missing file should yield defaults, got %+v", prefs)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	store := tempStore(t)

	want := DefaultPreferences()
	want.ShowAll = true
	want.CompactMode = false
	want.ColorThresholdRed = 90
	want.CollapsedGroups = map[string]bool{"paygo": true}

	if err := store.SavePreferences(want); err != nil {
		t.Fatalf("SavePreferences: %v", err)
	}
	got, err := store.LoadPreferences()
	if err != nil {
		t.Fatalf("LoadPreferences: %v", err)
	}

	if got.ShowAll != want.ShowAll || got.CompactMode != want.CompactMode ||
		got.ColorThresholdRed != want.ColorThresholdRed {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if !got.CollapsedGroups["paygo"] {
		t.Error("collapse flag not persisted")
	}
}

func TestLoadPreferencesBackfillsThresholds(t *testing.T) {
	store := tempStore(t)
	if err := os.WriteFile(store.prefsPath, []byte(`{"color_threshold_yellow": 0, "auto_refresh_interval_seconds": -5}`), 0o644); err != nil {
		t.Fatal(err)
	}

	prefs, err := store.LoadPreferences()
	if err != nil {
		t.Fatalf("LoadPreferences: %v", err)
	}
	if prefs.ColorThresholdYellow != 60 || prefs.ColorThresholdRed != 80 {
		t.Errorf("thresholds not backfilled: %+v", prefs)
	}
	if prefs.AutoRefreshIntervalSeconds != 0 {
		t.Errorf("negative interval should clamp to 0, got %d", prefs.AutoRefreshIntervalSeconds)
	}
}

func TestLoadPreferencesRejectsGarbage(t *testing.T) {
	store := tempStore(t)
	if err := os.WriteFile(store.prefsPath, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	prefs, err := store.LoadPreferences()
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !reflect.DeepEqual(prefs, DefaultPreferences()) {
		t.Error("parse failure should fall back to defaults")
	}
}

func TestProviderConfigs(t *testing.T) {
	store := tempStore(t)

	configs, err := store.LoadProviderConfigs()
	if err != nil || configs != nil {
		t.Fatalf("missing file should yield nil, nil; got %v, %v", configs, err)
	}

	payload := `[{"provider_id": "anthropic", "mute_notifications": true}]`
	if err := os.WriteFile(store.providersPath, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	configs, err = store.LoadProviderConfigs()
	if err != nil {
		t.Fatalf("LoadProviderConfigs: %v", err)
	}
	if len(configs) != 1 || configs[0].ProviderID != "anthropic" || !configs[0].MuteNotifications {
		t.Errorf("unexpected configs: %+v", configs)
	}
}

func TestSaveCollapsed(t *testing.T) {
	store := tempStore(t)

	if err := store.SaveCollapsed("quota", true); err != nil {
		t.Fatalf("SaveCollapsed: %v", err)
	}
	prefs, err := store.LoadPreferences()
	if err != nil {
		t.Fatalf("LoadPreferences: %v", err)
	}
	if !prefs.CollapsedGroups["quota"] {
		t.Error("collapse flag not saved")
	}
}
