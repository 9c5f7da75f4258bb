package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/janekbaraniewski/usagesync/internal/core"
)

// Preferences are the user-tunable display and refresh settings. They are
// re-read at the start of every refresh cycle so out-of-band edits take
// effect without a restart.
type Preferences struct {
	ShowAll                    bool            `json:"show_all"`
	PrivacyMode                bool            `json:"privacy_mode"`
	CompactMode                bool            `json:"compact_mode"`
	InvertProgressBar          bool            `json:"invert_progress_bar"`
	NotificationsEnabled       bool            `json:"notifications_enabled"`
	AutoRefreshIntervalSeconds int             `json:"auto_refresh_interval_seconds"`
	ColorThresholdYellow       float64         `json:"color_threshold_yellow"`
	ColorThresholdRed          float64         `json:"color_threshold_red"`
	CollapsedGroups            map[string]bool `json:"collapsed_groups,omitempty"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		CompactMode:                true,
		NotificationsEnabled:       true,
		AutoRefreshIntervalSeconds: 30,
		ColorThresholdYellow:       60,
		ColorThresholdRed:          80,
	}
}

func (p Preferences) Thresholds() core.Thresholds {
	return core.Thresholds{Yellow: p.ColorThresholdYellow, Red: p.ColorThresholdRed}
}

// ProviderConfig carries per-provider toggles the dashboard honors.
type ProviderConfig struct {
	ProviderID        string           `json:"provider_id"`
	PaymentType       core.PaymentType `json:"payment_type,omitempty"`
	MuteNotifications bool             `json:"mute_notifications"`
	Hidden            bool             `json:"hidden"`
}

// Store is the persistence boundary the orchestrator reads through.
type Store interface {
	LoadPreferences() (Preferences, error)
	SavePreferences(Preferences) error
	LoadProviderConfigs() ([]ProviderConfig, error)
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "usagesync")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "usagesync")
}

func PreferencesPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func ProvidersPath() string {
	return filepath.Join(ConfigDir(), "providers.json")
}

// FileStore reads and writes JSON files under the platform config dir.
type FileStore struct {
	prefsPath     string
	providersPath string

	// saveMu guards read-modify-write cycles on the settings file.
	saveMu sync.Mutex
}

func NewFileStore() *FileStore {
	return NewFileStoreAt(PreferencesPath(), ProvidersPath())
}

func NewFileStoreAt(prefsPath, providersPath string) *FileStore {
	return &FileStore{prefsPath: prefsPath, providersPath: providersPath}
}

func (s *FileStore) LoadPreferences() (Preferences, error) {
	prefs := DefaultPreferences()

	data, err := os.ReadFile(s.prefsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return prefs, nil
		}
		return prefs, fmt.Errorf("reading preferences: %w", err)
	}

	if err := json.Unmarshal(data, &prefs); err != nil {
		return DefaultPreferences(), fmt.Errorf("parsing preferences %s: %w", s.prefsPath, err)
	}

	if prefs.AutoRefreshIntervalSeconds < 0 {
		prefs.AutoRefreshIntervalSeconds = 0
	}
	if prefs.ColorThresholdYellow <= 0 {
		prefs.ColorThresholdYellow = 60
	}
	if prefs.ColorThresholdRed <= 0 {
		prefs.ColorThresholdRed = 80
	}

	return prefs, nil
}

func (s *FileStore) SavePreferences(prefs Preferences) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return writeJSON(s.prefsPath, prefs)
}

func (s *FileStore) LoadProviderConfigs() ([]ProviderConfig, error) {
	data, err := os.ReadFile(s.providersPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading provider configs: %w", err)
	}

	var configs []ProviderConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("parsing provider configs %s: %w", s.providersPath, err)
	}
	return configs, nil
}

// SaveCollapsed persists a single group's collapse flag (read-modify-write).
func (s *FileStore) SaveCollapsed(group string, collapsed bool) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	prefs, err := s.LoadPreferences()
	if err != nil {
		prefs = DefaultPreferences()
	}
	if prefs.CollapsedGroups == nil {
		prefs.CollapsedGroups = make(map[string]bool)
	}
	prefs.CollapsedGroups[group] = collapsed
	return writeJSON(s.prefsPath, prefs)
}

func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
