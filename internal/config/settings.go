package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Settings drives the scheduler and the install policy. The struct maps the
// persisted JSON settings file; unknown keys are ignored and missing keys
// fall back to the built-in defaults.
type Settings struct {
	AutoCheckUpdates         bool   `json:"auto_check_updates" mapstructure:"auto_check_updates"`
	AutoCheckModels          bool   `json:"auto_check_models" mapstructure:"auto_check_models"`
	UpdateCheckIntervalHours int    `json:"update_check_interval_hours" mapstructure:"update_check_interval_hours"`
	ModelCheckIntervalHours  int    `json:"model_check_interval_hours" mapstructure:"model_check_interval_hours"`
	SilentUpdate             bool   `json:"silent_update" mapstructure:"silent_update"`
	AutoInstallUpdates       bool   `json:"auto_install_updates" mapstructure:"auto_install_updates"`
	AutoInstallModels        bool   `json:"auto_install_models" mapstructure:"auto_install_models"`
	StartupDelaySeconds      int    `json:"startup_delay_seconds" mapstructure:"startup_delay_seconds"`
	BackupOldModels          bool   `json:"backup_old_models" mapstructure:"backup_old_models"`
	BackupRetention          int    `json:"backup_retention" mapstructure:"backup_retention"`
	LastUpdateCheck          string `json:"last_update_check" mapstructure:"last_update_check"`
	LastModelCheck           string `json:"last_model_check" mapstructure:"last_model_check"`
}

// DefaultSettings returns the built-in configuration.
func DefaultSettings() Settings {
	return Settings{
		AutoCheckUpdates:         true,
		AutoCheckModels:          true,
		UpdateCheckIntervalHours: 6,
		ModelCheckIntervalHours:  24,
		SilentUpdate:             false,
		AutoInstallUpdates:       false,
		AutoInstallModels:        true,
		StartupDelaySeconds:      30,
		BackupOldModels:          true,
		BackupRetention:          5,
	}
}

// UpdateInterval returns the app check interval as a duration.
func (s Settings) UpdateInterval() time.Duration {
	return time.Duration(s.UpdateCheckIntervalHours) * time.Hour
}

// ModelInterval returns the model check interval as a duration.
func (s Settings) ModelInterval() time.Duration {
	return time.Duration(s.ModelCheckIntervalHours) * time.Hour
}

// SettingsStore is the single owner of the settings file. All mutation goes
// through Update, which serialises writers and rewrites the file atomically.
type SettingsStore struct {
	mu       sync.Mutex
	path     string
	settings Settings
}

// OpenSettings loads the settings file, merging it over the built-in
// defaults. A missing or malformed file recovers to defaults and is
// rewritten; configuration errors are never propagated to the caller.
func OpenSettings(path string) *SettingsStore {
	st := &SettingsStore{path: path, settings: DefaultSettings()}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setSettingsDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("[Config] WARNING: settings file %s unreadable, using defaults: %v", path, err)
		}
		if writeErr := st.flushLocked(); writeErr != nil {
			log.Printf("[Config] WARNING: rewrite default settings: %v", writeErr)
		}
		return st
	}

	var loaded Settings
	if err := v.Unmarshal(&loaded); err != nil {
		log.Printf("[Config] WARNING: settings file %s malformed, using defaults: %v", path, err)
		if writeErr := st.flushLocked(); writeErr != nil {
			log.Printf("[Config] WARNING: rewrite default settings: %v", writeErr)
		}
		return st
	}

	st.settings = loaded
	return st
}

func setSettingsDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("auto_check_updates", d.AutoCheckUpdates)
	v.SetDefault("auto_check_models", d.AutoCheckModels)
	v.SetDefault("update_check_interval_hours", d.UpdateCheckIntervalHours)
	v.SetDefault("model_check_interval_hours", d.ModelCheckIntervalHours)
	v.SetDefault("silent_update", d.SilentUpdate)
	v.SetDefault("auto_install_updates", d.AutoInstallUpdates)
	v.SetDefault("auto_install_models", d.AutoInstallModels)
	v.SetDefault("startup_delay_seconds", d.StartupDelaySeconds)
	v.SetDefault("backup_old_models", d.BackupOldModels)
	v.SetDefault("backup_retention", d.BackupRetention)
	v.SetDefault("last_update_check", "")
	v.SetDefault("last_model_check", "")
}

// Get returns a copy of the current settings.
func (st *SettingsStore) Get() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.settings
}

// Update applies fn to the settings under the store lock and persists the
// result atomically.
func (st *SettingsStore) Update(fn func(*Settings)) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	fn(&st.settings)
	return st.flushLocked()
}

// Path returns the backing file path.
func (st *SettingsStore) Path() string {
	return st.path
}

func (st *SettingsStore) flushLocked() error {
	data, err := json.MarshalIndent(st.settings, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(st.path, append(data, '\n'), 0o644)
}
