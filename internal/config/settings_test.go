package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func settingsPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "updater_settings.json")
}

func TestOpenSettingsMissingFileUsesDefaults(t *testing.T) {
	path := settingsPath(t)
	st := OpenSettings(path)

	got := st.Get()
	want := DefaultSettings()
	if got != want {
		t.Errorf("settings = %+v, want defaults %+v", got, want)
	}

	// Defaults are written back so the user has a file to edit.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults not persisted: %v", err)
	}
}

func TestOpenSettingsPartialFileMergesDefaults(t *testing.T) {
	path := settingsPath(t)
	partial := `{"silent_update": true, "model_check_interval_hours": 48}`
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatal(err)
	}

	got := OpenSettings(path).Get()
	if !got.SilentUpdate {
		t.Error("explicit silent_update lost")
	}
	if got.ModelCheckIntervalHours != 48 {
		t.Errorf("ModelCheckIntervalHours = %d, want 48", got.ModelCheckIntervalHours)
	}
	// Keys absent from the file fall back to defaults.
	if got.UpdateCheckIntervalHours != DefaultSettings().UpdateCheckIntervalHours {
		t.Errorf("UpdateCheckIntervalHours = %d, want default", got.UpdateCheckIntervalHours)
	}
	if !got.BackupOldModels {
		t.Error("BackupOldModels default lost")
	}
}

func TestOpenSettingsMalformedFileRecoversToDefaults(t *testing.T) {
	path := settingsPath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := OpenSettings(path).Get()
	if got != DefaultSettings() {
		t.Errorf("settings = %+v, want defaults after recovery", got)
	}

	// The broken file is rewritten with valid JSON.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var onDisk Settings
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Errorf("recovered file still malformed: %v", err)
	}
}

func TestUpdatePersistsAcrossReopen(t *testing.T) {
	path := settingsPath(t)
	st := OpenSettings(path)
	err := st.Update(func(s *Settings) {
		s.AutoInstallUpdates = true
		s.LastModelCheck = "2026-03-01T12:00:00Z"
	})
	if err != nil {
		t.Fatal(err)
	}

	reopened := OpenSettings(path).Get()
	if !reopened.AutoInstallUpdates {
		t.Error("AutoInstallUpdates not persisted")
	}
	if reopened.LastModelCheck != "2026-03-01T12:00:00Z" {
		t.Errorf("LastModelCheck = %q", reopened.LastModelCheck)
	}
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	if err := WriteFileAtomic(path, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte(`{"a":2}`), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"a":2}` {
		t.Errorf("content = %s", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestAppPathsLayout(t *testing.T) {
	root := t.TempDir()
	p := AppPaths(root)

	if p.AppDir != root {
		t.Errorf("AppDir = %q", p.AppDir)
	}
	if p.SettingsFile != filepath.Join(root, ".cache", "updater_settings.json") {
		t.Errorf("SettingsFile = %q", p.SettingsFile)
	}
	if p.RegistryFile != filepath.Join(root, "model_registry.json") {
		t.Errorf("RegistryFile = %q", p.RegistryFile)
	}

	if err := EnsureDirs(p); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{p.ModelsDir, p.SecureModelsDir, p.DownloadsDir, p.BackupsDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
}
