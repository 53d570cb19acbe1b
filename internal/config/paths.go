package config

import (
	"os"
	"path/filepath"
)

// Paths contains the directory layout rooted at the application directory.
// The updater lives beside the executable it maintains, mirroring the
// deployed desktop layout: model assets in models/ and secure_models/,
// everything mutable under .cache/.
type Paths struct {
	AppDir          string // Application root (directory of the executable)
	ModelsDir       string // Regular model assets
	SecureModelsDir string // Encrypted model assets
	CacheDir        string // Mutable updater state (.cache)
	DownloadsDir    string // Partial and completed downloads
	BackupsDir      string // Timestamped backup snapshots
	SettingsFile    string // Scheduler settings + check timestamps
	RegistryFile    string // Component registry (models + app)
	LedgerFile      string // componentID -> installed version
	HistoryDB       string // SQLite check/install/backup history
	VersionFile     string // App version marker read at startup
}

// AppPaths returns the layout for a given application directory.
// Empty appDir resolves to the running executable's directory.
func AppPaths(appDir string) Paths {
	if appDir == "" {
		appDir = ExecutableDir()
	}

	cacheDir := filepath.Join(appDir, ".cache")

	return Paths{
		AppDir:          appDir,
		ModelsDir:       filepath.Join(appDir, "models"),
		SecureModelsDir: filepath.Join(appDir, "secure_models"),
		CacheDir:        cacheDir,
		DownloadsDir:    filepath.Join(cacheDir, "downloads"),
		BackupsDir:      filepath.Join(cacheDir, "backups"),
		SettingsFile:    filepath.Join(cacheDir, "updater_settings.json"),
		RegistryFile:    filepath.Join(appDir, "model_registry.json"),
		LedgerFile:      filepath.Join(cacheDir, "model_versions.json"),
		HistoryDB:       filepath.Join(cacheDir, "history.db"),
		VersionFile:     filepath.Join(appDir, "version.json"),
	}
}

// EnsureDirs creates every directory the updater writes into.
func EnsureDirs(p Paths) error {
	for _, dir := range []string{p.ModelsDir, p.SecureModelsDir, p.CacheDir, p.DownloadsDir, p.BackupsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// ExecutableDir returns the directory containing the running executable,
// falling back to the working directory when it cannot be resolved.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		wd, _ := os.Getwd()
		return wd
	}
	return filepath.Dir(exe)
}
