package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/config"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/ledger"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/registry"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/release"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/updater"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/version"
)

// env bundles the loaded state owners every command works against.
type env struct {
	paths      config.Paths
	settings   *config.SettingsStore
	registry   *registry.Registry
	ledger     *ledger.Ledger
	appVersion string
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	appDir, _ := cmd.Flags().GetString("app-dir")
	paths := config.AppPaths(appDir)
	if err := config.EnsureDirs(paths); err != nil {
		return nil, fmt.Errorf("prepare %s: %w", paths.AppDir, err)
	}
	return &env{
		paths:      paths,
		settings:   config.OpenSettings(paths.SettingsFile),
		registry:   registry.Load(paths.RegistryFile),
		ledger:     ledger.Open(paths.LedgerFile),
		appVersion: version.Current(paths.VersionFile),
	}, nil
}

func (e *env) pipeline(opts ...updater.PipelineOption) *updater.Pipeline {
	opts = append(opts, updater.WithAppVersion(e.appVersion))
	return updater.NewPipeline(e.paths, e.settings, e.registry, e.ledger, opts...)
}

// releaseClient builds the release source from the --repo flag.
func releaseClient(cmd *cobra.Command) (*release.Client, error) {
	repo, _ := cmd.Flags().GetString("repo")
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("invalid repository %q, want owner/name", repo)
	}
	return release.NewClient(owner, name), nil
}

// OutputFormatter handles output in JSON or human-readable format.
type OutputFormatter struct {
	jsonMode bool
}

func newOutputFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &OutputFormatter{jsonMode: jsonMode}
}

// Print outputs data in the appropriate format. Non-JSON mode expects a
// string; other types fall back to indented JSON.
func (f *OutputFormatter) Print(data interface{}) error {
	if !f.jsonMode {
		if s, ok := data.(string); ok {
			fmt.Println(s)
			return nil
		}
	}
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(jsonBytes))
	return nil
}
