package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appversion "github.com/nguyentruongduy1410/VoiceUpdate/internal/version"
)

// defaultReleaseRepo is the owner/name pair queried for application builds.
// Overridable per command with --repo.
const defaultReleaseRepo = "nguyentruongduy1410/VoiceUpdate"

func main() {
	rootCmd := &cobra.Command{
		Use:   "voiceupdate",
		Short: "Auto-updater and model sync for the voice application",
		Long: `voiceupdate keeps a deployed voice application and its model assets current.

It checks a release repository for new application builds, compares the
model registry against the installed-version ledger, and downloads, verifies,
backs up, and installs what changed. Run it one-shot (check, sync) or as a
long-lived scheduler (daemon) that local UIs observe over WebSocket.`,
	}
	rootCmd.Version = appversion.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.PersistentFlags().String("app-dir", "", "Application directory (defaults to the executable's directory)")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")

	rootCmd.AddCommand(
		newCheckCommand(),
		newSyncCommand(),
		newStatusCommand(),
		newBackupsCommand(),
		newDaemonCommand(),
		newVersionCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
