package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/config"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Show the installed application version",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runVersion,
	}
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	appDir, _ := cmd.Flags().GetString("app-dir")
	paths := config.AppPaths(appDir)

	installed := version.Current(paths.VersionFile)
	if out.jsonMode {
		return out.Print(map[string]string{
			"build":     version.String(),
			"installed": installed,
		})
	}
	fmt.Printf("Build:     %s\n", version.FormatVersion(version.String()))
	fmt.Printf("Installed: %s\n", version.FormatVersion(installed))
	return nil
}
