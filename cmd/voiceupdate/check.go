package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/release"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/updater"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "check",
		Short:         "Check for application and model updates",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCheck,
	}
	cmd.Flags().Bool("app", false, "Check only the application")
	cmd.Flags().Bool("models", false, "Check only the models")
	cmd.Flags().String("repo", defaultReleaseRepo, "Release repository (owner/name)")
	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	appOnly, _ := cmd.Flags().GetBool("app")
	modelsOnly, _ := cmd.Flags().GetBool("models")
	checkApp := !modelsOnly
	checkModels := !appOnly

	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	result := map[string]interface{}{}

	if checkApp {
		client, err := releaseClient(cmd)
		if err != nil {
			return err
		}
		p := e.pipeline(updater.WithReleases(client))
		upd, err := p.CheckApp(ctx)
		switch {
		case errors.Is(err, release.ErrNoRelease):
			result["app"] = map[string]interface{}{"current": e.appVersion, "latest": nil}
		case err != nil:
			return fmt.Errorf("application check: %w", err)
		default:
			result["app"] = map[string]interface{}{
				"current":    e.appVersion,
				"latest":     upd.Release.Version(),
				"has_update": upd.HasUpdate,
				"notes_url":  upd.Release.NotesURL,
			}
		}
	}

	if checkModels {
		p := e.pipeline()
		needing := p.CheckModels(ctx)
		models := make([]map[string]interface{}, 0, len(needing))
		for _, comp := range needing {
			models = append(models, map[string]interface{}{
				"id":        comp.ID,
				"installed": e.ledger.InstalledVersion(comp.ID),
				"available": comp.Version,
			})
		}
		result["models"] = models
	}

	if out.jsonMode {
		return out.Print(result)
	}

	if app, ok := result["app"].(map[string]interface{}); ok {
		if app["latest"] == nil {
			fmt.Printf("Application: %s (no published release)\n", e.appVersion)
		} else if app["has_update"].(bool) {
			fmt.Printf("Application: %s -> %s available\n", app["current"], app["latest"])
		} else {
			fmt.Printf("Application: %s (up to date)\n", app["current"])
		}
	}
	if models, ok := result["models"].([]map[string]interface{}); ok {
		if len(models) == 0 {
			fmt.Println("Models: all up to date")
		} else {
			fmt.Printf("Models: %d component(s) need updating\n", len(models))
			for _, m := range models {
				installed := m["installed"].(string)
				if installed == "" {
					installed = "none"
				}
				fmt.Printf("  %s: %s -> %s\n", m["id"], installed, m["available"])
			}
		}
	}
	return nil
}
