package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/registry"
)

func newSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sync [component...]",
		Short:         "Download and install model updates",
		Long:          "Sync installs every registry component whose version is newer than the installed one. Naming components restricts the sync to those.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSync,
	}
	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	var comps []registry.Component
	for _, id := range args {
		comp, ok := e.registry.Get(id)
		if !ok {
			return fmt.Errorf("unknown component %q", id)
		}
		comps = append(comps, comp)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Minute)
	defer cancel()

	p := e.pipeline()
	updated, err := p.SyncModels(ctx, comps)
	if err != nil {
		return err
	}

	if out.jsonMode {
		if updated == nil {
			updated = []string{}
		}
		return out.Print(map[string]interface{}{"updated": updated})
	}
	if len(updated) == 0 {
		fmt.Println("All components up to date")
		return nil
	}
	for _, id := range updated {
		fmt.Printf("Updated %s to %s\n", id, e.ledger.InstalledVersion(id))
	}
	return nil
}
