package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/store"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show installed versions, check schedule, and recent history",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runStatus,
	}
	cmd.Flags().Int("history", 10, "Number of recent checks to show")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	historyLimit, _ := cmd.Flags().GetInt("history")

	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	s := e.settings.Get()

	components := make([]map[string]interface{}, 0, e.registry.Len())
	for _, comp := range e.registry.All() {
		entry, installed := e.ledger.Get(comp.ID)
		row := map[string]interface{}{
			"id":        comp.ID,
			"available": comp.Version,
			"installed": "",
		}
		if installed {
			row["installed"] = entry.Version
			row["installed_at"] = entry.InstalledAt
		}
		components = append(components, row)
	}

	var history []store.CheckRecord
	if db, err := store.Open(e.paths.HistoryDB); err != nil {
		log.Printf("[Status] WARNING: history unavailable: %v", err)
	} else {
		defer db.Close()
		history, err = db.RecentChecks(cmd.Context(), historyLimit)
		if err != nil {
			log.Printf("[Status] WARNING: read history: %v", err)
		}
	}

	if out.jsonMode {
		checks := make([]map[string]interface{}, 0, len(history))
		for _, rec := range history {
			checks = append(checks, map[string]interface{}{
				"kind":       rec.Kind,
				"started_at": rec.StartedAt,
				"has_update": rec.HasUpdate,
				"error":      rec.Error,
			})
		}
		return out.Print(map[string]interface{}{
			"app_version":       e.appVersion,
			"components":        components,
			"last_update_check": s.LastUpdateCheck,
			"last_model_check":  s.LastModelCheck,
			"history":           checks,
		})
	}

	fmt.Printf("Application version: %s\n", e.appVersion)
	fmt.Printf("Last app check:      %s\n", orNever(s.LastUpdateCheck))
	fmt.Printf("Last model check:    %s\n", orNever(s.LastModelCheck))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tINSTALLED\tAVAILABLE\tINSTALLED AT")
	for _, row := range components {
		installed := row["installed"].(string)
		if installed == "" {
			installed = "-"
		}
		installedAt, _ := row["installed_at"].(string)
		if installedAt == "" {
			installedAt = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row["id"], installed, row["available"], installedAt)
	}
	w.Flush()

	if len(history) > 0 {
		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHECK\tSTARTED\tUPDATE\tERROR")
		for _, rec := range history {
			errText := rec.Error
			if errText == "" {
				errText = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\n",
				rec.Kind, rec.StartedAt.Local().Format(time.RFC3339), rec.HasUpdate, errText)
		}
		w.Flush()
	}
	return nil
}

func orNever(ts string) string {
	if ts == "" {
		return "never"
	}
	return ts
}
