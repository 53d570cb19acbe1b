package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/backup"
)

func newBackupsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "Inspect and prune backup snapshots",
	}

	listCmd := &cobra.Command{
		Use:           "list",
		Short:         "List backup snapshots per component",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBackupsList,
	}

	pruneCmd := &cobra.Command{
		Use:           "prune",
		Short:         "Delete old snapshots, keeping the newest per component",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBackupsPrune,
	}
	pruneCmd.Flags().Int("keep", 0, "Snapshots to keep per component (defaults to the configured retention)")

	cmd.AddCommand(listCmd, pruneCmd)
	return cmd
}

func runBackupsList(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	mgr := backup.NewManager(e.paths.BackupsDir)
	components, err := mgr.Components()
	if err != nil {
		return err
	}

	type snapshotRow struct {
		Component string    `json:"component"`
		Path      string    `json:"path"`
		CreatedAt time.Time `json:"created_at"`
	}
	var rows []snapshotRow
	for _, id := range components {
		records, err := mgr.List(id)
		if err != nil {
			return err
		}
		for _, rec := range records {
			rows = append(rows, snapshotRow{Component: id, Path: rec.Path, CreatedAt: rec.CreatedAt})
		}
	}

	if out.jsonMode {
		if rows == nil {
			rows = []snapshotRow{}
		}
		return out.Print(rows)
	}
	if len(rows) == 0 {
		fmt.Println("No backup snapshots")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tCREATED\tPATH")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\n", row.Component, row.CreatedAt.Local().Format(time.RFC3339), row.Path)
	}
	return w.Flush()
}

func runBackupsPrune(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	keep, _ := cmd.Flags().GetInt("keep")
	if keep <= 0 {
		keep = e.settings.Get().BackupRetention
	}

	mgr := backup.NewManager(e.paths.BackupsDir)
	components, err := mgr.Components()
	if err != nil {
		return err
	}
	for _, id := range components {
		if err := mgr.Prune(id, keep); err != nil {
			return fmt.Errorf("prune %s: %w", id, err)
		}
	}

	if out.jsonMode {
		return out.Print(map[string]interface{}{"pruned": true, "keep": keep, "components": len(components)})
	}
	fmt.Printf("Pruned snapshots for %d component(s), keeping %d each\n", len(components), keep)
	return nil
}
