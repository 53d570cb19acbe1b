package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/backup"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/eventbus"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/gateway"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/scheduler"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/store"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/updater"
)

func newDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "daemon",
		Short:         "Run the update scheduler and WebSocket gateway until interrupted",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDaemon,
	}
	cmd.Flags().String("repo", defaultReleaseRepo, "Release repository (owner/name)")
	cmd.Flags().String("addr", gateway.DefaultAddr, "Gateway listen address")
	return cmd
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	client, err := releaseClient(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := eventbus.New()
	defer bus.Shutdown()

	pipelineOpts := []updater.PipelineOption{
		updater.WithBus(bus),
		updater.WithReleases(client),
	}
	history, err := store.Open(e.paths.HistoryDB)
	if err != nil {
		log.Printf("[Daemon] WARNING: history store unavailable: %v", err)
	} else {
		defer history.Close()
		pipelineOpts = append(pipelineOpts,
			updater.WithHistory(history),
			updater.WithBackups(backup.NewManager(e.paths.BackupsDir, backup.WithRecorder(history))),
		)
	}
	pipeline := e.pipeline(pipelineOpts...)

	// A staged self-replace needs the process to exit so the helper can
	// swap the executable.
	coord := scheduler.New(e.settings, pipeline, scheduler.WithOnRestartPending(stop))
	coord.Start(ctx)

	gw := gateway.NewServer(bus, coord)
	gw.Start(ctx)

	log.Printf("[Daemon] version %s, app dir %s", e.appVersion, e.paths.AppDir)
	log.Printf("[Daemon] gateway listening on %s", addr)
	if err := gw.ListenAndServe(ctx, addr); err != nil {
		log.Printf("[Daemon] WARNING: gateway: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := coord.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Daemon] WARNING: scheduler shutdown: %v", err)
	}
	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Daemon] WARNING: gateway shutdown: %v", err)
	}
	log.Printf("[Daemon] stopped")
	return nil
}
