package updater

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/eventbus"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/integrity"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/registry"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/semver"
)

// ModelsNeedingUpdate returns the registry components whose configured
// version is newer than the ledger's installed version. Components without a
// source URL are skipped until configured.
func (p *Pipeline) ModelsNeedingUpdate() []registry.Component {
	var out []registry.Component
	for _, comp := range p.registry.All() {
		if comp.URL == "" {
			continue
		}
		installed := p.ledger.InstalledVersion(comp.ID)
		if installed == "" || semver.IsNewer(comp.Version, installed) {
			out = append(out, comp)
		}
	}
	return out
}

// CheckModels records a model check and reports which components are
// outdated.
func (p *Pipeline) CheckModels(ctx context.Context) []registry.Component {
	p.stampLastCheck(eventbus.CheckModels)
	eventbus.Publish(ctx, p.bus, eventbus.CheckStarted, eventbus.SourceModelSync, eventbus.CheckStartedEvent{Kind: eventbus.CheckModels})

	histID := p.beginHistory(ctx, string(eventbus.CheckModels))
	needing := p.ModelsNeedingUpdate()
	p.finishHistory(ctx, histID, len(needing) > 0, "")

	eventbus.Publish(ctx, p.bus, eventbus.CheckCompleted, eventbus.SourceModelSync, eventbus.CheckCompletedEvent{
		Kind:      eventbus.CheckModels,
		HasUpdate: len(needing) > 0,
	})
	return needing
}

// SyncModels downloads, verifies, and installs the given components. A nil
// slice syncs everything outdated. Per-component failures are reported and
// the loop continues; the aggregate error joins them.
func (p *Pipeline) SyncModels(ctx context.Context, comps []registry.Component) ([]string, error) {
	if comps == nil {
		comps = p.ModelsNeedingUpdate()
	}
	if len(comps) == 0 {
		return nil, nil
	}

	var updated []string
	var errs []error
	for _, comp := range comps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := p.syncComponent(ctx, comp); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", comp.ID, err))
			continue
		}
		updated = append(updated, comp.ID)
		eventbus.Publish(ctx, p.bus, eventbus.ComponentUpdated, eventbus.SourceModelSync, eventbus.ComponentUpdatedEvent{
			ComponentID: comp.ID,
			Version:     comp.Version,
		})
	}

	if len(updated) > 0 {
		p.notify(ctx, eventbus.SourceModelSync, "Models updated",
			fmt.Sprintf("Updated: %s", strings.Join(updated, ", ")))
	}
	return updated, errors.Join(errs...)
}

// RunModelCheck is the scheduler entry point: check, then sync when the
// auto-install policy allows, otherwise only announce availability.
func (p *Pipeline) RunModelCheck(ctx context.Context) error {
	needing := p.CheckModels(ctx)
	if len(needing) == 0 {
		return nil
	}

	if !p.settings.Get().AutoInstallModels {
		ids := make([]string, len(needing))
		for i, c := range needing {
			ids[i] = c.ID
		}
		p.notify(ctx, eventbus.SourceModelSync, "Model updates available",
			fmt.Sprintf("%d model(s) have updates: %s", len(needing), strings.Join(ids, ", ")))
		return nil
	}

	_, err := p.SyncModels(ctx, needing)
	return err
}

// syncComponent runs the full flow for one component: download, verify,
// snapshot, install, ledger update, prune.
func (p *Pipeline) syncComponent(ctx context.Context, comp registry.Component) error {
	// The staged name is stable across attempts so an interrupted download
	// can resume. The extractor detects archive formats by magic bytes.
	staged := filepath.Join(p.paths.DownloadsDir, comp.ID+"-"+comp.Version+".download")

	dl := p.downloader(ctx, comp.ID)
	if err := dl.Download(ctx, comp.URL, staged, true); err != nil {
		// The partial file stays for a later resume.
		p.reportFailure(ctx, eventbus.SourceModelSync, eventbus.ErrorTransport, comp.ID, err)
		return err
	}

	if comp.Hash == "" {
		log.Printf("[Updater] WARNING: no published hash for %s, accepting non-empty file", comp.ID)
	}
	if err := integrity.Verify(staged, comp.Hash); err != nil {
		// A corrupt artifact is never retried as-is. Discard it so the next
		// interval starts a fresh, resume-less download.
		if rmErr := os.Remove(staged); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Printf("[Updater] WARNING: discard corrupt artifact %s: %v", staged, rmErr)
		}
		p.reportFailure(ctx, eventbus.SourceModelSync, eventbus.ErrorIntegrity, comp.ID, err)
		return err
	}

	if p.settings.Get().BackupOldModels {
		if _, err := p.backups.Snapshot(comp.ID, p.installTarget(comp)); err != nil {
			p.reportFailure(ctx, eventbus.SourceModelSync, eventbus.ErrorBackup, comp.ID, err)
			return err
		}
	}

	if err := p.installer.Install(ctx, comp, staged); err != nil {
		p.reportFailure(ctx, eventbus.SourceModelSync, eventbus.ErrorInstall, comp.ID, err)
		return err
	}

	if err := p.ledger.SetInstalled(comp.ID, comp.Version, comp.Hash); err != nil {
		log.Printf("[Updater] WARNING: persist ledger entry for %s: %v", comp.ID, err)
	}

	if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
		log.Printf("[Updater] WARNING: remove staged download %s: %v", staged, err)
	}
	if err := p.backups.Prune(comp.ID, p.settings.Get().BackupRetention); err != nil {
		log.Printf("[Updater] WARNING: prune backups for %s: %v", comp.ID, err)
	}
	return nil
}

// installTarget resolves the on-disk artifact a component's install would
// overwrite, which is what gets snapshotted.
func (p *Pipeline) installTarget(comp registry.Component) string {
	dest := filepath.Join(p.paths.AppDir, filepath.FromSlash(comp.Destination))
	if comp.Kind == registry.KindFile && comp.FileName != "" {
		return filepath.Join(dest, comp.FileName)
	}
	return dest
}
