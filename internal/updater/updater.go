// Package updater orchestrates the check-and-install pipeline. App updates
// and model sync are two instantiations of the same flow: resolve versions,
// download, verify, snapshot, install, record. The ledger is written only
// after a verified install; every destructive step happens strictly after a
// successful backup.
package updater

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/backup"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/config"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/eventbus"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/install"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/ledger"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/registry"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/release"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/store"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/transfer"
)

// Pipeline wires the sync components together. A nil bus and a nil history
// store are both valid; events and audit rows are simply not produced.
type Pipeline struct {
	paths      config.Paths
	settings   *config.SettingsStore
	registry   *registry.Registry
	ledger     *ledger.Ledger
	bus        *eventbus.Bus
	history    *store.Store
	backups    *backup.Manager
	installer  *install.Executor
	releases   *release.Client
	replacer   *install.SelfReplacer
	dlOpts     []transfer.Option
	appVersion string
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithBus attaches the event bus used for the notification boundary.
func WithBus(bus *eventbus.Bus) PipelineOption {
	return func(p *Pipeline) { p.bus = bus }
}

// WithHistory attaches the audit store.
func WithHistory(s *store.Store) PipelineOption {
	return func(p *Pipeline) { p.history = s }
}

// WithBackups replaces the default backup manager.
func WithBackups(m *backup.Manager) PipelineOption {
	return func(p *Pipeline) { p.backups = m }
}

// WithReleases attaches the release source client for app updates.
func WithReleases(c *release.Client) PipelineOption {
	return func(p *Pipeline) { p.releases = c }
}

// WithSelfReplacer replaces the default executable replacer.
func WithSelfReplacer(r *install.SelfReplacer) PipelineOption {
	return func(p *Pipeline) { p.replacer = r }
}

// WithDownloaderOptions passes extra options to every download.
func WithDownloaderOptions(opts ...transfer.Option) PipelineOption {
	return func(p *Pipeline) { p.dlOpts = append(p.dlOpts, opts...) }
}

// WithAppVersion fixes the current application version.
func WithAppVersion(v string) PipelineOption {
	return func(p *Pipeline) { p.appVersion = v }
}

// NewPipeline assembles a pipeline over the loaded state owners.
func NewPipeline(paths config.Paths, settings *config.SettingsStore, reg *registry.Registry, led *ledger.Ledger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		paths:      paths,
		settings:   settings,
		registry:   reg,
		ledger:     led,
		appVersion: "dev",
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.backups == nil {
		p.backups = backup.NewManager(paths.BackupsDir)
	}
	if p.installer == nil {
		p.installer = install.NewExecutor(paths.AppDir)
	}
	return p
}

// AppVersion returns the version the pipeline considers currently installed.
func (p *Pipeline) AppVersion() string {
	return p.appVersion
}

func (p *Pipeline) downloader(ctx context.Context, componentID string) *transfer.Downloader {
	opts := append([]transfer.Option{}, p.dlOpts...)
	opts = append(opts, transfer.WithProgress(func(pr transfer.Progress) {
		eventbus.Publish(ctx, p.bus, eventbus.SyncProgress, eventbus.SourceTransfer, eventbus.SyncProgressEvent{
			ComponentID: componentID,
			Percent:     pr.Percent,
			Bytes:       pr.Bytes,
			Status:      "downloading",
		})
	}))
	return transfer.NewDownloader(opts...)
}

// reportFailure publishes the failure on the bus and applies the
// notification policy: silent mode suppresses transport chatter only, never
// integrity, backup, or install failures.
func (p *Pipeline) reportFailure(ctx context.Context, source eventbus.Source, cat eventbus.ErrorCategory, componentID string, err error) {
	log.Printf("[Updater] WARNING: %s failure for %s: %v", cat, componentID, err)
	eventbus.Publish(ctx, p.bus, eventbus.SyncError, source, eventbus.SyncErrorEvent{
		Category:    cat,
		ComponentID: componentID,
		Message:     err.Error(),
	})

	silent := p.settings.Get().SilentUpdate
	if silent && cat == eventbus.ErrorTransport {
		return
	}
	eventbus.Publish(ctx, p.bus, eventbus.Notify, source, eventbus.NotifyEvent{
		Title:   "Update error",
		Message: fmt.Sprintf("%s: %v", componentID, err),
	})
}

func (p *Pipeline) notify(ctx context.Context, source eventbus.Source, title, message string) {
	if p.settings.Get().SilentUpdate {
		return
	}
	eventbus.Publish(ctx, p.bus, eventbus.Notify, source, eventbus.NotifyEvent{
		Title:   title,
		Message: message,
	})
}

// stampLastCheck writes the check timestamp before the check runs. A crash
// mid-check therefore cannot re-trigger the check on every restart within
// the same interval window.
func (p *Pipeline) stampLastCheck(kind eventbus.CheckKind) {
	now := time.Now().Format(time.RFC3339)
	err := p.settings.Update(func(s *config.Settings) {
		switch kind {
		case eventbus.CheckApp:
			s.LastUpdateCheck = now
		case eventbus.CheckModels:
			s.LastModelCheck = now
		}
	})
	if err != nil {
		log.Printf("[Updater] WARNING: persist last-check timestamp: %v", err)
	}
}

func (p *Pipeline) beginHistory(ctx context.Context, kind string) int64 {
	if p.history == nil {
		return 0
	}
	id, err := p.history.BeginCheck(ctx, kind)
	if err != nil {
		log.Printf("[Updater] WARNING: record check start: %v", err)
		return 0
	}
	return id
}

func (p *Pipeline) finishHistory(ctx context.Context, id int64, hasUpdate bool, errText string) {
	if p.history == nil || id == 0 {
		return
	}
	if err := p.history.FinishCheck(ctx, id, hasUpdate, errText); err != nil {
		log.Printf("[Updater] WARNING: record check outcome: %v", err)
	}
}
