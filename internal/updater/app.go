package updater

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/eventbus"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/install"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/integrity"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/release"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/semver"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/version"
)

// AppUpdate is the outcome of an application check.
type AppUpdate struct {
	Release   *release.Release
	HasUpdate bool
}

// CheckApp queries the release source and compares the latest version with
// the running one.
func (p *Pipeline) CheckApp(ctx context.Context) (*AppUpdate, error) {
	if p.releases == nil {
		return nil, errors.New("no release source configured")
	}

	p.stampLastCheck(eventbus.CheckApp)
	eventbus.Publish(ctx, p.bus, eventbus.CheckStarted, eventbus.SourceAppUpdater, eventbus.CheckStartedEvent{Kind: eventbus.CheckApp})

	histID := p.beginHistory(ctx, string(eventbus.CheckApp))

	rel, err := p.releases.Latest(ctx)
	if err != nil {
		p.finishHistory(ctx, histID, false, err.Error())
		eventbus.Publish(ctx, p.bus, eventbus.CheckCompleted, eventbus.SourceAppUpdater, eventbus.CheckCompletedEvent{
			Kind: eventbus.CheckApp,
			Err:  err.Error(),
		})
		if !errors.Is(err, release.ErrNoRelease) {
			p.reportFailure(ctx, eventbus.SourceAppUpdater, eventbus.ErrorTransport, "app", err)
		}
		return nil, err
	}

	if p.history != nil {
		if err := p.history.CacheRelease(ctx, p.releases.RepoSlug(), rel.TagName, rel.NotesURL); err != nil {
			log.Printf("[Updater] WARNING: cache release metadata: %v", err)
		}
	}

	hasUpdate := semver.IsNewer(rel.Version(), p.appVersion)
	p.finishHistory(ctx, histID, hasUpdate, "")
	eventbus.Publish(ctx, p.bus, eventbus.CheckCompleted, eventbus.SourceAppUpdater, eventbus.CheckCompletedEvent{
		Kind:      eventbus.CheckApp,
		HasUpdate: hasUpdate,
	})
	return &AppUpdate{Release: rel, HasUpdate: hasUpdate}, nil
}

// UpdateApp downloads the release asset, verifies it, snapshots the current
// executable, and hands off to the helper process. On success the terminal
// outcome is install.ErrRestartPending: the caller must exit so the helper
// can replace the binary.
func (p *Pipeline) UpdateApp(ctx context.Context, rel *release.Release) error {
	asset, ok := rel.SelectAsset()
	if !ok {
		err := errors.New("release carries no installable asset")
		p.reportFailure(ctx, eventbus.SourceAppUpdater, eventbus.ErrorInstall, "app", err)
		return err
	}

	staged := filepath.Join(p.paths.DownloadsDir, asset.Name)
	dl := p.downloader(ctx, "app")
	if err := dl.Download(ctx, asset.URL, staged, true); err != nil {
		p.reportFailure(ctx, eventbus.SourceAppUpdater, eventbus.ErrorTransport, "app", err)
		return err
	}

	if err := integrity.VerifySize(staged, asset.SizeBytes); err != nil {
		if rmErr := os.Remove(staged); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Printf("[Updater] WARNING: discard corrupt download %s: %v", staged, rmErr)
		}
		p.reportFailure(ctx, eventbus.SourceAppUpdater, eventbus.ErrorIntegrity, "app", err)
		return err
	}
	if err := integrity.VerifyNonEmpty(staged); err != nil {
		p.reportFailure(ctx, eventbus.SourceAppUpdater, eventbus.ErrorIntegrity, "app", err)
		return err
	}

	binary := staged
	if isArchiveName(asset.Name) {
		extractDir := filepath.Join(p.paths.DownloadsDir, "app-extract")
		if err := os.RemoveAll(extractDir); err != nil {
			p.reportFailure(ctx, eventbus.SourceAppUpdater, eventbus.ErrorInstall, "app", err)
			return err
		}
		if err := os.MkdirAll(extractDir, 0o755); err != nil {
			p.reportFailure(ctx, eventbus.SourceAppUpdater, eventbus.ErrorInstall, "app", err)
			return err
		}
		if err := install.Extract(ctx, staged, extractDir); err != nil {
			p.reportFailure(ctx, eventbus.SourceAppUpdater, eventbus.ErrorInstall, "app", err)
			return err
		}
		found, err := locateBinary(extractDir)
		if err != nil {
			p.reportFailure(ctx, eventbus.SourceAppUpdater, eventbus.ErrorInstall, "app", err)
			return err
		}
		binary = found
	}

	replacer := p.replacer
	if replacer == nil {
		execPath, err := os.Executable()
		if err != nil {
			p.reportFailure(ctx, eventbus.SourceAppUpdater, eventbus.ErrorInstall, "app", err)
			return err
		}
		replacer = install.NewSelfReplacer(execPath)
	}

	err := replacer.Install(binary, func() error {
		execPath, eerr := os.Executable()
		if eerr != nil {
			return eerr
		}
		if _, berr := p.backups.Snapshot("app", execPath); berr != nil {
			return berr
		}
		// The version marker travels with the executable snapshot.
		if _, berr := p.backups.Snapshot("app-version-marker", p.paths.VersionFile); berr != nil {
			return berr
		}
		return nil
	})
	if errors.Is(err, install.ErrRestartPending) {
		if werr := version.WriteMarker(p.paths.VersionFile, rel.Version()); werr != nil {
			log.Printf("[Updater] WARNING: write version marker: %v", werr)
		}
		p.notify(ctx, eventbus.SourceAppUpdater, "Updating",
			fmt.Sprintf("Installing version %s, the application will restart", rel.Version()))
		return err
	}
	if err != nil {
		cat := eventbus.ErrorInstall
		if errors.Is(err, install.ErrBackup) {
			cat = eventbus.ErrorBackup
		}
		p.reportFailure(ctx, eventbus.SourceAppUpdater, cat, "app", err)
		return err
	}
	return nil
}

// RunAppCheck is the scheduler entry point: check and, policy permitting,
// install.
func (p *Pipeline) RunAppCheck(ctx context.Context) error {
	upd, err := p.CheckApp(ctx)
	if err != nil {
		if errors.Is(err, release.ErrNoRelease) {
			return nil
		}
		return err
	}
	if !upd.HasUpdate {
		return nil
	}

	if !p.settings.Get().AutoInstallUpdates {
		p.notify(ctx, eventbus.SourceAppUpdater, "Update available",
			fmt.Sprintf("Version %s is available (current %s)", upd.Release.Version(), p.appVersion))
		return nil
	}
	return p.UpdateApp(ctx, upd.Release)
}

func isArchiveName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".zip") || strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}

// locateBinary finds the application binary inside an extracted release
// archive: the first .exe on Windows, the first regular executable file
// elsewhere.
func locateBinary(dir string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || found != "" || d.IsDir() {
			return err
		}
		if runtime.GOOS == "windows" {
			if strings.HasSuffix(strings.ToLower(d.Name()), ".exe") {
				found = path
			}
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			return ierr
		}
		if info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", errors.New("no executable found in release archive")
	}
	return found, nil
}
