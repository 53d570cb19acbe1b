package install

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	maxEntrySize   = 500 * 1024 * 1024      // per extracted file
	maxExtractSize = 2 * 1024 * 1024 * 1024 // cumulative
	maxEntryCount  = 10000
)

// Extract unpacks a downloaded archive into destDir. Zip and tar.gz are
// supported; the format is detected by extension first, then by magic bytes
// for extension-less staged downloads. Entries that would escape destDir and
// link entries of any kind are rejected outright.
func Extract(ctx context.Context, archivePath, destDir string) error {
	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(ctx, archivePath, destDir)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return extractTarGz(ctx, archivePath, destDir)
	}

	switch sniffFormat(archivePath) {
	case "zip":
		return extractZip(ctx, archivePath, destDir)
	case "gzip":
		return extractTarGz(ctx, archivePath, destDir)
	}
	return fmt.Errorf("unrecognised archive format: %s", filepath.Base(archivePath))
}

// sniffFormat identifies an archive by its leading magic bytes.
func sniffFormat(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	header := make([]byte, 2)
	if n, err := f.Read(header); err != nil || n < 2 {
		return ""
	}
	switch {
	case header[0] == 0x50 && header[1] == 0x4B:
		return "zip"
	case header[0] == 0x1F && header[1] == 0x8B:
		return "gzip"
	}
	return ""
}

// entryTarget resolves an archive entry name under destDir, rejecting
// traversal.
func entryTarget(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid path in archive: %s", name)
	}
	return target, nil
}

func writeEntry(target string, src io.Reader, mode os.FileMode, total *int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode&0o777|0o600)
	if err != nil {
		return err
	}

	written, copyErr := io.Copy(out, io.LimitReader(src, maxEntrySize+1))
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return fmt.Errorf("close extracted file %s: %w", target, closeErr)
	}
	if written > maxEntrySize {
		return fmt.Errorf("entry exceeds maximum size (%d bytes)", maxEntrySize)
	}

	*total += written
	if *total > maxExtractSize {
		return fmt.Errorf("archive exceeds total extraction limit (%d bytes)", maxExtractSize)
	}
	return nil
}

func extractZip(ctx context.Context, archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	count := 0
	var total int64
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extraction cancelled: %w", err)
		}
		count++
		if count > maxEntryCount {
			return fmt.Errorf("archive contains too many files (max %d)", maxEntryCount)
		}
		if f.FileInfo().Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("archive contains symlink (not allowed): %s", f.Name)
		}

		target, err := entryTarget(destDir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", f.Name, err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeEntry(target, rc, f.Mode(), &total)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTarGz(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	count := 0
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extraction cancelled: %w", err)
		}
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		count++
		if count > maxEntryCount {
			return fmt.Errorf("archive contains too many files (max %d)", maxEntryCount)
		}
		if header.Typeflag == tar.TypeSymlink || header.Typeflag == tar.TypeLink {
			return fmt.Errorf("archive contains link entry (not allowed): %s", header.Name)
		}

		target, err := entryTarget(destDir, header.Name)
		if err != nil {
			return err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, os.FileMode(header.Mode), &total); err != nil {
				return err
			}
		default:
			// Character devices, FIFOs and the like have no place in a
			// model archive.
			return fmt.Errorf("archive contains unsupported entry type %d: %s", header.Typeflag, header.Name)
		}
	}
	return nil
}
