package install

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "archive.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeTarGz(t *testing.T, entries []tar.Header, contents map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, hdr := range entries {
		h := hdr
		if c, ok := contents[h.Name]; ok {
			h.Size = int64(len(c))
		}
		if err := tw.WriteHeader(&h); err != nil {
			t.Fatal(err)
		}
		if c, ok := contents[h.Name]; ok {
			if _, err := tw.Write([]byte(c)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "archive.tar.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractZip(t *testing.T) {
	archive := writeZip(t, map[string]string{
		"config.yaml":           "key: value",
		"sub/pytorch_model.bin": "weights",
	})
	dest := t.TempDir()

	if err := Extract(context.Background(), archive, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "sub", "pytorch_model.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "weights" {
		t.Errorf("extracted content = %q", got)
	}
}

func TestExtractTarGz(t *testing.T) {
	archive := writeTarGz(t,
		[]tar.Header{
			{Name: "dir/", Typeflag: tar.TypeDir, Mode: 0o755},
			{Name: "dir/model.bin", Typeflag: tar.TypeReg, Mode: 0o644},
		},
		map[string]string{"dir/model.bin": "tar weights"},
	)
	dest := t.TempDir()

	if err := Extract(context.Background(), archive, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "dir", "model.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "tar weights" {
		t.Errorf("extracted content = %q", got)
	}
}

func TestExtractDetectsFormatWithoutExtension(t *testing.T) {
	zipPath := writeZip(t, map[string]string{"a.txt": "z"})
	unnamed := filepath.Join(t.TempDir(), "staged-download")
	data, err := os.ReadFile(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(unnamed, data, 0o644); err != nil {
		t.Fatal(err)
	}

	dest := t.TempDir()
	if err := Extract(context.Background(), unnamed, dest); err != nil {
		t.Fatalf("Extract via magic bytes: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "a.txt")); err != nil {
		t.Error("zip content not extracted")
	}
}

func TestExtractRejectsSlipPath(t *testing.T) {
	archive := writeZip(t, map[string]string{"../escape.txt": "evil"})
	dest := t.TempDir()

	err := Extract(context.Background(), archive, dest)
	if err == nil {
		t.Fatal("expected error for path traversal entry")
	}
	if !strings.Contains(err.Error(), "invalid path") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExtractRejectsTarLinks(t *testing.T) {
	archive := writeTarGz(t,
		[]tar.Header{{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"}},
		nil,
	)
	if err := Extract(context.Background(), archive, t.TempDir()); err == nil {
		t.Error("expected error for symlink entry")
	}
}

func TestExtractUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-archive")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Extract(context.Background(), path, t.TempDir()); err == nil {
		t.Error("expected error for unrecognised format")
	}
}

func TestExtractCancelled(t *testing.T) {
	archive := writeZip(t, map[string]string{"a.txt": "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Extract(ctx, archive, t.TempDir()); err == nil {
		t.Error("expected error for cancelled context")
	}
}
