package install

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/registry"
)

func TestInstallFileKind(t *testing.T) {
	appDir := t.TempDir()
	staged := filepath.Join(t.TempDir(), "download.tmp")
	if err := os.WriteFile(staged, []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}

	comp := registry.Component{
		ID:          "whisper_medium",
		Kind:        registry.KindFile,
		Destination: "models/whisper",
		FileName:    "medium.pt",
	}

	e := NewExecutor(appDir)
	if err := e.Install(context.Background(), comp, staged); err != nil {
		t.Fatalf("Install: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(appDir, "models", "whisper", "medium.pt"))
	if err != nil {
		t.Fatalf("installed file: %v", err)
	}
	if string(got) != "weights" {
		t.Errorf("installed content = %q", got)
	}

	// The staged download remains for the caller to clean up.
	if _, err := os.Stat(staged); err != nil {
		t.Errorf("staged file removed: %v", err)
	}
}

func TestInstallFileKindDefaultsToStagedName(t *testing.T) {
	appDir := t.TempDir()
	staged := filepath.Join(t.TempDir(), "vocab.enc")
	if err := os.WriteFile(staged, []byte("v"), 0o644); err != nil {
		t.Fatal(err)
	}

	comp := registry.Component{ID: "secure_vocab", Kind: registry.KindFile, Destination: "secure_models"}
	if err := NewExecutor(appDir).Install(context.Background(), comp, staged); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if _, err := os.Stat(filepath.Join(appDir, "secure_models", "vocab.enc")); err != nil {
		t.Errorf("expected staged basename as target: %v", err)
	}
}

func TestInstallArchiveKind(t *testing.T) {
	appDir := t.TempDir()
	staged := writeZip(t, map[string]string{
		"config.yaml":       "sample_rate: 24000",
		"pytorch_model.bin": "tensor data",
	})

	comp := registry.Component{
		ID:          "vocos_model",
		Kind:        registry.KindArchive,
		Destination: "models/vocos_model",
		Files:       []string{"config.yaml", "pytorch_model.bin"},
	}

	if err := NewExecutor(appDir).Install(context.Background(), comp, staged); err != nil {
		t.Fatalf("Install: %v", err)
	}
	for _, name := range comp.Files {
		if _, err := os.Stat(filepath.Join(appDir, "models", "vocos_model", name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestInstallArchiveMissingExpectedFile(t *testing.T) {
	appDir := t.TempDir()
	staged := writeZip(t, map[string]string{"config.yaml": "x"})

	comp := registry.Component{
		ID:          "vocos_model",
		Kind:        registry.KindArchive,
		Destination: "models/vocos_model",
		Files:       []string{"config.yaml", "pytorch_model.bin"},
	}

	err := NewExecutor(appDir).Install(context.Background(), comp, staged)
	if err == nil {
		t.Fatal("expected error for missing expected file")
	}
}

func TestInstallUnknownKind(t *testing.T) {
	staged := filepath.Join(t.TempDir(), "x")
	if err := os.WriteFile(staged, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	comp := registry.Component{ID: "m", Kind: "tarball", Destination: "models"}
	if err := NewExecutor(t.TempDir()).Install(context.Background(), comp, staged); err == nil {
		t.Error("expected error for unknown kind")
	}
}
