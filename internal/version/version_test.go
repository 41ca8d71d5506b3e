package version

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ManifestName), []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return dir
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := writeManifest(t, `{"FullVersion": "1.4.0-rc.2"}`)
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "1.4.0-rc.2" {
		t.Errorf("Load() = %q, want 1.4.0-rc.2", got)
	}
}

func TestLoadMissingManifest(t *testing.T) {
	t.Parallel()

	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("Load() error = nil, want missing manifest error")
	}
}

func TestLoadEmptyVersion(t *testing.T) {
	t.Parallel()

	dir := writeManifest(t, `{"FullVersion": "  "}`)
	if _, err := Load(dir); err == nil {
		t.Fatal("Load() error = nil, want empty version error")
	}
}

func TestLoadMalformedManifest(t *testing.T) {
	t.Parallel()

	dir := writeManifest(t, `{"FullVersion":`)
	if _, err := Load(dir); err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}
