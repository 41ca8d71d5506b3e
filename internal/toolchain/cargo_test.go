//go:build unix

package toolchain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relforge/relforge/internal/models"
)

const testTarget = "x86_64-unknown-linux-gnu"

func testConfig() models.BuildConfig {
	return models.BuildConfig{
		Name:    "linux64",
		Target:  testTarget,
		Bin:     "stool",
		Archive: models.ArchiveTarZst,
	}
}

// writeStubCargo installs a shell script as the cargo binary and points the
// CARGO env override at it.
func writeStubCargo(t *testing.T, script string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cargo")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub cargo: %v", err)
	}
	t.Setenv("CARGO", path)
}

func newTestCargo() *Cargo {
	return &Cargo{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		HostOS: "linux",
	}
}

func TestCompileSuccess(t *testing.T) {
	workDir := t.TempDir()
	writeStubCargo(t, `
mkdir -p "$PWD/target/`+testTarget+`/release"
echo "Compiling stool"
printf 'binary' > "$PWD/target/`+testTarget+`/release/stool"
`)

	result := newTestCargo().Compile(context.Background(), testConfig(), workDir)
	if !result.Succeeded() {
		t.Fatalf("Compile() status = %s, err = %v", result.Status, result.Err)
	}
	wantPath := filepath.Join(workDir, "target", testTarget, "release", "stool")
	if result.ArtifactPath != wantPath {
		t.Errorf("ArtifactPath = %q, want %q", result.ArtifactPath, wantPath)
	}
	if len(result.Output) == 0 || !strings.Contains(result.Output[0], "Compiling") {
		t.Errorf("Output = %v, want captured toolchain output", result.Output)
	}
}

func TestCompileNonzeroExit(t *testing.T) {
	writeStubCargo(t, `
echo "error[E0308]: mismatched types" >&2
exit 101
`)

	result := newTestCargo().Compile(context.Background(), testConfig(), t.TempDir())
	if result.Status != models.BuildStatusFailed {
		t.Fatalf("Compile() status = %s, want failed", result.Status)
	}
	if result.Err == nil {
		t.Fatal("Compile() Err = nil, want diagnostic")
	}
	if !strings.Contains(result.Diagnostic(), "E0308") {
		t.Errorf("Diagnostic() = %q, want captured stderr", result.Diagnostic())
	}
}

func TestCompileMissingArtifact(t *testing.T) {
	writeStubCargo(t, "exit 0\n")

	result := newTestCargo().Compile(context.Background(), testConfig(), t.TempDir())
	if result.Status != models.BuildStatusFailed {
		t.Fatalf("Compile() status = %s, want failed", result.Status)
	}
	if !errors.Is(result.Err, ErrMissingArtifact) {
		t.Errorf("Compile() Err = %v, want ErrMissingArtifact", result.Err)
	}
}

func TestCompileEmptyArtifactIsMissing(t *testing.T) {
	writeStubCargo(t, `
mkdir -p "$PWD/target/`+testTarget+`/release"
: > "$PWD/target/`+testTarget+`/release/stool"
`)

	result := newTestCargo().Compile(context.Background(), testConfig(), t.TempDir())
	if !errors.Is(result.Err, ErrMissingArtifact) {
		t.Errorf("Compile() Err = %v, want ErrMissingArtifact for empty file", result.Err)
	}
}

func TestCompileCancelled(t *testing.T) {
	writeStubCargo(t, "sleep 30\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestCargo().Compile(ctx, testConfig(), t.TempDir())
	if result.Status != models.BuildStatusCancelled {
		t.Fatalf("Compile() status = %s, want cancelled", result.Status)
	}
}
