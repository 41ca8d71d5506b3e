// Package staging gathers successfully built binaries into deterministic
// distribution archives and checksums them for publication.
package staging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/relforge/relforge/internal/models"
)

// ErrDuplicateArtifact marks two configurations mapping to the same staged
// file name, which indicates a misconfigured registry.
var ErrDuplicateArtifact = errors.New("duplicate artifact")

// DuplicateArtifactError reports the colliding name alongside ErrDuplicateArtifact.
type DuplicateArtifactError struct {
	Name string
}

func (e *DuplicateArtifactError) Error() string {
	return fmt.Sprintf("artifact %q staged twice; two configurations map to the same output name", e.Name)
}

func (e *DuplicateArtifactError) Unwrap() error { return ErrDuplicateArtifact }

// Collector stages successful build outputs under DistDir as
// `<app>-<version>-<config>.<ext>` archives with sha256 sidecar files.
type Collector struct {
	Logger *slog.Logger

	// ScratchDir holds the per-configuration staging trees the archives
	// are built from.
	ScratchDir string

	// DistDir receives the final archives and checksum sidecars.
	DistDir string

	AppName string
	Version string

	Archiver Archiver
}

// Prepare establishes the staging directories. It must run once before any
// build starts; concurrent builds then only write uniquely named files.
// Both directories are resolved to absolute paths: the archiver runs its
// child process inside the staging tree, so a cwd-relative dist path would
// be resolved against the wrong directory.
func (c *Collector) Prepare() error {
	for _, dir := range []*string{&c.ScratchDir, &c.DistDir} {
		if *dir == "" {
			return fmt.Errorf("collector directory is not configured")
		}
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return fmt.Errorf("resolve directory %s: %w", *dir, err)
		}
		*dir = abs
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", abs, err)
		}
	}
	return nil
}

// Collect filters results to the successful ones and stages one artifact per
// configuration. Collisions between configurations fail with
// ErrDuplicateArtifact; everything staged so far is returned for diagnostics.
func (c *Collector) Collect(ctx context.Context, results []models.BuildResult) ([]models.Artifact, error) {
	staged := make(map[string]struct{}, len(results))
	artifacts := make([]models.Artifact, 0, len(results))

	for _, result := range results {
		if !result.Succeeded() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return artifacts, err
		}

		name := c.artifactName(result.Config)
		if _, ok := staged[name]; ok {
			return artifacts, &DuplicateArtifactError{Name: name}
		}
		staged[name] = struct{}{}

		artifact, err := c.stage(ctx, result, name)
		if err != nil {
			return artifacts, err
		}
		artifacts = append(artifacts, artifact)
		c.logger().Info("artifact staged",
			"configuration", result.Config.Name,
			"artifact", artifact.Name,
			"sha256", artifact.SHA256,
		)
	}
	return artifacts, nil
}

func (c *Collector) artifactName(cfg models.BuildConfig) string {
	return fmt.Sprintf("%s-%s-%s.%s", c.AppName, c.Version, cfg.Name, cfg.Archive.Ext())
}

func (c *Collector) stage(ctx context.Context, result models.BuildResult, name string) (models.Artifact, error) {
	stageDir := filepath.Join(c.ScratchDir, result.Config.Name)
	if err := os.RemoveAll(stageDir); err != nil {
		return models.Artifact{}, fmt.Errorf("clear staging dir %s: %w", stageDir, err)
	}
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return models.Artifact{}, fmt.Errorf("create staging dir %s: %w", stageDir, err)
	}

	binDest := filepath.Join(stageDir, filepath.Base(result.ArtifactPath))
	if err := copyFile(result.ArtifactPath, binDest); err != nil {
		return models.Artifact{}, fmt.Errorf("stage binary for %q: %w", result.Config.Name, err)
	}

	archivePath := filepath.Join(c.DistDir, name)
	// Leftovers from a previous run would otherwise end up inside the
	// fresh archive or corrupt the checksum.
	if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return models.Artifact{}, fmt.Errorf("remove stale archive %s: %w", archivePath, err)
	}

	if err := c.Archiver.Archive(ctx, result.Config.Archive, archivePath, stageDir); err != nil {
		return models.Artifact{}, err
	}

	checksum, size, err := checksumFile(archivePath)
	if err != nil {
		return models.Artifact{}, err
	}
	if err := os.WriteFile(archivePath+".sha256.txt", []byte(checksum), 0o644); err != nil {
		return models.Artifact{}, fmt.Errorf("write checksum for %s: %w", archivePath, err)
	}

	return models.Artifact{
		ID:     uuid.NewString(),
		Name:   name,
		Path:   archivePath,
		SHA256: checksum,
		Size:   size,
	}, nil
}

func checksumFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open %s for checksum: %w", path, err)
	}
	defer f.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, f)
	if err != nil {
		return "", 0, fmt.Errorf("checksum %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}

func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return err
	}

	dest, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		return err
	}
	return dest.Close()
}

func (c *Collector) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
