package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/relforge/relforge/internal/models"
)

// Cargo compiles release binaries with the Rust toolchain.
type Cargo struct {
	Logger *slog.Logger

	// HostOS overrides runtime.GOOS when resolving host-conditional
	// target triples. Used by tests.
	HostOS string
}

// Name identifies the toolchain.
func (c *Cargo) Name() string {
	return "cargo"
}

// Compile runs `cargo build --release --target <triple>` for the config and
// verifies the expected binary was produced. All failures, including a
// missing output file after a clean exit, are reported in the result.
func (c *Cargo) Compile(ctx context.Context, cfg models.BuildConfig, workDir string) models.BuildResult {
	result := models.BuildResult{
		Config:    cfg,
		Status:    models.BuildStatusRunning,
		StartedAt: time.Now(),
	}

	target := cfg.ResolvedTarget(c.hostOS())
	args := []string{"build", "--release", "--target", target}
	args = append(args, cfg.Flags...)

	cmd := exec.CommandContext(ctx, c.cargoPath(), args...)
	cmd.Dir = workDir
	cmd.Env = os.Environ()
	for key, value := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}
	// Interrupts must not leave toolchain children behind: the build runs
	// in its own process group and the whole group is killed on cancel.
	configureProcessGroup(cmd)

	c.logger().Info("toolchain started", "configuration", cfg.Name, "target", target)

	output, err := cmd.CombinedOutput()
	result.Output = splitLines(output)
	result.Duration = time.Since(result.StartedAt)

	if ctx.Err() != nil {
		result.Status = models.BuildStatusCancelled
		result.Err = fmt.Errorf("build of %q interrupted: %w", cfg.Name, ctx.Err())
		return result
	}
	if err != nil {
		result.Status = models.BuildStatusFailed
		result.Err = fmt.Errorf("cargo build for %q: %w", cfg.Name, err)
		return result
	}

	binPath := filepath.Join(workDir, "target", target, "release", cfg.BinaryName(c.hostOS()))
	if err := verifyArtifact(binPath); err != nil {
		result.Status = models.BuildStatusFailed
		result.Err = fmt.Errorf("build of %q: %w", cfg.Name, err)
		return result
	}

	result.Status = models.BuildStatusSucceeded
	result.ArtifactPath = binPath
	c.logger().Info("toolchain finished", "configuration", cfg.Name, "artifact", binPath, "duration", result.Duration)
	return result
}

func verifyArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrMissingArtifact, path)
		}
		return fmt.Errorf("stat artifact %s: %w", path, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrMissingArtifact, path)
	}
	return nil
}

func (c *Cargo) cargoPath() string {
	if path := os.Getenv("CARGO"); path != "" {
		return path
	}
	return "cargo"
}

func (c *Cargo) hostOS() string {
	if c.HostOS != "" {
		return c.HostOS
	}
	return runtime.GOOS
}

func (c *Cargo) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func splitLines(output []byte) []string {
	text := strings.TrimRight(string(output), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
