// Package toolchain invokes external compiler toolchains to build release
// binaries for a single configuration at a time.
package toolchain

import (
	"context"
	"errors"

	"github.com/relforge/relforge/internal/models"
)

// ErrMissingArtifact marks builds where the toolchain exited cleanly but the
// expected output file is missing or empty.
var ErrMissingArtifact = errors.New("toolchain exited cleanly but produced no artifact")

// Compiler builds one configuration and reports the outcome as data.
//
// Implementations must be stateless and safe for concurrent use: the
// orchestrator calls Compile for independent configurations in parallel.
// A failed build is returned as a result with a failed status and a
// diagnostic, never as a panic.
type Compiler interface {
	// Name identifies the toolchain in logs and diagnostics.
	Name() string

	// Compile runs a single authoritative build attempt for cfg inside
	// workDir and returns its result. Toolchain failures are not
	// transient, so implementations never retry.
	Compile(ctx context.Context, cfg models.BuildConfig, workDir string) models.BuildResult
}
