package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/relforge/relforge/internal/models"
)

// Archiver packages a staged directory into a single distribution file.
type Archiver interface {
	Archive(ctx context.Context, format models.ArchiveFormat, archivePath, srcDir string) error
}

// ExternalArchiver shells out to the system archive tools: `tar` for
// zstd tarballs and `7z` for zip files.
type ExternalArchiver struct {
	Logger *slog.Logger
}

// Archive creates archivePath from the contents of srcDir. A partially
// written archive is removed before the error is returned.
func (a *ExternalArchiver) Archive(ctx context.Context, format models.ArchiveFormat, archivePath, srcDir string) error {
	var cmd *exec.Cmd
	switch format {
	case models.ArchiveTarZst:
		cmd = exec.CommandContext(ctx, "tar", "acf", archivePath, ".")
	case models.ArchiveZip:
		cmd = exec.CommandContext(ctx, "7z", "a", "-mx9", archivePath, "*")
	default:
		return fmt.Errorf("unsupported archive format %q", format)
	}
	cmd.Dir = srcDir

	a.logger().Info("compressing archive", "archive", archivePath, "format", string(format))

	output, err := cmd.CombinedOutput()
	if err != nil {
		if removeErr := os.Remove(archivePath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			a.logger().Warn("failed to remove partial archive", "archive", archivePath, "error", removeErr)
		}
		return fmt.Errorf("compress %s: %w\n%s", archivePath, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (a *ExternalArchiver) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
