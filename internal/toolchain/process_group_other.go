//go:build !unix

package toolchain

import (
	"os/exec"
	"time"
)

// configureProcessGroup falls back to the default child kill on platforms
// without POSIX process groups.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.WaitDelay = 5 * time.Second
}
