package models

import (
	"strings"
	"time"
)

// BuildStatus captures the lifecycle states of a single configuration build.
type BuildStatus string

// Supported build statuses.
const (
	BuildStatusPending   BuildStatus = "pending"
	BuildStatusRunning   BuildStatus = "running"
	BuildStatusSucceeded BuildStatus = "succeeded"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCancelled BuildStatus = "cancelled"
)

// BuildResult is the outcome of one toolchain invocation. Failures cross the
// orchestration boundary as data in this struct, never as panics or errors
// returned from the compiler.
type BuildResult struct {
	Config BuildConfig
	Status BuildStatus

	// ArtifactPath points at the binary the toolchain produced; set only
	// when Status is succeeded.
	ArtifactPath string

	// Output holds the captured stdout/stderr lines of the toolchain.
	Output []string

	// Err carries the diagnostic when the build did not succeed.
	Err error

	StartedAt time.Time
	Duration  time.Duration
}

// Succeeded reports whether the build produced a usable artifact.
func (r BuildResult) Succeeded() bool {
	return r.Status == BuildStatusSucceeded
}

// Diagnostic renders the failure reason together with the tail of the
// captured toolchain output.
func (r BuildResult) Diagnostic() string {
	if r.Succeeded() {
		return ""
	}
	var b strings.Builder
	if r.Err != nil {
		b.WriteString(r.Err.Error())
	}
	tail := outputTail(r.Output, 10)
	if len(tail) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.Join(tail, "\n"))
	}
	return b.String()
}

func outputTail(lines []string, n int) []string {
	trimmed := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			trimmed = append(trimmed, line)
		}
	}
	if len(trimmed) > n {
		trimmed = trimmed[len(trimmed)-n:]
	}
	return trimmed
}
