// Package orchestrator drives the release pipeline: resolve the requested
// configurations, build each, stage the artifacts, and publish them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/relforge/relforge/internal/models"
	"github.com/relforge/relforge/internal/publish"
	"github.com/relforge/relforge/internal/registry"
	"github.com/relforge/relforge/internal/staging"
	"github.com/relforge/relforge/internal/toolchain"
)

// ErrNoConfigsRequested is returned when the invocation names no configurations.
var ErrNoConfigsRequested = errors.New("no configurations requested")

// Orchestrator owns one end-to-end release run. All collaborators are
// injected; tests substitute fakes for the compiler, archiver, and host.
type Orchestrator struct {
	Logger    *slog.Logger
	Registry  *registry.Registry
	Compiler  toolchain.Compiler
	Collector *staging.Collector
	Publisher *publish.Publisher

	// ProjectDir is the working directory toolchain builds run in.
	ProjectDir string

	// Jobs bounds the build worker pool; defaults to the CPU count.
	Jobs int

	// SkipPublish stops the pipeline after collecting, leaving uploads to
	// an external runner.
	SkipPublish bool

	phase Phase
}

// Summary aggregates everything a run produced, for the exit-code decision
// and the final human-readable report.
type Summary struct {
	RunID     string
	Phase     Phase
	Results   []models.BuildResult
	Artifacts []models.Artifact
	Publish   *models.PublishReport
}

// FailedBuilds returns the results that did not succeed.
func (s *Summary) FailedBuilds() []models.BuildResult {
	var failed []models.BuildResult
	for _, result := range s.Results {
		if !result.Succeeded() {
			failed = append(failed, result)
		}
	}
	return failed
}

// Render produces the end-of-run report listing every staged artifact and
// every failure with its diagnostics.
func (s *Summary) Render() string {
	var b strings.Builder
	for _, artifact := range s.Artifacts {
		fmt.Fprintf(&b, "staged %s (sha256 %s)\n", artifact.Name, artifact.SHA256)
	}
	for _, result := range s.FailedBuilds() {
		fmt.Fprintf(&b, "build %s: %s\n%s\n", result.Config.Name, result.Status, indent(result.Diagnostic()))
	}
	if s.Publish != nil {
		for _, outcome := range s.Publish.Outcomes {
			switch outcome.State {
			case models.PublishFailed:
				fmt.Fprintf(&b, "publish %s: failed\n%s\n", outcome.Artifact.Name, indent(outcome.Err.Error()))
			default:
				fmt.Fprintf(&b, "publish %s: %s\n", outcome.Artifact.Name, outcome.State)
			}
		}
	}
	fmt.Fprintf(&b, "result: %s\n", s.Phase)
	return b.String()
}

func indent(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, "\n")
}

// Run executes the pipeline for the requested configuration names and
// returns a summary alongside the overall error, nil only when the run
// reached Done.
func (o *Orchestrator) Run(ctx context.Context, names []string) (*Summary, error) {
	o.phase = PhaseParsing
	summary := &Summary{RunID: uuid.NewString(), Phase: PhaseParsing}
	logger := o.logger().With("run", summary.RunID)

	if len(names) == 0 {
		return summary, o.fail(summary, ErrNoConfigsRequested)
	}

	// Resolving: every name must exist before any build starts.
	if err := o.advance(PhaseResolving); err != nil {
		return summary, o.fail(summary, err)
	}
	configs := make([]models.BuildConfig, 0, len(names))
	var unknown []error
	for _, name := range names {
		cfg, err := o.Registry.Lookup(name)
		if err != nil {
			unknown = append(unknown, err)
			continue
		}
		configs = append(configs, cfg)
	}
	if len(unknown) > 0 {
		return summary, o.fail(summary, errors.Join(unknown...))
	}
	logger.Info("configurations resolved", "count", len(configs))

	// Building: the staging area must exist before the pool starts.
	if err := o.advance(PhaseBuilding); err != nil {
		return summary, o.fail(summary, err)
	}
	if err := o.Collector.Prepare(); err != nil {
		return summary, o.fail(summary, err)
	}
	summary.Results = o.runBuilds(ctx, logger, configs)
	if err := ctx.Err(); err != nil {
		// An interrupt is not a build failure; the cancellation must
		// reach the exit-code mapping intact.
		return summary, o.fail(summary, fmt.Errorf("run interrupted: %w", err))
	}

	// Collecting: stage whatever succeeded, even when siblings failed,
	// so partial results remain inspectable.
	if err := o.advance(PhaseCollecting); err != nil {
		return summary, o.fail(summary, err)
	}
	artifacts, collectErr := o.Collector.Collect(ctx, summary.Results)
	summary.Artifacts = artifacts
	if collectErr != nil {
		return summary, o.fail(summary, collectErr)
	}
	if failed := summary.FailedBuilds(); len(failed) > 0 {
		return summary, o.fail(summary, buildFailureError(failed))
	}

	if o.SkipPublish {
		logger.Info("publishing skipped by request", "artifacts", len(summary.Artifacts))
		if err := o.advance(PhaseDone); err != nil {
			return summary, o.fail(summary, err)
		}
		summary.Phase = PhaseDone
		return summary, nil
	}

	if err := o.advance(PhasePublishing); err != nil {
		return summary, o.fail(summary, err)
	}
	if o.Publisher == nil {
		return summary, o.fail(summary, errors.New("publisher is not configured"))
	}
	report := o.Publisher.Publish(ctx, summary.Artifacts)
	summary.Publish = &report
	if !report.OK() {
		return summary, o.fail(summary, publishFailureError(report))
	}

	if err := o.advance(PhaseDone); err != nil {
		return summary, o.fail(summary, err)
	}
	summary.Phase = PhaseDone
	logger.Info("release run completed", "artifacts", len(summary.Artifacts))
	return summary, nil
}

// runBuilds executes one build per configuration on a bounded worker pool.
// Sibling failures never cancel other builds; only ctx does.
func (o *Orchestrator) runBuilds(ctx context.Context, logger *slog.Logger, configs []models.BuildConfig) []models.BuildResult {
	type item struct {
		idx int
		cfg models.BuildConfig
	}

	workers := o.jobs()
	if workers > len(configs) {
		workers = len(configs)
	}
	logger.Info("building configurations", "count", len(configs), "workers", workers)

	results := make([]models.BuildResult, len(configs))
	workCh := make(chan item)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				results[w.idx] = o.Compiler.Compile(ctx, w.cfg, o.ProjectDir)
			}
		}()
	}
	for i, cfg := range configs {
		workCh <- item{idx: i, cfg: cfg}
	}
	close(workCh)
	wg.Wait()

	return results
}

func buildFailureError(failed []models.BuildResult) error {
	names := make([]string, 0, len(failed))
	for _, result := range failed {
		names = append(names, result.Config.Name)
	}
	return fmt.Errorf("%d build(s) failed: %s", len(failed), strings.Join(names, ", "))
}

func publishFailureError(report models.PublishReport) error {
	failed := report.Failed()
	names := make([]string, 0, len(failed))
	for _, outcome := range failed {
		names = append(names, outcome.Artifact.Name)
	}
	return fmt.Errorf("%d artifact(s) failed to publish: %s", len(failed), strings.Join(names, ", "))
}

func (o *Orchestrator) fail(summary *Summary, cause error) error {
	if !o.phase.Terminal() {
		o.phase = PhaseFailed
	}
	summary.Phase = PhaseFailed
	return cause
}

func (o *Orchestrator) jobs() int {
	if o.Jobs > 0 {
		return o.Jobs
	}
	return runtime.NumCPU()
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
