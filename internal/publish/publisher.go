// Package publish uploads staged artifacts to a release target, treating the
// target as an opaque upload endpoint.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/relforge/relforge/internal/models"
)

// ConflictPolicy decides what happens when an asset with the same name
// already exists at the release target.
type ConflictPolicy string

// Supported conflict policies.
const (
	ConflictSkip      ConflictPolicy = "skip"
	ConflictOverwrite ConflictPolicy = "overwrite"
)

// ParseConflictPolicy validates a user-supplied policy value.
func ParseConflictPolicy(value string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case ConflictSkip:
		return ConflictSkip, nil
	case ConflictOverwrite:
		return ConflictOverwrite, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q (want skip or overwrite)", value)
	}
}

// ReleaseHost is the minimal surface of a release-hosting API.
type ReleaseHost interface {
	// ExistingAssets lists the asset names already present at the target.
	ExistingAssets(ctx context.Context) (map[string]struct{}, error)

	// Upload transfers one artifact all-or-nothing.
	Upload(ctx context.Context, artifact models.Artifact) error

	// Delete removes an asset by name, for the overwrite policy.
	Delete(ctx context.Context, name string) error
}

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// Publisher uploads artifacts one by one, retrying transient upload failures
// with jittered backoff. One artifact failing never blocks its siblings.
type Publisher struct {
	Logger *slog.Logger
	Host   ReleaseHost

	OnConflict ConflictPolicy

	// MaxAttempts bounds the upload attempts per artifact.
	MaxAttempts int
	// BaseDelay is the backoff unit between attempts.
	BaseDelay time.Duration

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// Publish uploads each artifact according to the conflict policy and returns
// a report with one outcome per artifact.
func (p *Publisher) Publish(ctx context.Context, artifacts []models.Artifact) models.PublishReport {
	report := models.PublishReport{Outcomes: make([]models.AssetOutcome, 0, len(artifacts))}

	existing, err := p.Host.ExistingAssets(ctx)
	if err != nil {
		// Without the asset listing no conflict decision is possible.
		for _, artifact := range artifacts {
			report.Outcomes = append(report.Outcomes, models.AssetOutcome{
				Artifact: artifact,
				State:    models.PublishFailed,
				Err:      fmt.Errorf("list release assets: %w", err),
			})
		}
		return report
	}

	for _, artifact := range artifacts {
		report.Outcomes = append(report.Outcomes, p.publishOne(ctx, artifact, existing))
	}
	return report
}

func (p *Publisher) publishOne(ctx context.Context, artifact models.Artifact, existing map[string]struct{}) models.AssetOutcome {
	logger := p.logger().With("artifact", artifact.Name)

	if _, ok := existing[artifact.Name]; ok {
		switch p.conflictPolicy() {
		case ConflictSkip:
			logger.Info("asset already published, skipping")
			return models.AssetOutcome{Artifact: artifact, State: models.PublishSkipped}
		case ConflictOverwrite:
			if err := p.Host.Delete(ctx, artifact.Name); err != nil {
				return models.AssetOutcome{
					Artifact: artifact,
					State:    models.PublishFailed,
					Err:      fmt.Errorf("delete existing asset %q: %w", artifact.Name, err),
				}
			}
			logger.Info("existing asset removed for overwrite")
		}
	}

	var lastErr error
	attempts := p.maxAttempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		if err := p.Host.Upload(ctx, artifact); err != nil {
			lastErr = err
			logger.Warn("upload attempt failed", "attempt", attempt, "error", err)
			if attempt < attempts {
				p.wait(ctx, backoffDelay(p.baseDelay(), attempt))
			}
			continue
		}
		logger.Info("asset uploaded", "attempts", attempt, "size", artifact.Size)
		return models.AssetOutcome{Artifact: artifact, State: models.PublishUploaded}
	}

	return models.AssetOutcome{
		Artifact: artifact,
		State:    models.PublishFailed,
		Err:      fmt.Errorf("upload %q failed after %d attempts: %w", artifact.Name, attempts, lastErr),
	}
}

// backoffDelay doubles the delay per attempt and adds up to 50% jitter.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base << (attempt - 1)
	jitter := time.Duration(rand.Int64N(int64(delay)/2 + 1))
	return delay + jitter
}

func (p *Publisher) wait(ctx context.Context, d time.Duration) {
	if p.sleep != nil {
		p.sleep(ctx, d)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (p *Publisher) conflictPolicy() ConflictPolicy {
	if p.OnConflict == "" {
		return ConflictSkip
	}
	return p.OnConflict
}

func (p *Publisher) maxAttempts() int {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return defaultMaxAttempts
}

func (p *Publisher) baseDelay() time.Duration {
	if p.BaseDelay > 0 {
		return p.BaseDelay
	}
	return defaultBaseDelay
}

func (p *Publisher) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
