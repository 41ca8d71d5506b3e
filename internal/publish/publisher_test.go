package publish

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/relforge/relforge/internal/models"
)

type fakeHost struct {
	existing map[string]struct{}
	listErr  error

	uploads    []string
	deletes    []string
	failUpload map[string]int // name -> number of attempts that fail
}

func (h *fakeHost) ExistingAssets(context.Context) (map[string]struct{}, error) {
	if h.listErr != nil {
		return nil, h.listErr
	}
	if h.existing == nil {
		return map[string]struct{}{}, nil
	}
	return h.existing, nil
}

func (h *fakeHost) Upload(_ context.Context, artifact models.Artifact) error {
	if remaining := h.failUpload[artifact.Name]; remaining > 0 {
		h.failUpload[artifact.Name] = remaining - 1
		return errors.New("connection reset")
	}
	h.uploads = append(h.uploads, artifact.Name)
	return nil
}

func (h *fakeHost) Delete(_ context.Context, name string) error {
	h.deletes = append(h.deletes, name)
	return nil
}

func newTestPublisher(host ReleaseHost, policy ConflictPolicy) *Publisher {
	return &Publisher{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Host:        host,
		OnConflict:  policy,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		sleep:       func(context.Context, time.Duration) {},
	}
}

func artifactNamed(name string) models.Artifact {
	return models.Artifact{ID: name + "-id", Name: name, Path: "/nonexistent/" + name}
}

func TestPublishSkipsExistingAssets(t *testing.T) {
	t.Parallel()

	host := &fakeHost{existing: map[string]struct{}{"stool-1.0-linux64.tar.zst": {}}}
	publisher := newTestPublisher(host, ConflictSkip)

	report := publisher.Publish(context.Background(), []models.Artifact{
		artifactNamed("stool-1.0-linux64.tar.zst"),
		artifactNamed("stool-1.0-win64.zip"),
	})

	if !report.OK() {
		t.Fatalf("Publish report not OK: %+v", report.Failed())
	}
	if report.Outcomes[0].State != models.PublishSkipped {
		t.Errorf("existing asset state = %s, want skipped", report.Outcomes[0].State)
	}
	if report.Outcomes[1].State != models.PublishUploaded {
		t.Errorf("new asset state = %s, want uploaded", report.Outcomes[1].State)
	}
	if len(host.uploads) != 1 {
		t.Errorf("uploads = %v, existing asset must not be re-uploaded", host.uploads)
	}
}

func TestPublishSkipIsIdempotent(t *testing.T) {
	t.Parallel()

	host := &fakeHost{existing: map[string]struct{}{}}
	publisher := newTestPublisher(host, ConflictSkip)
	artifacts := []models.Artifact{artifactNamed("stool-1.0-linux64.tar.zst")}

	first := publisher.Publish(context.Background(), artifacts)
	if !first.OK() || first.Outcomes[0].State != models.PublishUploaded {
		t.Fatalf("first publish outcome = %+v, want uploaded", first.Outcomes[0])
	}

	// Re-run against a target that now holds the asset.
	host.existing["stool-1.0-linux64.tar.zst"] = struct{}{}
	second := publisher.Publish(context.Background(), artifacts)
	if !second.OK() {
		t.Fatalf("second publish not OK: %+v", second.Failed())
	}
	if second.Outcomes[0].State != models.PublishSkipped {
		t.Errorf("second publish state = %s, want skipped", second.Outcomes[0].State)
	}
	if len(host.uploads) != 1 {
		t.Errorf("uploads = %v, re-run must not duplicate assets", host.uploads)
	}
}

func TestPublishOverwriteDeletesThenUploads(t *testing.T) {
	t.Parallel()

	host := &fakeHost{existing: map[string]struct{}{"stool-1.0-linux64.tar.zst": {}}}
	publisher := newTestPublisher(host, ConflictOverwrite)

	report := publisher.Publish(context.Background(), []models.Artifact{artifactNamed("stool-1.0-linux64.tar.zst")})
	if !report.OK() {
		t.Fatalf("Publish report not OK: %+v", report.Failed())
	}
	if len(host.deletes) != 1 || host.deletes[0] != "stool-1.0-linux64.tar.zst" {
		t.Errorf("deletes = %v, want the conflicting asset removed first", host.deletes)
	}
	if len(host.uploads) != 1 {
		t.Errorf("uploads = %v, want one upload after delete", host.uploads)
	}
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	host := &fakeHost{failUpload: map[string]int{"stool-1.0-linux64.tar.zst": 2}}
	publisher := newTestPublisher(host, ConflictSkip)

	report := publisher.Publish(context.Background(), []models.Artifact{artifactNamed("stool-1.0-linux64.tar.zst")})
	if !report.OK() {
		t.Fatalf("Publish report not OK after retries: %+v", report.Failed())
	}
	if report.Outcomes[0].State != models.PublishUploaded {
		t.Errorf("state = %s, want uploaded on third attempt", report.Outcomes[0].State)
	}
}

func TestPublishExhaustedRetriesFailOnlyThatArtifact(t *testing.T) {
	t.Parallel()

	host := &fakeHost{failUpload: map[string]int{"stool-1.0-linux64.tar.zst": 5}}
	publisher := newTestPublisher(host, ConflictSkip)

	report := publisher.Publish(context.Background(), []models.Artifact{
		artifactNamed("stool-1.0-linux64.tar.zst"),
		artifactNamed("stool-1.0-win64.zip"),
	})

	if report.OK() {
		t.Fatal("Publish report OK, want failure after exhausted retries")
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Artifact.Name != "stool-1.0-linux64.tar.zst" {
		t.Fatalf("Failed() = %+v, want only the broken artifact", failed)
	}
	if report.Outcomes[1].State != models.PublishUploaded {
		t.Errorf("sibling state = %s, one artifact failing must not block the others", report.Outcomes[1].State)
	}
}

func TestPublishListingFailureFailsAllArtifacts(t *testing.T) {
	t.Parallel()

	host := &fakeHost{listErr: errors.New("503 service unavailable")}
	publisher := newTestPublisher(host, ConflictSkip)

	report := publisher.Publish(context.Background(), []models.Artifact{artifactNamed("stool-1.0-linux64.tar.zst")})
	if report.OK() {
		t.Fatal("Publish report OK, want failure when listing is unavailable")
	}
}

func TestParseConflictPolicy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    ConflictPolicy
		wantErr bool
	}{
		{in: "skip", want: ConflictSkip},
		{in: "OVERWRITE", want: ConflictOverwrite},
		{in: " skip ", want: ConflictSkip},
		{in: "replace", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseConflictPolicy(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseConflictPolicy(%q) error = nil, want non-nil", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseConflictPolicy(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseConflictPolicy(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
