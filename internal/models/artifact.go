package models

// Artifact is a staged, checksummed release file ready for publication.
// The collector owns it until it is handed to the publisher.
type Artifact struct {
	ID     string
	Name   string
	Path   string
	SHA256 string
	Size   int64
}

// PublishState is the per-asset outcome of a publish attempt.
type PublishState string

// Supported publish states.
const (
	PublishUploaded PublishState = "uploaded"
	PublishSkipped  PublishState = "skipped"
	PublishFailed   PublishState = "failed"
)

// AssetOutcome records what happened to a single artifact at the release target.
type AssetOutcome struct {
	Artifact Artifact
	State    PublishState
	Err      error
}

// PublishReport aggregates the per-artifact outcomes of one publish run.
type PublishReport struct {
	Outcomes []AssetOutcome
}

// OK reports whether every artifact was uploaded or safely skipped.
func (r PublishReport) OK() bool {
	for _, outcome := range r.Outcomes {
		if outcome.State == PublishFailed {
			return false
		}
	}
	return true
}

// Failed returns the outcomes whose upload was not completed.
func (r PublishReport) Failed() []AssetOutcome {
	var failed []AssetOutcome
	for _, outcome := range r.Outcomes {
		if outcome.State == PublishFailed {
			failed = append(failed, outcome)
		}
	}
	return failed
}
