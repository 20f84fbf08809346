package constants

// Provenance records which matcher stage produced a result.
type Provenance string

// Stable values (exported in reports and API responses).
const (
	ProvenanceConfirmed Provenance = "confirmed" // operator-confirmed mapping
	ProvenanceSemantic  Provenance = "semantic"  // semantic assist suggestion
	ProvenanceLocal     Provenance = "local"     // local similarity scan
	ProvenanceNone      Provenance = "none"      // no candidate at all
)

// MatchStatus is the outcome of matching one recognized line.
type MatchStatus string

const (
	MatchStatusMatched        MatchStatus = "matched"
	MatchStatusBelowThreshold MatchStatus = "below_threshold"
	MatchStatusNotFound       MatchStatus = "not_found"
)

// JobStatus tracks a queued document.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "QUEUED"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusDone    JobStatus = "DONE"
	JobStatusFailed  JobStatus = "FAILED"
)
