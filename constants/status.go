package constants

// JobState is the terminal (or in-flight) state of one audit job within a
// batch pass.
type JobState string

// Stable values (these exact strings appear in run summaries and logs).
const (
	JobPending  JobState = "PENDING"  // discovered, not yet started
	JobRunning  JobState = "RUNNING"  // auditor call in flight
	JobComplete JobState = "COMPLETE" // audited, aggregated, marker written
	JobFailed   JobState = "FAILED"   // terminal failure, eligible for resume
	JobSkipped  JobState = "SKIPPED"  // resume mode found a completion marker
)
