package pipeline

import "time"

// Status is the completion flag on a Result.
type Status int

const (
	// StatusCompleted means the session closed normally after responding.
	StatusCompleted Status = iota

	// StatusTruncated means the deadline fired; Text holds whatever was
	// collected before cancellation.
	StatusTruncated

	// StatusFailed means a worker failed; Err holds the typed cause.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusTruncated:
		return "truncated"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the aggregated outcome of one pipeline run. Owned by the caller
// once the pipeline returns.
type Result struct {
	// Text is the concatenated response fragments, in arrival order.
	Text string

	Status Status

	// Err is the failure cause when Status is StatusFailed, or the deadline
	// error when StatusTruncated.
	Err error

	// RunID identifies the run in logs and API responses.
	RunID string

	// FramesSent and AudioChunksSent count the units forwarded to the session.
	FramesSent      int
	AudioChunksSent int

	Elapsed time.Duration
}
