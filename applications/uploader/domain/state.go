package domain

const (
	SuccessMessage = "File uploaded successfully!"
	FailureMessage = "Failed to upload file. Please try again."
)

type UploadState int

const (
	Idle UploadState = iota
	InFlight
)

func (s UploadState) String() string {
	switch s {
	case Idle:
		return "idle"
	case InFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

type OutcomeType string

const (
	OutcomeSuccess OutcomeType = "success"
	OutcomeFailure OutcomeType = "error"
)

// Outcome is the result of the last settled submission.
type Outcome struct {
	Type    OutcomeType
	Message string
}

func Success() *Outcome {
	return &Outcome{Type: OutcomeSuccess, Message: SuccessMessage}
}

func Failure() *Outcome {
	return &Outcome{Type: OutcomeFailure, Message: FailureMessage}
}

// Snapshot is a copy of the form state at one point in time.
type Snapshot struct {
	File    Blob
	State   UploadState
	Outcome *Outcome
}

// CanSubmit reports whether a submission would be started.
func (s Snapshot) CanSubmit() bool {
	return s.File != nil && s.State == Idle
}
