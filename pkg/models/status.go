package models

// ImageStatus represents where an image record is in the pipeline.
// Transitions are forward-only; Failed and Skipped are terminal.
type ImageStatus string

const (
	StatusDiscovered ImageStatus = "discovered" // URL found by the crawler
	StatusDownloaded ImageStatus = "downloaded" // Bytes written to the staging dir
	StatusValidated  ImageStatus = "validated"  // Passed all quality gates
	StatusCaptioned  ImageStatus = "captioned"  // Caption attached (external stage)
	StatusSaved      ImageStatus = "saved"      // Accepted, handed to persistence
	StatusFailed     ImageStatus = "failed"     // Terminal failure
	StatusSkipped    ImageStatus = "skipped"    // Terminal skip (e.g. duplicate)
)

// statusRank orders the forward progression. Terminal states are not ranked.
var statusRank = map[ImageStatus]int{
	StatusDiscovered: 0,
	StatusDownloaded: 1,
	StatusValidated:  2,
	StatusCaptioned:  3,
	StatusSaved:      4,
}

// String implements fmt.Stringer for logging
func (s ImageStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsTerminal returns true for states that admit no further transitions
func (s ImageStatus) IsTerminal() bool {
	return s == StatusFailed || s == StatusSkipped
}

// IsValid returns true if the status is a known pipeline value
func (s ImageStatus) IsValid() bool {
	if s.IsTerminal() {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether a record may move from s to next.
// Any non-terminal state may move forward or to a terminal state;
// terminal states admit nothing.
func (s ImageStatus) CanTransition(next ImageStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next.IsTerminal() {
		return true
	}
	fromRank, fromOK := statusRank[s]
	toRank, toOK := statusRank[next]
	return fromOK && toOK && toRank > fromRank
}

// FailureReason categorizes why a record ended in Failed or Skipped
type FailureReason string

const (
	ReasonDownloadError      FailureReason = "download_error"
	ReasonInvalidFormat      FailureReason = "invalid_format"
	ReasonTooSmall           FailureReason = "too_small"
	ReasonInvalidAspectRatio FailureReason = "invalid_aspect_ratio"
	ReasonDuplicate          FailureReason = "duplicate"
	ReasonCaptionError       FailureReason = "caption_error"
	ReasonSaveError          FailureReason = "save_error"
	ReasonOther              FailureReason = "other"
)

// String implements fmt.Stringer for logging
func (r FailureReason) String() string {
	if r == "" {
		return "none"
	}
	return string(r)
}
