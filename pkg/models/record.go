package models

import (
	"net/url"
	"time"
)

// ImageMeta holds text harvested from the HTML surrounding an image tag.
// Set once by the crawler and never overwritten downstream.
type ImageMeta struct {
	AltText     string `json:"alt_text,omitempty"`
	Title       string `json:"title,omitempty"`
	HTMLCaption string `json:"html_caption,omitempty"`
}

// Caption returns the best available caption text: an explicit HTML caption
// (figcaption or adjacent text) wins over the alt attribute.
func (m ImageMeta) Caption() string {
	if m.HTMLCaption != "" {
		return m.HTMLCaption
	}
	return m.AltText
}

// ImageRecord tracks one discovered image URL through the pipeline.
// URL is the unique key within a session and must not change after creation.
// A record is owned by exactly one pipeline run; fields are populated
// progressively by each stage.
type ImageRecord struct {
	URL           string        `json:"url"`
	SourceDomain  string        `json:"source_domain,omitempty"`
	DiscoveredAt  time.Time     `json:"discovered_at"`
	Status        ImageStatus   `json:"status"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`

	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	Format         string `json:"format,omitempty"` // lowercase, no leading dot
	FileSizeBytes  int64  `json:"file_size_bytes,omitempty"`
	PerceptualHash string `json:"perceptual_hash,omitempty"`
	LocalPath      string `json:"local_path,omitempty"`

	ImageMeta
}

// NewImageRecord creates a record in Discovered state, deriving the source
// domain from the URL host.
func NewImageRecord(rawURL string, meta ImageMeta) *ImageRecord {
	rec := &ImageRecord{
		URL:          rawURL,
		DiscoveredAt: time.Now(),
		Status:       StatusDiscovered,
		ImageMeta:    meta,
	}
	if parsed, err := url.Parse(rawURL); err == nil {
		rec.SourceDomain = parsed.Hostname()
	}
	return rec
}

// Advance moves the record forward to next. Returns false (leaving the record
// untouched) if the transition would violate the forward-only state machine.
func (r *ImageRecord) Advance(next ImageStatus) bool {
	if !r.Status.CanTransition(next) || next.IsTerminal() {
		return false
	}
	r.Status = next
	return true
}

// MarkFailed transitions the record to Failed with the given reason.
// A no-op if the record is already terminal (status monotonicity).
func (r *ImageRecord) MarkFailed(reason FailureReason, msg string) bool {
	if !r.Status.CanTransition(StatusFailed) {
		return false
	}
	r.Status = StatusFailed
	r.FailureReason = reason
	r.ErrorMessage = msg
	return true
}

// MarkSkipped transitions the record to Skipped with the given reason.
// A no-op if the record is already terminal.
func (r *ImageRecord) MarkSkipped(reason FailureReason, msg string) bool {
	if !r.Status.CanTransition(StatusSkipped) {
		return false
	}
	r.Status = StatusSkipped
	r.FailureReason = reason
	r.ErrorMessage = msg
	return true
}

// HasDimensions reports whether both width and height are known and non-zero
func (r *ImageRecord) HasDimensions() bool {
	return r.Width > 0 && r.Height > 0
}

// Megapixels returns width*height/1e6. ok is false if either dimension is
// missing or zero.
func (r *ImageRecord) Megapixels() (mp float64, ok bool) {
	if !r.HasDimensions() {
		return 0, false
	}
	return float64(r.Width) * float64(r.Height) / 1_000_000, true
}

// AspectRatio returns max(w,h)/min(w,h), always >= 1. ok is false if either
// dimension is missing or zero (guards division by zero).
func (r *ImageRecord) AspectRatio() (ratio float64, ok bool) {
	if !r.HasDimensions() {
		return 0, false
	}
	w, h := float64(r.Width), float64(r.Height)
	if w >= h {
		return w / h, true
	}
	return h / w, true
}
