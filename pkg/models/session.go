package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ScrapingSession owns every ImageRecord created during one pipeline run.
// Counters are always derived by scanning the record list, never incremented
// independently, so a stats snapshot is internally consistent at any point.
type ScrapingSession struct {
	ID         string
	SeedURL    string
	OutputDir  string
	StartedAt  time.Time
	FinishedAt time.Time

	mu      sync.Mutex
	records []*ImageRecord
	byURL   map[string]*ImageRecord
}

// NewSession creates a session for one pipeline invocation
func NewSession(seedURL, outputDir string) *ScrapingSession {
	return &ScrapingSession{
		ID:        uuid.New().String(),
		SeedURL:   seedURL,
		OutputDir: outputDir,
		StartedAt: time.Now(),
		byURL:     make(map[string]*ImageRecord),
	}
}

// AddRecord registers a record under its URL. Returns false if a record with
// the same URL already exists (one record per distinct URL per session).
func (s *ScrapingSession) AddRecord(rec *ImageRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byURL[rec.URL]; exists {
		return false
	}
	s.byURL[rec.URL] = rec
	s.records = append(s.records, rec)
	return true
}

// Record looks up a record by URL
func (s *ScrapingSession) Record(url string) (*ImageRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byURL[url]
	return rec, ok
}

// Records returns the records in insertion (discovery) order
func (s *ScrapingSession) Records() []*ImageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ImageRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Finish stamps the session end time
func (s *ScrapingSession) Finish() {
	s.FinishedAt = time.Now()
}

// SessionStats holds per-stage counts derived from the record set.
// Each stage count includes records that progressed past that stage, so
// discovered >= downloaded >= validated >= saved always holds.
type SessionStats struct {
	Discovered  int     `json:"discovered"`
	Downloaded  int     `json:"downloaded"`
	Validated   int     `json:"validated"`
	Saved       int     `json:"saved"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	SuccessRate float64 `json:"success_rate"`
}

// Stats computes a consistent snapshot by scanning all records
func (s *ScrapingSession) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := SessionStats{Discovered: len(s.records)}
	for _, rec := range s.records {
		switch rec.Status {
		case StatusFailed:
			stats.Failed++
		case StatusSkipped:
			stats.Skipped++
		default:
			rank := statusRank[rec.Status]
			if rank >= statusRank[StatusDownloaded] {
				stats.Downloaded++
			}
			if rank >= statusRank[StatusValidated] {
				stats.Validated++
			}
			if rank >= statusRank[StatusSaved] {
				stats.Saved++
			}
		}
	}
	if stats.Discovered > 0 {
		stats.SuccessRate = float64(stats.Saved) / float64(stats.Discovered)
	}
	return stats
}

// ImageReport is the per-image entry in the final session report
type ImageReport struct {
	URL           string   `json:"url"`
	Status        string   `json:"status"`
	Width         int      `json:"width,omitempty"`
	Height        int      `json:"height,omitempty"`
	Format        string   `json:"format,omitempty"`
	Megapixels    *float64 `json:"megapixels,omitempty"`
	LocalPath     string   `json:"local_path,omitempty"`
	Caption       string   `json:"caption,omitempty"`
	AltText       string   `json:"alt_text,omitempty"`
	Title         string   `json:"title,omitempty"`
	HTMLCaption   string   `json:"html_caption,omitempty"`
	FailureReason string   `json:"failure_reason,omitempty"`
	ErrorMessage  string   `json:"error_message,omitempty"`
}

// SessionReport is the structured run summary handed to the external job runner
type SessionReport struct {
	URL             string       `json:"url"`
	StartedAt       time.Time    `json:"started_at"`
	FinishedAt      time.Time    `json:"finished_at"`
	DurationSeconds float64      `json:"duration_seconds"`
	Statistics      SessionStats  `json:"statistics"`
	Images          []ImageReport `json:"images"`
}

// Report builds the serializable run summary. Every discovered URL appears
// with its terminal status and reason, so partial runs stay diagnosable.
func (s *ScrapingSession) Report() *SessionReport {
	stats := s.Stats()
	records := s.Records()

	report := &SessionReport{
		URL:        s.SeedURL,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Statistics: stats,
		Images:     make([]ImageReport, 0, len(records)),
	}
	if !s.FinishedAt.IsZero() {
		report.DurationSeconds = s.FinishedAt.Sub(s.StartedAt).Seconds()
	}

	for _, rec := range records {
		entry := ImageReport{
			URL:           rec.URL,
			Status:        rec.Status.String(),
			Width:         rec.Width,
			Height:        rec.Height,
			Format:        rec.Format,
			LocalPath:     rec.LocalPath,
			Caption:       rec.Caption(),
			AltText:       rec.AltText,
			Title:         rec.Title,
			HTMLCaption:   rec.HTMLCaption,
			FailureReason: string(rec.FailureReason),
			ErrorMessage:  rec.ErrorMessage,
		}
		if mp, ok := rec.Megapixels(); ok {
			entry.Megapixels = &mp
		}
		report.Images = append(report.Images, entry)
	}
	return report
}
