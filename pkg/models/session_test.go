package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AddRecord_UniqueByURL(t *testing.T) {
	s := NewSession("https://example.com", t.TempDir())

	assert.True(t, s.AddRecord(NewImageRecord("https://example.com/a.jpg", ImageMeta{})))
	assert.False(t, s.AddRecord(NewImageRecord("https://example.com/a.jpg", ImageMeta{})), "duplicate URL must be rejected")
	assert.True(t, s.AddRecord(NewImageRecord("https://example.com/b.jpg", ImageMeta{})))

	assert.Len(t, s.Records(), 2)
	_, found := s.Record("https://example.com/a.jpg")
	assert.True(t, found)
	_, found = s.Record("https://example.com/missing.jpg")
	assert.False(t, found)
}

func TestSession_Records_PreservesDiscoveryOrder(t *testing.T) {
	s := NewSession("https://example.com", t.TempDir())
	urls := []string{"https://e.com/1.jpg", "https://e.com/2.jpg", "https://e.com/3.jpg"}
	for _, u := range urls {
		s.AddRecord(NewImageRecord(u, ImageMeta{}))
	}
	got := s.Records()
	require.Len(t, got, 3)
	for i, u := range urls {
		assert.Equal(t, u, got[i].URL)
	}
}

func TestSession_Stats_CountersAreConsistent(t *testing.T) {
	s := NewSession("https://example.com", t.TempDir())

	saved := NewImageRecord("https://e.com/saved.jpg", ImageMeta{})
	saved.Advance(StatusDownloaded)
	saved.Advance(StatusValidated)
	saved.Advance(StatusSaved)
	s.AddRecord(saved)

	validated := NewImageRecord("https://e.com/validated.jpg", ImageMeta{})
	validated.Advance(StatusDownloaded)
	validated.Advance(StatusValidated)
	s.AddRecord(validated)

	failedDownload := NewImageRecord("https://e.com/failed.jpg", ImageMeta{})
	failedDownload.MarkFailed(ReasonDownloadError, "HTTP 500")
	s.AddRecord(failedDownload)

	dup := NewImageRecord("https://e.com/dup.jpg", ImageMeta{})
	dup.Advance(StatusDownloaded)
	dup.Advance(StatusValidated)
	dup.MarkSkipped(ReasonDuplicate, "duplicate of saved.jpg")
	s.AddRecord(dup)

	discoveredOnly := NewImageRecord("https://e.com/pending.jpg", ImageMeta{})
	s.AddRecord(discoveredOnly)

	stats := s.Stats()
	assert.Equal(t, 5, stats.Discovered)
	assert.Equal(t, 2, stats.Downloaded)
	assert.Equal(t, 2, stats.Validated)
	assert.Equal(t, 1, stats.Saved)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Skipped)
	assert.InDelta(t, 0.2, stats.SuccessRate, 1e-9)

	// Monotonic funnel: each stage is a subset of the previous one
	assert.GreaterOrEqual(t, stats.Discovered, stats.Downloaded)
	assert.GreaterOrEqual(t, stats.Downloaded, stats.Validated)
	assert.GreaterOrEqual(t, stats.Validated, stats.Saved)
}

func TestSession_Report_IncludesEveryRecord(t *testing.T) {
	s := NewSession("https://example.com", t.TempDir())

	good := NewImageRecord("https://e.com/good.jpg", ImageMeta{AltText: "alt", HTMLCaption: "cap"})
	good.Width, good.Height, good.Format = 800, 600, "jpg"
	good.Advance(StatusDownloaded)
	good.Advance(StatusValidated)
	good.Advance(StatusSaved)
	s.AddRecord(good)

	bad := NewImageRecord("https://e.com/bad.jpg", ImageMeta{})
	bad.MarkFailed(ReasonDownloadError, "connection refused")
	s.AddRecord(bad)

	s.Finish()
	report := s.Report()

	require.Len(t, report.Images, 2)
	assert.Equal(t, "https://example.com", report.URL)
	assert.GreaterOrEqual(t, report.DurationSeconds, 0.0)

	first := report.Images[0]
	assert.Equal(t, "saved", first.Status)
	require.NotNil(t, first.Megapixels)
	assert.InDelta(t, 0.48, *first.Megapixels, 1e-9)
	assert.Equal(t, "cap", first.Caption)

	second := report.Images[1]
	assert.Equal(t, "failed", second.Status)
	assert.Equal(t, "download_error", second.FailureReason)
	assert.Equal(t, "connection refused", second.ErrorMessage)
	assert.Nil(t, second.Megapixels, "no dimensions -> no megapixels in report")
}
