package dedup

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"img-scraper/pkg/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// writePattern renders a half-and-half test image. Uniform fills all hash to
// the same average hash regardless of color, so distinct patterns are needed
// to produce distinct hashes.
func writePattern(t *testing.T, dir, name string, vertical bool) string {
	t.Helper()
	const size = 64
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dark := x < size/2
			if vertical {
				dark = y < size/2
			}
			if dark {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func recordFor(path string) *models.ImageRecord {
	rec := models.NewImageRecord("https://example.com/"+filepath.Base(path), models.ImageMeta{})
	rec.Advance(models.StatusDownloaded)
	rec.Advance(models.StatusValidated)
	rec.LocalPath = path
	return rec
}

func TestIsDuplicate_ExactCopy(t *testing.T) {
	dir := t.TempDir()
	a := writePattern(t, dir, "a.png", false)
	b := writePattern(t, dir, "b.png", false) // identical pixels, different file

	d := NewDeduplicator(10, testLogger())
	assert.False(t, d.IsDuplicate(recordFor(a)))
	assert.True(t, d.IsDuplicate(recordFor(b)))
}

func TestIsDuplicate_DistinctPatterns(t *testing.T) {
	dir := t.TempDir()
	horizontal := writePattern(t, dir, "h.png", false)
	vertical := writePattern(t, dir, "v.png", true)

	d := NewDeduplicator(10, testLogger())
	assert.False(t, d.IsDuplicate(recordFor(horizontal)))
	assert.False(t, d.IsDuplicate(recordFor(vertical)))
}

func TestIsDuplicate_ThresholdZeroStillCatchesIdentical(t *testing.T) {
	dir := t.TempDir()
	a := writePattern(t, dir, "a.png", true)
	b := writePattern(t, dir, "b.png", true)

	d := NewDeduplicator(0, testLogger())
	assert.False(t, d.IsDuplicate(recordFor(a)))
	assert.True(t, d.IsDuplicate(recordFor(b)))
}

func TestIsDuplicate_FailsOpen(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("not an image"), 0644))

	d := NewDeduplicator(10, testLogger())
	rec := recordFor(corrupt)
	assert.False(t, d.IsDuplicate(rec), "unhashable images are kept")
	assert.Empty(t, rec.PerceptualHash)

	missing := recordFor(filepath.Join(dir, "missing.png"))
	assert.False(t, d.IsDuplicate(missing))
}

func TestDeduplicateBatch(t *testing.T) {
	dir := t.TempDir()
	first := writePattern(t, dir, "first.png", false)
	copy1 := writePattern(t, dir, "copy.png", false)
	other := writePattern(t, dir, "other.png", true)

	recs := []*models.ImageRecord{recordFor(first), recordFor(copy1), recordFor(other)}

	d := NewDeduplicator(10, testLogger())
	unique := d.DeduplicateBatch(recs)

	require.Len(t, unique, 2)
	assert.Same(t, recs[0], unique[0])
	assert.Same(t, recs[2], unique[1])

	assert.Equal(t, models.StatusSkipped, recs[1].Status)
	assert.Equal(t, models.ReasonDuplicate, recs[1].FailureReason)
	assert.NotEmpty(t, recs[0].PerceptualHash)
}

func TestDeduplicateBatch_SkipMessageNamesCanonicalImage(t *testing.T) {
	dir := t.TempDir()
	first := writePattern(t, dir, "first.png", false)
	second := writePattern(t, dir, "second.png", false)

	recs := []*models.ImageRecord{recordFor(first), recordFor(second)}

	d := NewDeduplicator(10, testLogger())
	d.DeduplicateBatch(recs)

	require.Equal(t, models.StatusSkipped, recs[1].Status)
	assert.Contains(t, recs[1].ErrorMessage, recs[0].URL,
		"skip message identifies the image the duplicate matched")
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	a := writePattern(t, dir, "a.png", false)
	b := writePattern(t, dir, "b.png", false)

	d := NewDeduplicator(10, testLogger())
	assert.False(t, d.IsDuplicate(recordFor(a)))
	d.Reset()
	assert.False(t, d.IsDuplicate(recordFor(b)), "index is empty after Reset")
}

func TestDeduplicateBatch_SkipsTerminalRecords(t *testing.T) {
	dir := t.TempDir()
	a := writePattern(t, dir, "a.png", false)

	failed := recordFor(a)
	failed.MarkFailed(models.ReasonDownloadError, "failed earlier")

	d := NewDeduplicator(10, testLogger())
	unique := d.DeduplicateBatch([]*models.ImageRecord{failed})
	assert.Empty(t, unique)
	assert.Equal(t, models.ReasonDownloadError, failed.FailureReason)
}
