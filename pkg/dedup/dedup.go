package dedup

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/corona10/goimagehash"
	"github.com/sirupsen/logrus"

	"img-scraper/pkg/models"
	"img-scraper/pkg/utils"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Deduplicator detects near-duplicate images by perceptual average hash.
// Two images whose hashes are within the Hamming distance threshold are
// considered the same picture even when resized or re-encoded. The index is
// per-instance; Reset clears it between sessions.
//
// Hashing errors fail open: a record that cannot be hashed is kept rather
// than discarded.
type Deduplicator struct {
	threshold int

	mu      sync.Mutex
	entries []indexEntry

	log *logrus.Logger
}

// indexEntry ties an accepted hash to the record that first carried it, so
// duplicates can name the image they matched.
type indexEntry struct {
	hash *goimagehash.ImageHash
	rec  *models.ImageRecord
}

// NewDeduplicator creates a Deduplicator with the given Hamming distance
// threshold. Negative thresholds are treated as zero (exact hash match only).
func NewDeduplicator(threshold int, log *logrus.Logger) *Deduplicator {
	if threshold < 0 {
		threshold = 0
	}
	return &Deduplicator{threshold: threshold, log: log}
}

// IsDuplicate hashes the record's local file and compares it against every
// previously accepted image. New hashes are added to the index. The record's
// PerceptualHash field is set as a side effect.
func (d *Deduplicator) IsDuplicate(rec *models.ImageRecord) bool {
	_, dup := d.matchOrAdd(rec)
	return dup
}

// matchOrAdd returns the first-accepted record whose hash is within the
// threshold of rec's, or adds rec to the index when no match exists.
func (d *Deduplicator) matchOrAdd(rec *models.ImageRecord) (canonical *models.ImageRecord, dup bool) {
	recLog := d.log.WithField("url", rec.URL)

	hash, err := d.hashFile(rec.LocalPath)
	if err != nil {
		recLog.Warnf("Could not hash image, keeping it: %v", err)
		return nil, false
	}
	rec.PerceptualHash = hash.ToString()

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, entry := range d.entries {
		distance, err := hash.Distance(entry.hash)
		if err != nil {
			continue
		}
		if distance <= d.threshold {
			recLog.WithFields(logrus.Fields{"distance": distance, "matched": entry.rec.URL}).Debug("Duplicate image detected")
			return entry.rec, true
		}
	}
	d.entries = append(d.entries, indexEntry{hash: hash, rec: rec})
	return nil, false
}

// DeduplicateBatch processes records in order, marking duplicates Skipped and
// keeping the survivors. A duplicate's skip message names the image it
// matched so clusters stay diagnosable in the report.
func (d *Deduplicator) DeduplicateBatch(recs []*models.ImageRecord) []*models.ImageRecord {
	unique := make([]*models.ImageRecord, 0, len(recs))
	for _, rec := range recs {
		if rec.Status.IsTerminal() {
			continue
		}
		if canonical, dup := d.matchOrAdd(rec); dup {
			rec.MarkSkipped(models.ReasonDuplicate, fmt.Sprintf("perceptual duplicate of %s", canonical.URL))
			continue
		}
		unique = append(unique, rec)
	}
	d.log.WithFields(logrus.Fields{"checked": len(recs), "unique": len(unique)}).Info("Deduplication complete")
	return unique
}

// Reset clears the hash index.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	d.entries = nil
	d.mu.Unlock()
}

func (d *Deduplicator) hashFile(path string) (*goimagehash.ImageHash, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: record has no local file", utils.ErrFilesystem)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrFilesystem, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrImageDecode, err)
	}
	return goimagehash.AverageHash(img)
}
