package validate

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"img-scraper/pkg/config"
	"img-scraper/pkg/models"
)

// Validator applies the quality gates to downloaded records: format
// allow-list, minimum dimensions, minimum megapixels, maximum aspect ratio.
// Checks run in that order and the first failure wins. Validation only reads
// record fields populated by the downloader; it performs no I/O.
type Validator struct {
	minWidth       int
	minHeight      int
	minMegapixels  float64
	maxAspectRatio float64
	allowedFormats map[string]struct{}
	log            *logrus.Logger
}

// NewValidator creates a Validator from the configured thresholds.
func NewValidator(cfg *config.Config, log *logrus.Logger) *Validator {
	formats := make(map[string]struct{}, len(cfg.AllowedFormats))
	for _, f := range cfg.AllowedFormats {
		formats[strings.ToLower(f)] = struct{}{}
	}
	return &Validator{
		minWidth:       cfg.MinWidth,
		minHeight:      cfg.MinHeight,
		minMegapixels:  cfg.MinMegapixels,
		maxAspectRatio: cfg.MaxAspectRatio,
		allowedFormats: formats,
		log:            log,
	}
}

// Validate checks one record. On success the record advances to Validated and
// true is returned. On failure the record is marked Failed with the reason for
// the first check that rejected it. Records already in a terminal state are
// rejected without modification.
func (v *Validator) Validate(rec *models.ImageRecord) bool {
	if rec.Status.IsTerminal() {
		return false
	}
	recLog := v.log.WithField("url", rec.URL)

	if _, ok := v.allowedFormats[strings.ToLower(rec.Format)]; !ok {
		recLog.WithField("format", rec.Format).Debug("Rejected: format not allowed")
		rec.MarkFailed(models.ReasonInvalidFormat, fmt.Sprintf("format %q not in allow-list", rec.Format))
		return false
	}

	if !rec.HasDimensions() || rec.Width < v.minWidth || rec.Height < v.minHeight {
		recLog.WithFields(logrus.Fields{"width": rec.Width, "height": rec.Height}).Debug("Rejected: too small")
		rec.MarkFailed(models.ReasonTooSmall, fmt.Sprintf("dimensions %dx%d below minimum %dx%d", rec.Width, rec.Height, v.minWidth, v.minHeight))
		return false
	}

	if mp, ok := rec.Megapixels(); !ok || mp < v.minMegapixels {
		recLog.Debug("Rejected: below megapixel floor")
		rec.MarkFailed(models.ReasonTooSmall, fmt.Sprintf("%.2f megapixels below minimum %.2f", float64(rec.Width)*float64(rec.Height)/1e6, v.minMegapixels))
		return false
	}

	if ratio, ok := rec.AspectRatio(); !ok || ratio > v.maxAspectRatio {
		recLog.Debug("Rejected: extreme aspect ratio")
		rec.MarkFailed(models.ReasonInvalidAspectRatio, fmt.Sprintf("aspect ratio %.2f exceeds maximum %.2f", ratioOrZero(rec), v.maxAspectRatio))
		return false
	}

	rec.Advance(models.StatusValidated)
	return true
}

// ValidateBatch validates records in order and returns the ones that passed.
func (v *Validator) ValidateBatch(recs []*models.ImageRecord) []*models.ImageRecord {
	passed := make([]*models.ImageRecord, 0, len(recs))
	for _, rec := range recs {
		if v.Validate(rec) {
			passed = append(passed, rec)
		}
	}
	v.log.WithFields(logrus.Fields{"checked": len(recs), "passed": len(passed)}).Info("Validation complete")
	return passed
}

func ratioOrZero(rec *models.ImageRecord) float64 {
	if ratio, ok := rec.AspectRatio(); ok {
		return ratio
	}
	return 0
}
