package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"img-scraper/pkg/config"
	"img-scraper/pkg/crawl"
	"img-scraper/pkg/dedup"
	"img-scraper/pkg/download"
	"img-scraper/pkg/models"
	"img-scraper/pkg/utils"
	"img-scraper/pkg/validate"
)

// Stage identifies where a session currently is in the pipeline.
type Stage string

const (
	StageInitializing  Stage = "initializing"
	StageCrawling      Stage = "crawling"
	StageDownloading   Stage = "downloading"
	StageValidating    Stage = "validating"
	StageDeduplicating Stage = "deduplicating"
	StageCompleted     Stage = "completed"
	StageFailed        Stage = "failed"
)

// Session drives one full pipeline run: crawl, download, validate,
// deduplicate. Per-URL failures are absorbed into their records; only setup
// problems (bad seed, unusable output directory) or context cancellation fail
// the session. Whatever was processed before a failure stays in the report.
type Session struct {
	cfg        *config.Config
	seedURL    string
	outputDir  string
	crawler    *crawl.Crawler
	downloader *download.Downloader
	validator  *validate.Validator
	deduper    *dedup.Deduplicator
	log        *logrus.Logger

	mu    sync.Mutex
	stage Stage
	sess  *models.ScrapingSession
}

// NewSession wires the pipeline components for one run.
func NewSession(
	cfg *config.Config,
	seedURL, outputDir string,
	crawler *crawl.Crawler,
	downloader *download.Downloader,
	validator *validate.Validator,
	deduper *dedup.Deduplicator,
	log *logrus.Logger,
) *Session {
	return &Session{
		cfg:        cfg,
		seedURL:    seedURL,
		outputDir:  outputDir,
		crawler:    crawler,
		downloader: downloader,
		validator:  validator,
		deduper:    deduper,
		log:        log,
		stage:      StageInitializing,
	}
}

// Stage returns the session's current pipeline stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

func (s *Session) setStage(stage Stage) {
	s.mu.Lock()
	s.stage = stage
	s.mu.Unlock()
	s.log.WithField("stage", stage).Info("Pipeline stage")
}

// Run executes the pipeline. The returned report is non-nil even on error so
// callers can inspect partial results.
func (s *Session) Run(ctx context.Context) (*models.SessionReport, error) {
	s.setStage(StageInitializing)
	s.mu.Lock()
	s.sess = models.NewSession(s.seedURL, s.outputDir)
	sess := s.sess
	s.mu.Unlock()

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return s.fail(sess, fmt.Errorf("%w: cannot create output directory %s: %v", utils.ErrFilesystem, s.outputDir, err))
	}

	stopProgress := s.startProgressTicker(ctx, sess)
	defer stopProgress()

	// Crawl
	s.setStage(StageCrawling)
	urls, err := s.crawler.Crawl(ctx, s.seedURL, s.cfg.MaxImages)
	if err != nil {
		return s.fail(sess, fmt.Errorf("crawl failed: %w", err))
	}
	if ctx.Err() != nil {
		return s.fail(sess, ctx.Err())
	}

	// Download
	s.setStage(StageDownloading)
	meta := make(map[string]models.ImageMeta, len(urls))
	for _, u := range urls {
		meta[u] = s.crawler.ImageMetadata(u)
	}
	downloaded, failed := s.downloader.DownloadImages(ctx, urls, s.outputDir, meta)
	for _, rec := range downloaded {
		sess.AddRecord(rec)
	}
	for _, rec := range failed {
		sess.AddRecord(rec)
	}
	if ctx.Err() != nil {
		return s.fail(sess, ctx.Err())
	}

	// Validate
	s.setStage(StageValidating)
	passed := s.validator.ValidateBatch(downloaded)

	// Deduplicate
	accepted := passed
	if s.cfg.DedupEnabled() && s.deduper != nil {
		s.setStage(StageDeduplicating)
		accepted = s.deduper.DeduplicateBatch(passed)
	}

	for _, rec := range accepted {
		rec.Advance(models.StatusSaved)
	}

	s.setStage(StageCompleted)
	sess.Finish()
	report := sess.Report()
	s.log.WithFields(logrus.Fields{
		"discovered": report.Statistics.Discovered,
		"saved":      report.Statistics.Saved,
		"failed":     report.Statistics.Failed,
		"skipped":    report.Statistics.Skipped,
		"duration":   time.Duration(report.DurationSeconds * float64(time.Second)),
	}).Info("Session completed")
	return report, nil
}

// fail stamps the session Failed and returns the partial report with the error.
func (s *Session) fail(sess *models.ScrapingSession, err error) (*models.SessionReport, error) {
	s.setStage(StageFailed)
	s.log.Errorf("Session failed: %v", err)
	sess.Finish()
	return sess.Report(), err
}

// startProgressTicker logs a stats snapshot periodically during long runs.
func (s *Session) startProgressTicker(ctx context.Context, sess *models.ScrapingSession) func() {
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := sess.Stats()
				s.log.WithFields(logrus.Fields{
					"stage":      s.Stage(),
					"discovered": stats.Discovered,
					"downloaded": stats.Downloaded,
					"failed":     stats.Failed,
				}).Info("Progress")
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return stop
}
