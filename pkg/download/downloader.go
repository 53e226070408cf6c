package download

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"img-scraper/pkg/config"
	"img-scraper/pkg/fetch"
	"img-scraper/pkg/models"
	"img-scraper/pkg/utils"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// extensions recognized when deriving a filename from the source URL
var knownImageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "bmp": true,
}

const fallbackExtension = "jpg"

// Downloader fetches image bytes concurrently and writes them to a staging
// directory under content-addressed names. Failed URLs produce Failed records
// rather than aborting the batch.
type Downloader struct {
	cfg      *config.Config
	client   *http.Client
	sem      *semaphore.Weighted // global concurrent download bound
	hostSems *fetch.HostSemaphorePool
	limiter  *fetch.RateLimiter
	log      *logrus.Logger

	// delay unit for the linear retry backoff; overridable in tests
	retryDelay time.Duration
}

// NewDownloader creates a Downloader using the shared HTTP client.
func NewDownloader(cfg *config.Config, client *http.Client, limiter *fetch.RateLimiter, log *logrus.Logger) *Downloader {
	return &Downloader{
		cfg:        cfg,
		client:     client,
		sem:        semaphore.NewWeighted(int64(cfg.ConcurrentDownloads)),
		hostSems:   fetch.NewHostSemaphorePool(4),
		limiter:    limiter,
		log:        log,
		retryDelay: time.Second,
	}
}

// DownloadImages fetches every URL into targetDir. meta supplies the
// discovery-time metadata per URL and may be nil. The first return slice
// holds records that downloaded and decoded successfully (status Downloaded,
// dimensions and format populated); the second holds Failed records so the
// session report can account for every URL.
func (d *Downloader) DownloadImages(ctx context.Context, urls []string, targetDir string, meta map[string]models.ImageMeta) (downloaded, failed []*models.ImageRecord) {
	records := make([]*models.ImageRecord, len(urls))

	var wg sync.WaitGroup
	for i, rawURL := range urls {
		rec := models.NewImageRecord(rawURL, meta[rawURL])
		records[i] = rec

		wg.Add(1)
		go func(rec *models.ImageRecord) {
			defer wg.Done()
			if err := d.sem.Acquire(ctx, 1); err != nil {
				rec.MarkFailed(models.ReasonDownloadError, fmt.Sprintf("cancelled: %v", err))
				return
			}
			defer d.sem.Release(1)
			d.downloadOne(ctx, rec, targetDir)
		}(rec)
	}
	wg.Wait()

	// Input order is preserved in both slices
	for _, rec := range records {
		if rec.Status == models.StatusDownloaded {
			downloaded = append(downloaded, rec)
		} else {
			failed = append(failed, rec)
		}
	}
	d.log.WithFields(logrus.Fields{
		"requested": len(urls), "downloaded": len(downloaded), "failed": len(failed),
	}).Info("Download batch complete")
	return downloaded, failed
}

// downloadOne fetches a single image with linear retry backoff, stages it on
// disk, and extracts dimensions and format. The record ends as Downloaded or
// Failed.
func (d *Downloader) downloadOne(ctx context.Context, rec *models.ImageRecord, targetDir string) {
	recLog := d.log.WithField("url", rec.URL)

	parsed, err := url.Parse(rec.URL)
	if err != nil {
		rec.MarkFailed(models.ReasonDownloadError, fmt.Sprintf("unparsable URL: %v", err))
		return
	}
	host := parsed.Hostname()

	if err := d.hostSems.Acquire(ctx, host); err != nil {
		rec.MarkFailed(models.ReasonDownloadError, fmt.Sprintf("cancelled: %v", err))
		return
	}
	defer d.hostSems.Release(host)

	var body []byte
	var lastErr error
	attempts := d.cfg.Retries()
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			// Linear backoff: the wait grows with each attempt
			wait := d.retryDelay * time.Duration(attempt-1)
			recLog.WithFields(logrus.Fields{"attempt": attempt, "delay": wait}).Warn("Retrying download...")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				rec.MarkFailed(models.ReasonDownloadError, fmt.Sprintf("cancelled during retry: %v", ctx.Err()))
				return
			}
		}

		d.limiter.ApplyDelay(host, d.cfg.DelayPerHost)
		body, lastErr = d.fetchBody(ctx, rec.URL)
		d.limiter.UpdateLastRequestTime(host)
		if lastErr == nil {
			break
		}
		recLog.WithField("attempt", attempt).Debugf("Download attempt failed: %v", lastErr)
	}
	if lastErr != nil {
		recLog.Warnf("Download failed after %d attempts: %v", attempts, lastErr)
		rec.MarkFailed(utils.CategorizeFailure(lastErr), lastErr.Error())
		return
	}

	filename := stagedFilename(rec.SourceDomain, body, parsed.Path)
	localPath := filepath.Join(targetDir, filename)
	if err := os.WriteFile(localPath, body, 0644); err != nil {
		recLog.Errorf("Failed to write staged file: %v", err)
		rec.MarkFailed(models.ReasonSaveError, fmt.Sprintf("write %s: %v", localPath, err))
		return
	}

	// Decode check. A file that is not a decodable image is removed
	// immediately; retrying would fetch the same bytes.
	imgCfg, format, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		recLog.Debugf("Staged file is not a decodable image: %v", err)
		if rmErr := os.Remove(localPath); rmErr != nil {
			recLog.Warnf("Could not remove undecodable file %s: %v", localPath, rmErr)
		}
		rec.MarkFailed(models.ReasonInvalidFormat, fmt.Sprintf("decode: %v", err))
		return
	}

	rec.Width = imgCfg.Width
	rec.Height = imgCfg.Height
	rec.Format = format
	rec.FileSizeBytes = int64(len(body))
	rec.LocalPath = localPath
	rec.Advance(models.StatusDownloaded)
	recLog.WithFields(logrus.Fields{"file": filename, "bytes": len(body)}).Debug("Image staged")
}

// fetchBody performs one GET attempt and returns the response bytes.
func (d *Downloader) fetchBody(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrRequestCreation, err)
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, resp.StatusCode, resp.Status)
		}
		return nil, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrResponseBodyRead, err)
	}
	return body, nil
}

// stagedFilename builds {sanitizedDomain}_{md5(content)[:12]}.{ext}. The
// extension comes from the URL path when recognized, otherwise jpg.
func stagedFilename(domain string, content []byte, urlPath string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(urlPath), "."))
	if !knownImageExtensions[ext] {
		ext = fallbackExtension
	}
	return utils.SanitizeFilename(domain) + "_" + utils.ShortContentMD5(content, 12) + "." + ext
}
