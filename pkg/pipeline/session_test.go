package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"img-scraper/pkg/config"
	"img-scraper/pkg/crawl"
	"img-scraper/pkg/dedup"
	"img-scraper/pkg/download"
	"img-scraper/pkg/fetch"
	"img-scraper/pkg/models"
	"img-scraper/pkg/render"
	"img-scraper/pkg/storage"
	"img-scraper/pkg/validate"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestSession(t *testing.T, cfg *config.Config, seedURL, outputDir string) *Session {
	t.Helper()
	log := testLogger()
	client := &http.Client{Timeout: 5 * time.Second}
	fetcher := fetch.NewFetcher(client, 1, time.Millisecond, 5*time.Millisecond, log)
	renderer := render.NewStaticRenderer(fetcher, cfg.UserAgent, log)
	crawler := crawl.NewCrawler(cfg, renderer, nil, storage.NewMemoryStore(), log)
	limiter := fetch.NewRateLimiter(0, log)
	downloader := download.NewDownloader(cfg, client, limiter, log)
	validator := validate.NewValidator(cfg, log)
	deduper := dedup.NewDeduplicator(cfg.DedupThreshold(), log)
	return NewSession(cfg, seedURL, outputDir, crawler, downloader, validator, deduper, log)
}

// testSite serves a page with four images: a good photo, a byte-identical
// copy under another URL, a too-small image, and a missing one.
func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	good := pngBytes(t, 800, 600)
	small := pngBytes(t, 120, 120)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>
			<figure><img src="/img/good.png" alt="good photo"><figcaption>The good one</figcaption></figure>
			<img src="/img/copy.png" alt="same pixels">
			<img src="/img/small.png" alt="tiny">
			<img src="/img/missing.png" alt="gone">
		</body></html>`)
	})
	mux.HandleFunc("/img/good.png", func(w http.ResponseWriter, r *http.Request) { w.Write(good) })
	mux.HandleFunc("/img/copy.png", func(w http.ResponseWriter, r *http.Request) { w.Write(good) })
	mux.HandleFunc("/img/small.png", func(w http.ResponseWriter, r *http.Request) { w.Write(small) })
	mux.HandleFunc("/img/missing.png", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSessionRun_EndToEnd(t *testing.T) {
	server := testSite(t)
	outputDir := filepath.Join(t.TempDir(), "images")

	cfg := config.Default()
	cfg.MaxDepth = 0
	*cfg.MaxRetries = 1
	session := newTestSession(t, cfg, server.URL, outputDir)

	report, err := session.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StageCompleted, session.Stage())

	stats := report.Statistics
	assert.Equal(t, 4, stats.Discovered)
	assert.Equal(t, 1, stats.Downloaded)
	assert.Equal(t, 1, stats.Validated)
	assert.Equal(t, 1, stats.Saved)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.Skipped)
	assert.InDelta(t, 0.25, stats.SuccessRate, 1e-9)

	byURL := make(map[string]models.ImageReport, len(report.Images))
	for _, img := range report.Images {
		byURL[img.URL] = img
	}
	require.Len(t, byURL, 4)

	good := byURL[server.URL+"/img/good.png"]
	assert.Equal(t, "saved", good.Status)
	assert.Equal(t, "The good one", good.Caption)
	assert.Equal(t, 800, good.Width)
	_, statErr := os.Stat(good.LocalPath)
	assert.NoError(t, statErr, "saved image exists on disk")

	dup := byURL[server.URL+"/img/copy.png"]
	assert.Equal(t, "skipped", dup.Status)
	assert.Equal(t, "duplicate", dup.FailureReason)

	small := byURL[server.URL+"/img/small.png"]
	assert.Equal(t, "failed", small.Status)
	assert.Equal(t, "too_small", small.FailureReason)

	missing := byURL[server.URL+"/img/missing.png"]
	assert.Equal(t, "failed", missing.Status)
	assert.Equal(t, "download_error", missing.FailureReason)

	assert.Greater(t, report.DurationSeconds, 0.0)
	assert.False(t, report.FinishedAt.IsZero())
}

func TestSessionRun_DedupDisabledKeepsCopies(t *testing.T) {
	server := testSite(t)
	outputDir := filepath.Join(t.TempDir(), "images")

	disabled := false
	cfg := config.Default()
	cfg.MaxDepth = 0
	*cfg.MaxRetries = 1
	cfg.DeduplicationEnabled = &disabled
	session := newTestSession(t, cfg, server.URL, outputDir)

	report, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Statistics.Saved, "identical copies both kept")
	assert.Equal(t, 0, report.Statistics.Skipped)
}

func TestSessionRun_BadOutputDirFails(t *testing.T) {
	server := testSite(t)

	// A file where the output directory should be makes MkdirAll fail
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	outputDir := filepath.Join(blocker, "images")

	cfg := config.Default()
	session := newTestSession(t, cfg, server.URL, outputDir)

	report, err := session.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, report, "partial report is returned on failure")
	assert.Equal(t, StageFailed, session.Stage())
}

func TestSessionRun_InvalidSeedFails(t *testing.T) {
	cfg := config.Default()
	session := newTestSession(t, cfg, "not a url", t.TempDir())

	report, err := session.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StageFailed, session.Stage())
	assert.Zero(t, report.Statistics.Discovered)
}

func TestSessionRun_CancelledContext(t *testing.T) {
	server := testSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := config.Default()
	session := newTestSession(t, cfg, server.URL, filepath.Join(t.TempDir(), "images"))

	report, err := session.Run(ctx)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StageFailed, session.Stage())
}
