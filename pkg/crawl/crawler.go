package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"img-scraper/pkg/config"
	"img-scraper/pkg/fetch"
	"img-scraper/pkg/models"
	"img-scraper/pkg/parse"
	"img-scraper/pkg/render"
	"img-scraper/pkg/storage"
)

// Crawler walks a site from a seed URL, depth-bounded and same-domain, and
// collects image URLs with the metadata visible at discovery time. Page-level
// failures are logged and skipped; they never abort the crawl.
type Crawler struct {
	cfg      *config.Config
	renderer render.Renderer
	robots   *fetch.RobotsHandler // nil disables robots checks
	store    storage.CrawlStore
	log      *logrus.Logger

	pageSem *semaphore.Weighted // bounds concurrent page loads

	mu        sync.Mutex
	found     []string // discovery order
	metaByURL map[string]models.ImageMeta
	budget    int
	seedHost  string
}

// NewCrawler creates a Crawler. Pass a nil robots handler to skip robots.txt
// checks.
func NewCrawler(cfg *config.Config, renderer render.Renderer, robots *fetch.RobotsHandler, store storage.CrawlStore, log *logrus.Logger) *Crawler {
	return &Crawler{
		cfg:      cfg,
		renderer: renderer,
		robots:   robots,
		store:    store,
		log:      log,
		pageSem:  semaphore.NewWeighted(int64(cfg.MaxConcurrentPages)),
	}
}

// Crawl traverses from seedURL up to the configured depth and returns
// discovered image URLs in discovery order, capped at maxImages. A maxImages
// of zero or less means the configured default applies.
func (c *Crawler) Crawl(ctx context.Context, seedURL string, maxImages int) ([]string, error) {
	_, seed, err := parse.ParseAndNormalize(seedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL %q: %w", seedURL, err)
	}
	if seed.Scheme != "http" && seed.Scheme != "https" {
		return nil, fmt.Errorf("invalid seed URL %q: scheme must be http or https", seedURL)
	}
	if maxImages <= 0 {
		maxImages = c.cfg.MaxImages
	}

	c.mu.Lock()
	c.found = nil
	c.metaByURL = make(map[string]models.ImageMeta)
	c.budget = maxImages
	c.seedHost = seed.Host
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"seed": seedURL, "max_depth": c.cfg.MaxDepth, "max_images": maxImages,
	}).Info("Starting crawl")

	c.visit(ctx, seed, 0)

	c.mu.Lock()
	result := make([]string, len(c.found))
	copy(result, c.found)
	c.mu.Unlock()

	c.log.WithField("discovered", len(result)).Info("Crawl finished")
	return result, ctx.Err()
}

// ImageMetadata returns the metadata harvested for an image URL during the
// last crawl. The zero value is returned for unknown URLs.
func (c *Crawler) ImageMetadata(imageURL string) models.ImageMeta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metaByURL[imageURL]
}

// visit processes one page and recurses into same-domain links. Each child
// page gets its own goroutine; pageSem bounds how many render concurrently.
func (c *Crawler) visit(ctx context.Context, pageURL *url.URL, depth int) {
	if ctx.Err() != nil || c.budgetReached() {
		return
	}

	normalized := parse.NormalizeURL(pageURL)
	pageLog := c.log.WithFields(logrus.Fields{"url": normalized, "depth": depth})

	added, err := c.store.MarkPageVisited(normalized)
	if err != nil {
		pageLog.Errorf("Visited store error, skipping page: %v", err)
		return
	}
	if !added {
		pageLog.Debug("Page already visited")
		return
	}

	if c.robots != nil && !c.robots.Allowed(pageURL, ctx) {
		pageLog.Info("Disallowed by robots.txt, skipping")
		return
	}

	if err := c.pageSem.Acquire(ctx, 1); err != nil {
		return
	}
	html, renderErr := c.renderer.Render(ctx, pageURL.String())
	c.pageSem.Release(1)
	if renderErr != nil {
		pageLog.Warnf("Failed to render page, skipping: %v", renderErr)
		return
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		pageLog.Warnf("Failed to parse page HTML, skipping: %v", err)
		return
	}

	c.collectImages(doc, pageURL, pageLog)

	if depth >= c.cfg.MaxDepth || c.budgetReached() {
		return
	}

	var wg sync.WaitGroup
	for _, link := range extractLinks(doc, pageURL) {
		child, err := url.Parse(link)
		if err != nil || !strings.EqualFold(child.Host, c.seedHost) {
			continue
		}
		if c.budgetReached() {
			break
		}
		wg.Add(1)
		go func(child *url.URL) {
			defer wg.Done()
			c.visit(ctx, child, depth+1)
		}(child)
	}
	wg.Wait()
}

// collectImages filters the page's image candidates and records the survivors
// until the budget is exhausted.
func (c *Crawler) collectImages(doc *goquery.Document, pageURL *url.URL, pageLog *logrus.Entry) {
	kept := 0
	for _, candidate := range extractImages(doc, pageURL) {
		if !allowImageURL(candidate.absURL, c.cfg.AllowedExtensions) {
			continue
		}
		if !allowImageTag(candidate.tag) {
			continue
		}

		newlySeen, err := c.store.MarkImageSeen(candidate.absURL)
		if err != nil {
			pageLog.Errorf("Visited store error for image %q: %v", candidate.absURL, err)
			continue
		}
		if !newlySeen {
			continue
		}

		c.mu.Lock()
		if len(c.found) >= c.budget {
			c.mu.Unlock()
			break
		}
		c.found = append(c.found, candidate.absURL)
		c.metaByURL[candidate.absURL] = candidate.meta
		c.mu.Unlock()
		kept++
	}
	if kept > 0 {
		pageLog.WithField("images", kept).Debug("Collected images from page")
	}
}

func (c *Crawler) budgetReached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.found) >= c.budget
}
