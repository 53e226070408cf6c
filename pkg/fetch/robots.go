package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsHandler fetches, parses, and caches robots.txt per host.
// Any failure to obtain or parse robots.txt is cached as nil, which TestAgent
// treats as "allowed".
type RobotsHandler struct {
	fetcher       *Fetcher
	rateLimiter   *RateLimiter
	userAgent     string
	robotsCache   map[string]*robotstxt.RobotsData // hostname -> parsed data (or nil)
	robotsCacheMu sync.Mutex
	log           *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler. userAgent is used both for the
// robots.txt fetch itself and as the agent checked against the rules.
func NewRobotsHandler(fetcher *Fetcher, rateLimiter *RateLimiter, userAgent string, log *logrus.Entry) *RobotsHandler {
	return &RobotsHandler{
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		userAgent:   userAgent,
		robotsCache: make(map[string]*robotstxt.RobotsData),
		log:         log,
	}
}

// getRobotsData returns cached robots data for the host, fetching on a miss.
// Returns nil on any fetch/parse failure; the nil result is cached too.
func (rh *RobotsHandler) getRobotsData(targetURL *url.URL, ctx context.Context) *robotstxt.RobotsData {
	host := targetURL.Hostname()
	hostLog := rh.log.WithField("host", host)

	rh.robotsCacheMu.Lock()
	robotsData, found := rh.robotsCache[host]
	rh.robotsCacheMu.Unlock()
	if found {
		return robotsData
	}

	cacheResult := func(data *robotstxt.RobotsData) *robotstxt.RobotsData {
		rh.robotsCacheMu.Lock()
		rh.robotsCache[host] = data
		rh.robotsCacheMu.Unlock()
		return data
	}

	robotsURL := &url.URL{Scheme: targetURL.Scheme, Host: targetURL.Host, Path: "/robots.txt"}
	if robotsURL.Scheme != "http" && robotsURL.Scheme != "https" {
		hostLog.Warnf("Invalid scheme %q, defaulting to https for robots.txt", targetURL.Scheme)
		robotsURL.Scheme = "https"
	}
	robotsLog := hostLog.WithField("robots_url", robotsURL.String())
	robotsLog.Info("Fetching robots.txt...")

	rh.rateLimiter.ApplyDelay(host, 0)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		robotsLog.Errorf("Error creating request: %v", err)
		return cacheResult(nil)
	}
	req.Header.Set("User-Agent", rh.userAgent)

	resp, fetchErr := rh.fetcher.FetchWithRetry(req, ctx)
	rh.rateLimiter.UpdateLastRequestTime(host)
	if fetchErr != nil {
		robotsLog.Warnf("Fetching robots.txt failed: %v", fetchErr)
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return cacheResult(nil)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		robotsLog.Errorf("Error reading body: %v", err)
		return cacheResult(nil)
	}

	data, err := robotstxt.FromBytes(bodyBytes)
	if err != nil {
		robotsLog.Errorf("Error parsing content: %v", err)
		return cacheResult(nil)
	}

	robotsLog.Info("Successfully fetched and parsed robots.txt")
	return cacheResult(data)
}

// Allowed reports whether the configured user agent may fetch targetURL.
// Returns true when robots.txt could not be obtained.
func (rh *RobotsHandler) Allowed(targetURL *url.URL, ctx context.Context) bool {
	robotsData := rh.getRobotsData(targetURL, ctx)
	if robotsData == nil {
		return true
	}
	return robotsData.TestAgent(targetURL.RequestURI(), rh.userAgent)
}
