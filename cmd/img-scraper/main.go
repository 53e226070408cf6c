package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"img-scraper/pkg/config"
	"img-scraper/pkg/crawl"
	"img-scraper/pkg/dedup"
	"img-scraper/pkg/download"
	"img-scraper/pkg/fetch"
	"img-scraper/pkg/pipeline"
	"img-scraper/pkg/render"
	"img-scraper/pkg/storage"
	"img-scraper/pkg/validate"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	seedFlag := flag.String("url", "", "Seed URL to scrape (required)")
	configFileFlag := flag.String("config", "", "Path to YAML config file (optional)")
	outputDirFlag := flag.String("out", "scraped_images", "Output directory for images")
	reportFileFlag := flag.String("report", "", "Write the JSON session report to this file (default stdout)")
	maxImagesFlag := flag.Int("max-images", 0, "Override max_images from config")
	maxDepthFlag := flag.Int("max-depth", -1, "Override max_depth from config")
	logLevelFlag := flag.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevelFlag)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", *logLevelFlag, err)
	} else {
		log.SetLevel(level)
	}

	if *seedFlag == "" {
		log.Fatal("Error: -url flag is required.")
	}

	// --- Configuration ---
	cfg := &config.Config{}
	if *configFileFlag != "" {
		log.Infof("Loading configuration from %s", *configFileFlag)
		yamlFile, err := os.ReadFile(*configFileFlag)
		if err != nil {
			log.Fatalf("Read config file '%s' error: %v", *configFileFlag, err)
		}
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			log.Fatalf("Parse config file '%s' error: %v", *configFileFlag, err)
		}
	}
	if *maxImagesFlag > 0 {
		cfg.MaxImages = *maxImagesFlag
	}
	if *maxDepthFlag >= 0 {
		cfg.MaxDepth = *maxDepthFlag
	}
	for _, w := range cfg.Validate() {
		log.Warn(w)
	}
	log.Infof("Config: depth=%d, max_images=%d, render_js=%v, respect_robots=%v, dedup=%v",
		cfg.MaxDepth, cfg.MaxImages, cfg.RenderJSEnabled(), cfg.RespectRobots, cfg.DedupEnabled())

	// --- Context & Signal Handling ---
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancelRun()
		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	// --- Components ---
	httpClient := fetch.NewClient(cfg.HTTPClientSettings, log)
	fetcher := fetch.NewFetcher(httpClient, cfg.Retries(), 0, 0, log)
	rateLimiter := fetch.NewRateLimiter(cfg.DelayPerHost, log)

	var robots *fetch.RobotsHandler
	if cfg.RespectRobots {
		robots = fetch.NewRobotsHandler(fetcher, rateLimiter, cfg.UserAgent, log.WithField("component", "robots"))
	}

	var renderer render.Renderer
	if cfg.RenderJSEnabled() {
		chrome := render.NewChromeRenderer(cfg.UserAgent, cfg.PageTimeout, cfg.SettleDelay, log)
		defer chrome.Close()
		renderer = chrome
	} else {
		renderer = render.NewStaticRenderer(fetcher, cfg.UserAgent, log)
	}

	var store storage.CrawlStore
	if cfg.StateDir != "" {
		seedDomain := *seedFlag
		if parsed, err := url.Parse(*seedFlag); err == nil && parsed.Hostname() != "" {
			seedDomain = parsed.Hostname()
		}
		badgerStore, err := storage.NewBadgerStore(cfg.StateDir, seedDomain, log.WithField("component", "storage"))
		if err != nil {
			log.Fatalf("Failed to open crawl state database: %v", err)
		}
		store = badgerStore
	} else {
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	crawler := crawl.NewCrawler(cfg, renderer, robots, store, log)
	downloader := download.NewDownloader(cfg, httpClient, rateLimiter, log)
	validator := validate.NewValidator(cfg, log)
	deduper := dedup.NewDeduplicator(cfg.DedupThreshold(), log)

	session := pipeline.NewSession(cfg, *seedFlag, *outputDirFlag, crawler, downloader, validator, deduper, log)

	// --- Run ---
	report, runErr := session.Run(runCtx)

	// The report is written even for failed runs so partial results survive
	if report != nil {
		if err := writeReport(report, *reportFileFlag); err != nil {
			log.Errorf("Failed to write session report: %v", err)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warn("Session cancelled gracefully.")
			os.Exit(0)
		}
		log.Errorf("Session finished with error: %v", runErr)
		os.Exit(1)
	}
	log.Info("Session completed successfully.")
}

// writeReport marshals the report as indented JSON to path, or stdout when
// path is empty.
func writeReport(report interface{}, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
