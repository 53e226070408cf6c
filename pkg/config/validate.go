package config

import (
	"fmt"
	"time"
)

// Validate checks Config fields and applies sensible defaults.
// Returns collected warnings; it never fails fatally.
// Modifies receiver in place to apply defaults.
func (c *Config) Validate() (warnings []string) {
	// MaxDepth
	if c.MaxDepth < 0 {
		warnings = append(warnings, "max_depth cannot be negative, setting to 0 (seed page only)")
		c.MaxDepth = 0
	}

	// MaxImages
	if c.MaxImages <= 0 {
		warnings = append(warnings, "max_images should be > 0, defaulting to 100")
		c.MaxImages = 100
	}

	// Page rendering
	if c.PageTimeout <= 0 {
		c.PageTimeout = 30 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 2 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "img-scraper/1.0"
	}
	if c.MaxConcurrentPages <= 0 {
		c.MaxConcurrentPages = 10
	}

	// Downloading
	if c.ConcurrentDownloads <= 0 {
		c.ConcurrentDownloads = 20
	}
	// Unset retries get the default; an explicit 0 means a single attempt.
	if c.MaxRetries == nil {
		c.MaxRetries = intPtr(3)
	} else if *c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, defaulting to 3")
		c.MaxRetries = intPtr(3)
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}

	// Validation gates
	if c.MinWidth <= 0 {
		c.MinWidth = 256
	}
	if c.MinHeight <= 0 {
		c.MinHeight = 256
	}
	if c.MinMegapixels <= 0 {
		c.MinMegapixels = 0.2
	}
	if c.MaxAspectRatio <= 0 {
		c.MaxAspectRatio = 3.0
	}
	if c.MaxAspectRatio < 1.0 {
		warnings = append(warnings, fmt.Sprintf(
			"max_aspect_ratio %.2f is below 1.0 and would reject every image, defaulting to 3.0", c.MaxAspectRatio))
		c.MaxAspectRatio = 3.0
	}

	// Format lists
	if len(c.AllowedFormats) == 0 {
		c.AllowedFormats = []string{"jpg", "jpeg", "png", "webp"}
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}
	}

	// Deduplication. An explicit 0 threshold means exact hash match only.
	if c.DuplicateThreshold == nil {
		c.DuplicateThreshold = intPtr(10)
	} else if *c.DuplicateThreshold < 0 {
		warnings = append(warnings, "duplicate_threshold cannot be negative, defaulting to 10")
		c.DuplicateThreshold = intPtr(10)
	}

	// Politeness
	if c.DelayPerHost < 0 {
		warnings = append(warnings, "delay_per_host cannot be negative, disabling")
		c.DelayPerHost = 0
	}

	c.validateHTTPClientSettings()
	return warnings
}

func intPtr(n int) *int { return &n }

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *Config) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = c.RequestTimeout
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 4
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
