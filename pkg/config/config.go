package config

import "time"

// Config holds every tunable for one pipeline invocation. The external job
// runner resolves this from its config file before the pipeline starts; the
// pipeline itself never reads files for configuration.
type Config struct {
	// Crawling
	MaxDepth           int           `yaml:"max_depth"`
	MaxImages          int           `yaml:"max_images"`
	PageTimeout        time.Duration `yaml:"page_timeout"`  // per-page render timeout
	SettleDelay        time.Duration `yaml:"settle_delay"`  // post-load wait for lazy-inserted images
	UserAgent          string        `yaml:"user_agent"`
	MaxConcurrentPages int           `yaml:"max_concurrent_pages"`
	RenderJS           *bool         `yaml:"render_js,omitempty"` // headless-browser rendering vs plain GET; default on
	RespectRobots      bool          `yaml:"respect_robots"`
	AllowedExtensions  []string      `yaml:"allowed_extensions"` // lowercase, no leading dot

	// Downloading
	ConcurrentDownloads int           `yaml:"concurrent_downloads"`
	MaxRetries          *int          `yaml:"max_retries,omitempty"` // explicit 0 means a single attempt
	RequestTimeout      time.Duration `yaml:"request_timeout"`

	// Validation
	MinWidth       int      `yaml:"min_width"`
	MinHeight      int      `yaml:"min_height"`
	MinMegapixels  float64  `yaml:"min_megapixels"`
	MaxAspectRatio float64  `yaml:"max_aspect_ratio"`
	AllowedFormats []string `yaml:"allowed_formats"` // lowercase, no leading dot

	// Deduplication
	DuplicateThreshold   *int  `yaml:"duplicate_threshold,omitempty"` // max Hamming distance treated as duplicate; explicit 0 means exact match only
	DeduplicationEnabled *bool `yaml:"deduplication_enabled,omitempty"`

	// Politeness / ambient
	DelayPerHost       time.Duration    `yaml:"delay_per_host,omitempty"`
	StateDir           string           `yaml:"state_dir,omitempty"` // empty = in-memory crawl state
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// DedupEnabled resolves the tri-state deduplication flag (default true)
func (c *Config) DedupEnabled() bool {
	if c.DeduplicationEnabled != nil {
		return *c.DeduplicationEnabled
	}
	return true
}

// RenderJSEnabled resolves the tri-state rendering flag. Defaults to headless
// browser rendering so lazy-loaded images are captured; static fetching is
// the opt-out.
func (c *Config) RenderJSEnabled() bool {
	if c.RenderJS != nil {
		return *c.RenderJS
	}
	return true
}

// Retries returns the effective max_retries; Validate fills the default
func (c *Config) Retries() int {
	if c.MaxRetries != nil {
		return *c.MaxRetries
	}
	return 3
}

// DedupThreshold returns the effective duplicate_threshold; Validate fills
// the default
func (c *Config) DedupThreshold() int {
	if c.DuplicateThreshold != nil {
		return *c.DuplicateThreshold
	}
	return 10
}

// Default returns a Config with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.Validate()
	return cfg
}
