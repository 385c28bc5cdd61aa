package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "CRYPTO_AGGREGATOR_CONFIG"
	archiveDSNEnv     = "ARCHIVE_DSN"
	socialTokenEnv    = "SOCIAL_BEARER_TOKEN"
	enableSocialEnv   = "ENABLE_SOCIAL_API"
	maxItemsEnv       = "MAX_ITEMS_PER_SOURCE"
	requestTimeoutEnv = "REQUEST_TIMEOUT"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Quality   QualityConfig   `yaml:"quality"`
	Window    WindowConfig    `yaml:"window"`
	Limits    LimitsConfig    `yaml:"limits"`
	Feeds     []FeedConfig    `yaml:"feeds"`
	Browser   BrowserConfig   `yaml:"browser"`
	Social    SocialConfig    `yaml:"social"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Keywords  KeywordsConfig  `yaml:"keywords"`
	Topics    []TopicConfig   `yaml:"topics"`
}

// LoggingConfig controls the console logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// QualityConfig defines the admission gate every item must pass.
type QualityConfig struct {
	MinWordCount      int     `yaml:"minWordCount"`
	MinParagraphCount int     `yaml:"minParagraphCount"`
	MinQualityScore   float64 `yaml:"minQualityScore"`

	// SocialQualityFloor is a stricter floor applied to social posts on top
	// of MinQualityScore; short posts score low on length alone.
	SocialQualityFloor float64 `yaml:"socialQualityFloor"`
}

// WindowConfig defines the trailing time window items must fall into.
type WindowConfig struct {
	Hours int `yaml:"hours"`
}

// LimitsConfig groups per-run performance and reliability knobs.
type LimitsConfig struct {
	MaxItemsPerSource     int     `yaml:"maxItemsPerSource"`
	RequestTimeoutSeconds int     `yaml:"requestTimeoutSeconds"`
	SourceTimeoutSeconds  int     `yaml:"sourceTimeoutSeconds"`
	RunTimeoutMinutes     int     `yaml:"runTimeoutMinutes"`
	RetryAttempts         int     `yaml:"retryAttempts"`
	RateLimitMinSeconds   float64 `yaml:"rateLimitMinSeconds"`
	RateLimitMaxSeconds   float64 `yaml:"rateLimitMaxSeconds"`
	SimilarityThreshold   float64 `yaml:"similarityThreshold"`
}

// FeedConfig describes a single feed-based source.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// BrowserConfig describes browser-automation sources and their extraction
// fallbacks. Selectors are tried in order until one yields enough paragraphs.
type BrowserConfig struct {
	Enabled                  bool            `yaml:"enabled"`
	Targets                  []BrowserTarget `yaml:"targets"`
	Selectors                []string        `yaml:"selectors"`
	MaxArticles              int             `yaml:"maxArticles"`
	ChallengeTimeoutSeconds  int             `yaml:"challengeTimeoutSeconds"`
	MinParagraphsPerArticle  int             `yaml:"minParagraphsPerArticle"`
	MinRenderedPageSizeBytes int             `yaml:"minRenderedPageSizeBytes"`
}

// BrowserTarget is one site scraped through the browser collaborator. The
// index URL is the page whose anchors are mined for article links.
type BrowserTarget struct {
	Name     string `yaml:"name"`
	IndexURL string `yaml:"indexUrl"`
}

// SocialConfig describes the social-API source; it is enabled only when a
// bearer token is present in the environment.
type SocialConfig struct {
	BearerToken         string   `yaml:"-"`
	APIBaseURL          string   `yaml:"apiBaseUrl"`
	Accounts            []string `yaml:"accounts"`
	MaxPostsPerAccount  int      `yaml:"maxPostsPerAccount"`
	AccountDelaySeconds float64  `yaml:"accountDelaySeconds"`
}

// Enabled reports whether the source prerequisites are satisfied.
func (s SocialConfig) Enabled() bool {
	return s.BearerToken != "" && len(s.Accounts) > 0
}

// ArchiveConfig describes the optional Postgres run archive.
type ArchiveConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig controls optional recurring runs; the default is a single
// batch pass.
type SchedulerConfig struct {
	Enabled       bool `yaml:"enabled"`
	IntervalHours int  `yaml:"intervalHours"`
}

// KeywordsConfig carries the domain keyword tiers used for scoring and
// relevance checks. Empty tiers fall back to the built-in defaults.
type KeywordsConfig struct {
	HighValue   []string `yaml:"highValue"`
	MediumValue []string `yaml:"mediumValue"`
	LowValue    []string `yaml:"lowValue"`
	Technical   []string `yaml:"technical"`
	Analytical  []string `yaml:"analytical"`
	Anchors     []string `yaml:"anchors"`
}

// TopicConfig is one entry of the topic taxonomy; declaration order breaks
// score ties.
type TopicConfig struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// RunConfiguration is the immutable snapshot handed to the pipeline for one
// orchestration pass. Components never reach back into mutable config.
type RunConfiguration struct {
	MinWordCount       int
	MinParagraphCount  int
	MinQualityScore    float64
	SocialQualityFloor float64

	WindowHours         int
	MaxItemsPerSource   int
	RetryAttempts       int
	RateLimitMin        time.Duration
	RateLimitMax        time.Duration
	RequestTimeout      time.Duration
	SourceTimeout       time.Duration
	RunTimeout          time.Duration
	SimilarityThreshold float64

	SocialEnabled  bool
	BrowserEnabled bool
	ArchiveEnabled bool
}

// Run freezes the loaded configuration into the per-pass snapshot.
func (c Config) Run() RunConfiguration {
	return RunConfiguration{
		MinWordCount:       c.Quality.MinWordCount,
		MinParagraphCount:  c.Quality.MinParagraphCount,
		MinQualityScore:    c.Quality.MinQualityScore,
		SocialQualityFloor: c.Quality.SocialQualityFloor,

		WindowHours:         c.Window.Hours,
		MaxItemsPerSource:   c.Limits.MaxItemsPerSource,
		RetryAttempts:       c.Limits.RetryAttempts,
		RateLimitMin:        secondsToDuration(c.Limits.RateLimitMinSeconds),
		RateLimitMax:        secondsToDuration(c.Limits.RateLimitMaxSeconds),
		RequestTimeout:      time.Duration(c.Limits.RequestTimeoutSeconds) * time.Second,
		SourceTimeout:       time.Duration(c.Limits.SourceTimeoutSeconds) * time.Second,
		RunTimeout:          time.Duration(c.Limits.RunTimeoutMinutes) * time.Minute,
		SimilarityThreshold: c.Limits.SimilarityThreshold,

		SocialEnabled:  c.Social.Enabled(),
		BrowserEnabled: c.Browser.Enabled && len(c.Browser.Targets) > 0,
		ArchiveEnabled: c.Archive.DSN != "",
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.validate()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(archiveDSNEnv); v != "" {
		c.Archive.DSN = v
	}

	c.Social.BearerToken = os.Getenv(socialTokenEnv)
	if os.Getenv(enableSocialEnv) == "false" {
		c.Social.BearerToken = ""
	}

	if v := os.Getenv(maxItemsEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Limits.MaxItemsPerSource = n
		}
	}

	if v := os.Getenv(requestTimeoutEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Limits.RequestTimeoutSeconds = n
		}
	}
}

func (c *Config) validate() {
	if c.Quality.MinWordCount < 5 {
		log.Printf("config: minWordCount=%d is very low, low-signal content may pass the gate", c.Quality.MinWordCount)
	}

	if c.Limits.RequestTimeoutSeconds < 10 {
		log.Printf("config: requestTimeoutSeconds=%d is low, slow feeds may be dropped", c.Limits.RequestTimeoutSeconds)
	}

	if c.Limits.RateLimitMaxSeconds < c.Limits.RateLimitMinSeconds {
		c.Limits.RateLimitMaxSeconds = c.Limits.RateLimitMinSeconds
	}

	if c.Limits.SimilarityThreshold <= 0 || c.Limits.SimilarityThreshold > 1 {
		log.Printf("config: similarityThreshold=%.2f out of range, reverting to default", c.Limits.SimilarityThreshold)
		c.Limits.SimilarityThreshold = defaultConfig().Limits.SimilarityThreshold
	}

	if c.Scheduler.Enabled && c.Scheduler.IntervalHours <= 0 {
		c.Scheduler.IntervalHours = 24
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Quality.MinWordCount > 0 {
		base.Quality.MinWordCount = override.Quality.MinWordCount
	}
	if override.Quality.MinParagraphCount > 0 {
		base.Quality.MinParagraphCount = override.Quality.MinParagraphCount
	}
	if override.Quality.MinQualityScore > 0 {
		base.Quality.MinQualityScore = override.Quality.MinQualityScore
	}
	if override.Quality.SocialQualityFloor > 0 {
		base.Quality.SocialQualityFloor = override.Quality.SocialQualityFloor
	}

	if override.Window.Hours > 0 {
		base.Window = override.Window
	}

	if override.Limits.MaxItemsPerSource > 0 {
		base.Limits.MaxItemsPerSource = override.Limits.MaxItemsPerSource
	}
	if override.Limits.RequestTimeoutSeconds > 0 {
		base.Limits.RequestTimeoutSeconds = override.Limits.RequestTimeoutSeconds
	}
	if override.Limits.SourceTimeoutSeconds > 0 {
		base.Limits.SourceTimeoutSeconds = override.Limits.SourceTimeoutSeconds
	}
	if override.Limits.RunTimeoutMinutes > 0 {
		base.Limits.RunTimeoutMinutes = override.Limits.RunTimeoutMinutes
	}
	if override.Limits.RetryAttempts > 0 {
		base.Limits.RetryAttempts = override.Limits.RetryAttempts
	}
	if override.Limits.RateLimitMinSeconds > 0 {
		base.Limits.RateLimitMinSeconds = override.Limits.RateLimitMinSeconds
	}
	if override.Limits.RateLimitMaxSeconds > 0 {
		base.Limits.RateLimitMaxSeconds = override.Limits.RateLimitMaxSeconds
	}
	if override.Limits.SimilarityThreshold > 0 {
		base.Limits.SimilarityThreshold = override.Limits.SimilarityThreshold
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	if override.Browser.Enabled || len(override.Browser.Targets) > 0 {
		merged := base.Browser
		merged.Enabled = override.Browser.Enabled
		if len(override.Browser.Targets) > 0 {
			merged.Targets = override.Browser.Targets
		}
		if len(override.Browser.Selectors) > 0 {
			merged.Selectors = override.Browser.Selectors
		}
		if override.Browser.MaxArticles > 0 {
			merged.MaxArticles = override.Browser.MaxArticles
		}
		if override.Browser.ChallengeTimeoutSeconds > 0 {
			merged.ChallengeTimeoutSeconds = override.Browser.ChallengeTimeoutSeconds
		}
		if override.Browser.MinParagraphsPerArticle > 0 {
			merged.MinParagraphsPerArticle = override.Browser.MinParagraphsPerArticle
		}
		if override.Browser.MinRenderedPageSizeBytes > 0 {
			merged.MinRenderedPageSizeBytes = override.Browser.MinRenderedPageSizeBytes
		}
		base.Browser = merged
	}

	if override.Social.APIBaseURL != "" {
		base.Social.APIBaseURL = override.Social.APIBaseURL
	}
	if len(override.Social.Accounts) > 0 {
		base.Social.Accounts = override.Social.Accounts
	}
	if override.Social.MaxPostsPerAccount > 0 {
		base.Social.MaxPostsPerAccount = override.Social.MaxPostsPerAccount
	}
	if override.Social.AccountDelaySeconds > 0 {
		base.Social.AccountDelaySeconds = override.Social.AccountDelaySeconds
	}

	if override.Archive.DSN != "" {
		base.Archive = override.Archive
	}

	if override.Scheduler.Enabled {
		base.Scheduler = override.Scheduler
	}

	if len(override.Keywords.HighValue) > 0 {
		base.Keywords.HighValue = override.Keywords.HighValue
	}
	if len(override.Keywords.MediumValue) > 0 {
		base.Keywords.MediumValue = override.Keywords.MediumValue
	}
	if len(override.Keywords.LowValue) > 0 {
		base.Keywords.LowValue = override.Keywords.LowValue
	}
	if len(override.Keywords.Technical) > 0 {
		base.Keywords.Technical = override.Keywords.Technical
	}
	if len(override.Keywords.Analytical) > 0 {
		base.Keywords.Analytical = override.Keywords.Analytical
	}
	if len(override.Keywords.Anchors) > 0 {
		base.Keywords.Anchors = override.Keywords.Anchors
	}

	if len(override.Topics) > 0 {
		base.Topics = override.Topics
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Quality: QualityConfig{
			MinWordCount:       15,
			MinParagraphCount:  1,
			MinQualityScore:    0.15,
			SocialQualityFloor: 0.3,
		},
		Window: WindowConfig{Hours: 24},
		Limits: LimitsConfig{
			MaxItemsPerSource:     25,
			RequestTimeoutSeconds: 30,
			SourceTimeoutSeconds:  300,
			RunTimeoutMinutes:     0,
			RetryAttempts:         3,
			RateLimitMinSeconds:   2.0,
			RateLimitMaxSeconds:   4.0,
			SimilarityThreshold:   0.8,
		},
		Feeds: []FeedConfig{
			{Name: "CoinDesk", URL: "https://feeds.feedburner.com/CoinDesk"},
			{Name: "Decrypt", URL: "https://decrypt.co/feed"},
			{Name: "CoinTelegraph", URL: "https://cointelegraph.com/rss"},
			{Name: "NewsBTC", URL: "https://www.newsbtc.com/feed/"},
			{Name: "Bitcoin_com", URL: "https://news.bitcoin.com/feed/"},
			{Name: "Reddit_CryptoCurrency", URL: "https://www.reddit.com/r/CryptoCurrency/hot/.rss"},
			{Name: "Reddit_Bitcoin", URL: "https://www.reddit.com/r/Bitcoin/hot/.rss"},
			{Name: "Reddit_ethereum", URL: "https://www.reddit.com/r/ethereum/hot/.rss"},
			{Name: "Reddit_DeFi", URL: "https://www.reddit.com/r/DeFi/.rss"},
		},
		Browser: BrowserConfig{
			Enabled: false,
			Targets: []BrowserTarget{
				{Name: "BeInCrypto", IndexURL: "https://beincrypto.com/"},
				{Name: "TheBlock", IndexURL: "https://www.theblock.co/"},
			},
			Selectors: []string{
				"[class*='post']",
				"div.entry-content",
				"div.content",
				"article",
				"main",
			},
			MaxArticles:              10,
			ChallengeTimeoutSeconds:  30,
			MinParagraphsPerArticle:  5,
			MinRenderedPageSizeBytes: 50000,
		},
		Social: SocialConfig{
			APIBaseURL: "https://api.twitter.com/2",
			Accounts: []string{
				"tier10k", "WuBlockchain", "glassnode", "santimentfeed",
				"WatcherGuru", "CryptoQuant", "lookonchain", "DefiLlama",
				"coindesk", "cointelegraph", "decryptmedia", "beincrypto",
			},
			MaxPostsPerAccount:  20,
			AccountDelaySeconds: 3.0,
		},
		Archive:   ArchiveConfig{DSN: ""},
		Scheduler: SchedulerConfig{Enabled: false, IntervalHours: 24},
	}
}
