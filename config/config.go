package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Fetcher   FetcherConfig
	Cache     CacheConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Webhook   WebhookConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string
}

// FetcherConfig controls how the raw catalog is obtained.
type FetcherConfig struct {
	// Mode selects the extraction path: "browser", "api", or "auto"
	// (API first, browser fallback). Default: "auto".
	Mode string

	// ListingURL is the catalog listing page rendered in browser mode.
	ListingURL string

	// APIBaseURL is the root of the source's internal data API.
	APIBaseURL string

	// Country is the storefront country code sent to the internal API.
	Country string // default: "US"

	// RenderTimeout bounds one browser-rendered fetch end to end.
	RenderTimeout time.Duration // default: 90s

	// HTTPTimeout bounds each direct API request.
	HTTPTimeout time.Duration // default: 30s

	// Stealth enables anti-bot-detection evasions in browser mode.
	Stealth bool // default: true

	// BlockedResourceTypes lists browser resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// CacheConfig controls the catalog snapshot cache.
type CacheConfig struct {
	// StaleAfter is the snapshot age beyond which a read triggers a refresh.
	StaleAfter time.Duration // default: 15m

	// WaitForRefresh controls what a non-forced read does while a refresh is
	// in flight and a previous snapshot exists: wait for the fresh result
	// (true) or return the stale snapshot immediately (false).
	WaitForRefresh bool // default: false
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// WebhookConfig controls refresh-completion notifications.
type WebhookConfig struct {
	// URL receives catalog.refreshed / catalog.refresh_failed events.
	// Empty disables delivery.
	URL string

	// Secret signs event payloads with HMAC-SHA256 when non-empty.
	Secret string
}

// Load reads configuration from the environment with sane defaults.
// A .env file in the working directory is merged in first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host: envOr("ESIMDEX_HOST", "0.0.0.0"),
			Port: envIntOr("ESIMDEX_PORT", 8080),
			Mode: envOr("ESIMDEX_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("ESIMDEX_HEADLESS", true),
			NoSandbox:    envBoolOr("ESIMDEX_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("ESIMDEX_BROWSER_BIN"),
			DefaultProxy: os.Getenv("ESIMDEX_PROXY"),
		},
		Fetcher: FetcherConfig{
			Mode:          envOr("ESIMDEX_FETCH_MODE", "auto"),
			ListingURL:    envOr("ESIMDEX_LISTING_URL", "https://www.bitrefill.com/us/en/esims/"),
			APIBaseURL:    envOr("ESIMDEX_API_BASE_URL", "https://www.bitrefill.com"),
			Country:       envOr("ESIMDEX_COUNTRY", "US"),
			RenderTimeout: envDurationOr("ESIMDEX_RENDER_TIMEOUT", 90*time.Second),
			HTTPTimeout:   envDurationOr("ESIMDEX_HTTP_TIMEOUT", 30*time.Second),
			Stealth:       envBoolOr("ESIMDEX_STEALTH", true),
			BlockedResourceTypes: envSliceOr("ESIMDEX_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Cache: CacheConfig{
			StaleAfter:     envDurationOr("ESIMDEX_CACHE_STALE_AFTER", 15*time.Minute),
			WaitForRefresh: envBoolOr("ESIMDEX_CACHE_WAIT_FOR_REFRESH", false),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("ESIMDEX_AUTH_ENABLED", false),
			APIKeys: envSliceOr("ESIMDEX_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("ESIMDEX_RATE_RPS", 5.0),
			Burst:             envIntOr("ESIMDEX_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("ESIMDEX_LOG_LEVEL", "info"),
			Format: envOr("ESIMDEX_LOG_FORMAT", "json"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("ESIMDEX_WEBHOOK_URL"),
			Secret: os.Getenv("ESIMDEX_WEBHOOK_SECRET"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
