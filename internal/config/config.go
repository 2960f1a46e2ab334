// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// CORS
	CORSOrigins []string

	// Crawl budgets
	CrawlTotalBudget    time.Duration // Hard wall-clock limit per screening crawl
	CrawlPerPageTimeout time.Duration // Per-page fetch timeout
	CrawlMaxPages       int           // Hard page cap per crawl
	CrawlMaxDepth       int           // Link depth from the root page
	CrawlConcurrency    int           // Concurrent page fetches
	UserAgent           string        // Sent on every outbound request

	// Page cache
	CacheEnabled bool
	CacheTTL     time.Duration // Lifetime for pages without a type-specific TTL

	// Browser automation (checkout validation, JS-rendered pages)
	BrowserEnabled bool
	BrowserTimeout time.Duration // Checkout page load timeout

	// Domain registration lookup
	RDAPEnabled bool
	RDAPTimeout time.Duration

	// Worker
	WorkerPollInterval        time.Duration // How often to poll for queued jobs (default 5s)
	WorkerConcurrency         int           // Number of concurrent workers (default 3)
	WorkerShutdownGracePeriod time.Duration // Max time to wait for running jobs during shutdown
	StaleJobTimeout           time.Duration // Running jobs older than this are marked failed on startup

	// Webhook delivery
	WebhookTimeout     time.Duration
	WebhookMaxAttempts int

	// Idle shutdown settings (for scale-to-zero deployments)
	IdleTimeout time.Duration // Time before shutting down when idle (0 = disabled)
}

// DefaultUserAgent identifies the screening crawler on every request.
const DefaultUserAgent = "Mozilla/5.0 (compatible; MerchantSafe-KYC/1.0; Agent_X variant)"

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:kyc.db?_journal=WAL&_timeout=5000"),
		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		CrawlTotalBudget:    getEnvDuration("CRAWL_TOTAL_BUDGET", 10*time.Second),
		CrawlPerPageTimeout: getEnvDuration("CRAWL_PAGE_TIMEOUT", 3*time.Second),
		CrawlMaxPages:       getEnvInt("CRAWL_MAX_PAGES", 20),
		CrawlMaxDepth:       getEnvInt("CRAWL_MAX_DEPTH", 2),
		CrawlConcurrency:    getEnvInt("CRAWL_CONCURRENCY", 10),
		UserAgent:           getEnv("CRAWL_USER_AGENT", DefaultUserAgent),

		CacheEnabled: getEnvBool("CACHE_ENABLED", true),
		CacheTTL:     getEnvDuration("CACHE_TTL", time.Hour),

		BrowserEnabled: getEnvBool("BROWSER_ENABLED", true),
		BrowserTimeout: getEnvDuration("BROWSER_TIMEOUT", 30*time.Second),

		RDAPEnabled: getEnvBool("RDAP_ENABLED", true),
		RDAPTimeout: getEnvDuration("RDAP_TIMEOUT", 5*time.Second),

		WorkerPollInterval:        getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerConcurrency:         getEnvInt("WORKER_CONCURRENCY", 3),
		WorkerShutdownGracePeriod: getEnvDuration("WORKER_SHUTDOWN_GRACE_PERIOD", 5*time.Minute),
		StaleJobTimeout:           getEnvDuration("STALE_JOB_TIMEOUT", 10*time.Minute),

		WebhookTimeout:     getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		WebhookMaxAttempts: getEnvInt("WEBHOOK_MAX_ATTEMPTS", 3),

		IdleTimeout: getEnvDuration("IDLE_TIMEOUT", 0), // 0 = disabled
	}

	if cfg.CrawlMaxPages <= 0 {
		return nil, fmt.Errorf("CRAWL_MAX_PAGES must be positive, got %d", cfg.CrawlMaxPages)
	}
	if cfg.CrawlConcurrency <= 0 {
		return nil, fmt.Errorf("CRAWL_CONCURRENCY must be positive, got %d", cfg.CrawlConcurrency)
	}
	if cfg.WebhookMaxAttempts <= 0 {
		return nil, fmt.Errorf("WEBHOOK_MAX_ATTEMPTS must be positive, got %d", cfg.WebhookMaxAttempts)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
