package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CacheConfig holds configuration for the catalog response cache.
type CacheConfig struct {
	// Enabled controls whether caching is active. When false, no middleware
	// is applied and all requests pass through uncached.
	Enabled bool

	// CatalogTTL is the TTL for template catalog responses. Catalog reads
	// tolerate short staleness; project-scoped governance reads are never
	// cached.
	CatalogTTL time.Duration

	// MaxSize is the maximum number of entries in the cache.
	MaxSize int
}

// DefaultCacheConfig returns a CacheConfig with sensible defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled:    true,
		CatalogTTL: 60 * time.Second,
		MaxSize:    1000,
	}
}

// CacheConfigFromEnv reads cache configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - TC_CACHE_ENABLED: "true" or "false" (default: "true")
//   - TC_CACHE_CATALOG_TTL: duration in seconds (default: 60)
//   - TC_CACHE_MAX_SIZE: max entries (default: 1000)
func CacheConfigFromEnv() *CacheConfig {
	cfg := DefaultCacheConfig()

	if v := os.Getenv("TC_CACHE_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}

	if v := os.Getenv("TC_CACHE_CATALOG_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.CatalogTTL = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("TC_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}

	return cfg
}

// NewFromConfig builds the catalog cache, or nil when caching is disabled.
func NewFromConfig(cfg *CacheConfig) *LRUCache {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return NewLRUCache(cfg.MaxSize, cfg.CatalogTTL)
}
