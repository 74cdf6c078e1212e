package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CacheConfig defines settings for the Redis response cache that fronts
// public event reads. When Enabled is false or no Redis client is
// configured, caching is disabled. KeyStrategy determines which parts of
// the request contribute to the cache key; Prefix namespaces the keys.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

func loadCacheConfig(v *viper.Viper) CacheConfig {
	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_TTL", "30s")
	v.SetDefault("CACHE_KEY_STRATEGY", "route_query")
	v.SetDefault("CACHE_PREFIX", "cache")
	v.SetDefault("CACHE_MAX_BODY_BYTES", 1<<20)

	cfg := CacheConfig{
		Enabled:      v.GetBool("CACHE_ENABLED"),
		TTL:          v.GetDuration("CACHE_TTL"),
		KeyStrategy:  strings.ToLower(v.GetString("CACHE_KEY_STRATEGY")),
		Prefix:       v.GetString("CACHE_PREFIX"),
		MaxBodyBytes: v.GetInt("CACHE_MAX_BODY_BYTES"),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Second
	}
	return cfg
}
