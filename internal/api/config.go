package api

import "time"

// Config holds server configuration.
type Config struct {
	Port              int
	Version           string
	RateLimitRequests int           // Requests per minute (0 = disabled)
	RateLimitBurst    int           // Burst size
	AllowedOrigins    []string      // CORS and WebSocket allowed origins (empty = allow all)
	TLS               TLSConfig     // TLS configuration
	CacheTTL          time.Duration // Lifetime of cached results (0 = caching disabled)
	CacheEntries      int           // Maximum cached results
	ParallelThreshold int           // Line count above which charts use the worker pool
	Workers           int           // Worker pool size (0 = one per CPU)
	WSMessageRate     int           // WebSocket messages per second per client
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool   // Enable HTTPS
	CertFile string // Path to TLS certificate file
	KeyFile  string // Path to TLS private key file
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Port:              8080,
		Version:           "dev",
		RateLimitRequests: 120,
		RateLimitBurst:    20,
		CacheTTL:          10 * time.Minute,
		CacheEntries:      512,
		WSMessageRate:     10,
	}
}
