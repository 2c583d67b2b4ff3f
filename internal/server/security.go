package server

import (
	"net/http"
	"strings"
)

// CSPConfig holds Content-Security-Policy configuration.
type CSPConfig struct {
	DefaultSrc     []string
	ConnectSrc     []string
	FrameAncestors []string
	BaseURI        []string
	FormAction     []string
	// UpgradeInsecureRequests forces HTTPS
	UpgradeInsecureRequests bool
}

// APICSPConfig returns a strict CSP configuration for REST API endpoints.
// APIs don't load resources, so everything is denied.
func APICSPConfig() CSPConfig {
	return CSPConfig{
		DefaultSrc:     []string{"'none'"},
		FrameAncestors: []string{"'none'"},
		BaseURI:        []string{"'none'"},
		FormAction:     []string{"'none'"},
	}
}

// BuildCSPHeader builds a Content-Security-Policy header value from config.
func (cfg CSPConfig) BuildCSPHeader() string {
	var directives []string

	add := func(name string, sources []string) {
		if len(sources) > 0 {
			directives = append(directives, name+" "+strings.Join(sources, " "))
		}
	}
	add("default-src", cfg.DefaultSrc)
	add("connect-src", cfg.ConnectSrc)
	add("frame-ancestors", cfg.FrameAncestors)
	add("base-uri", cfg.BaseURI)
	add("form-action", cfg.FormAction)
	if cfg.UpgradeInsecureRequests {
		directives = append(directives, "upgrade-insecure-requests")
	}

	return strings.Join(directives, "; ")
}

// SecurityHeadersWithCSP adds the standard security headers plus a configurable CSP.
func SecurityHeadersWithCSP(cfg CSPConfig, next http.Handler) http.Handler {
	cspHeader := cfg.BuildCSPHeader()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		if cspHeader != "" {
			w.Header().Set("Content-Security-Policy", cspHeader)
		}

		next.ServeHTTP(w, r)
	})
}

// ValidateContentType checks if a Content-Type header is in the allowed list.
// An empty header is accepted so that plain curl uploads work.
func ValidateContentType(contentType string, allowed []string) bool {
	if contentType == "" {
		return true
	}
	mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])

	for _, allowedType := range allowed {
		if strings.EqualFold(mediaType, allowedType) {
			return true
		}
	}

	return false
}

// JSONContentTypes are accepted on JSON request bodies.
var JSONContentTypes = []string{"application/json"}

// ChartContentTypes are accepted on raw chart uploads.
var ChartContentTypes = []string{
	"text/plain",
	"application/x-xz",
	"application/octet-stream", // validated by magic bytes
}
