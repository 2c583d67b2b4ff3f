package server

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSMiddlewareAllowAll(t *testing.T) {
	handler := CORSMiddlewareWithConfig(CORSConfig{}, okHandler())

	req := httptest.NewRequest(http.MethodGet, "/keys", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("credentials must not be allowed with wildcard origin")
	}
}

func TestCORSMiddlewareRestrictedOrigins(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://band.example", "https://trusted.example"}}
	handler := CORSMiddlewareWithConfig(cfg, okHandler())

	tests := []struct {
		name              string
		method            string
		origin            string
		expectStatus      int
		expectAllowOrigin string
	}{
		{"allowed origin", http.MethodGet, "https://band.example", http.StatusOK, "https://band.example"},
		{"second allowed origin", http.MethodGet, "https://trusted.example", http.StatusOK, "https://trusted.example"},
		{"disallowed origin", http.MethodGet, "https://evil.example", http.StatusOK, ""},
		{"disallowed preflight", http.MethodOptions, "https://evil.example", http.StatusForbidden, ""},
		{"allowed preflight", http.MethodOptions, "https://band.example", http.StatusNoContent, "https://band.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/transpose", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.expectStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.expectAllowOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.expectAllowOrigin)
			}
			if tt.expectAllowOrigin != "" && w.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("expected Allow-Credentials for explicit origin")
			}
		})
	}
}

func TestParseOrigins(t *testing.T) {
	got := ParseOrigins(" https://a.example, ,https://b.example ")
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseOrigins = %v, want %v", got, want)
	}
	if ParseOrigins("") != nil {
		t.Error("ParseOrigins(\"\") should be nil")
	}
}

func TestTimingMiddleware(t *testing.T) {
	for _, delay := range []time.Duration{0, SlowRequestThreshold + 10*time.Millisecond} {
		handler := TimingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(delay)
			w.WriteHeader(http.StatusTeapot)
		}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusTeapot {
			t.Errorf("delay %v: status = %d", delay, w.Code)
		}
	}
}

func TestBuildCSPHeader(t *testing.T) {
	tests := []struct {
		name     string
		cfg      CSPConfig
		expected string
	}{
		{
			name:     "api",
			cfg:      APICSPConfig(),
			expected: "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'",
		},
		{
			name: "with upgrade-insecure-requests",
			cfg: CSPConfig{
				DefaultSrc:              []string{"'self'"},
				ConnectSrc:              []string{"'self'", "wss://example.com"},
				UpgradeInsecureRequests: true,
			},
			expected: "default-src 'self'; connect-src 'self' wss://example.com; upgrade-insecure-requests",
		},
		{name: "empty", cfg: CSPConfig{}, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BuildCSPHeader(); got != tt.expected {
				t.Errorf("BuildCSPHeader() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSecurityHeadersWithCSP(t *testing.T) {
	handler := SecurityHeadersWithCSP(APICSPConfig(), okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": APICSPConfig().BuildCSPHeader(),
	}
	for header, value := range want {
		if got := w.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		contentType string
		allowed     []string
		want        bool
	}{
		{"application/json", JSONContentTypes, true},
		{"application/json; charset=utf-8", JSONContentTypes, true},
		{"APPLICATION/JSON", JSONContentTypes, true},
		{"", JSONContentTypes, true},
		{"text/html", JSONContentTypes, false},
		{"text/plain; charset=utf-8", ChartContentTypes, true},
		{"application/x-xz", ChartContentTypes, true},
		{"application/zip", ChartContentTypes, false},
	}

	for _, tt := range tests {
		if got := ValidateContentType(tt.contentType, tt.allowed); got != tt.want {
			t.Errorf("ValidateContentType(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}
