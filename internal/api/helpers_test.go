package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimitRequests = 0
	cfg.Version = "test"
	return cfg
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	s := NewServer(cfg, nil)
	t.Cleanup(s.Close)
	return s
}

// doRequest sends body (JSON-encoded unless it is already a []byte) and
// decodes the APIResponse envelope.
func doRequest(t *testing.T, h http.Handler, method, path, contentType string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp APIResponse
	if ct := w.Header().Get("Content-Type"); ct == "application/json" {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
		}
	}
	return w, resp
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	return doRequest(t, h, http.MethodPost, path, "application/json", body)
}

// decodeData re-decodes the envelope's Data into v.
func decodeData(t *testing.T, resp APIResponse, v interface{}) {
	t.Helper()
	data, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, resp APIResponse, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	if resp.Success {
		t.Error("expected success to be false")
	}
	if resp.Error == nil || resp.Error.Code != code {
		t.Errorf("error = %+v, want code %s", resp.Error, code)
	}
}
