package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	cserrors "github.com/FocuswithJustin/chordshift/core/errors"
	"github.com/FocuswithJustin/chordshift/core/shift"
	"github.com/FocuswithJustin/chordshift/core/sqlite"
	"github.com/FocuswithJustin/chordshift/core/transpose"
	"github.com/FocuswithJustin/chordshift/internal/archive"
	"github.com/FocuswithJustin/chordshift/internal/cache"
	"github.com/FocuswithJustin/chordshift/internal/logging"
	"github.com/FocuswithJustin/chordshift/internal/server"
	"github.com/FocuswithJustin/chordshift/internal/validation"
)

// maxJSONBody bounds JSON request bodies; a chart escaped into JSON can
// grow, so it gets twice the raw chart limit.
const maxJSONBody = 2 * validation.MaxChartSize

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Selection modes accepted in TransposeRequest.Mode.
const (
	ModeInstruments = "instruments"
	ModeKeys        = "keys"
	ModeOffset      = "offset"
)

// TransposeRequest is the body of /transpose, /transpose/entry, /download,
// /jobs and WebSocket transpose messages.
//
// The shift is chosen by Shift (an expression such as "Bb -> Eb" or "+3")
// when set, otherwise by Mode: an instrument pair, a concert-key pair or a
// raw semitone offset. Mode defaults to instruments.
type TransposeRequest struct {
	Text        string `json:"text"`
	Mode        string `json:"mode,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Semitones   int    `json:"semitones,omitempty"`
	PreferFlats bool   `json:"prefer_flats,omitempty"`
	Shift       string `json:"shift,omitempty"`
	Notation    string `json:"notation,omitempty"`
	Compress    bool   `json:"compress,omitempty"`
}

// TransposeResponse is the result of a transposition.
type TransposeResponse struct {
	Text        string `json:"text"`
	Lines       int    `json:"lines,omitempty"`
	Tokens      int    `json:"tokens,omitempty"`
	Semitones   int    `json:"semitones"`
	PreferFlats bool   `json:"prefer_flats"`
	Notation    string `json:"notation"`
	Spelling    string `json:"spelling"`
	Cached      bool   `json:"cached,omitempty"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Instruments int    `json:"instruments"`
	Keys        int    `json:"keys"`
	Jobs        int    `json:"jobs"`
	CachedItems int    `json:"cached_items"`
	SQLite      string `json:"sqlite"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "chordshift API",
		"version": s.cfg.Version,
		"endpoints": []string{
			"GET /health",
			"GET /instruments",
			"GET /keys",
			"POST /transpose",
			"POST /transpose/entry",
			"POST /download",
			"GET /jobs",
			"POST /jobs",
			"GET /jobs/:id",
			"DELETE /jobs/:id",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	cached := 0
	if s.results != nil {
		cached = s.results.Len()
	}

	respond(w, http.StatusOK, HealthInfo{
		Status:      "healthy",
		Version:     s.cfg.Version,
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Instruments: len(s.catalog.Instruments()),
		Keys:        len(s.catalog.Keys()),
		Jobs:        len(s.jobs.List()),
		CachedItems: cached,
		SQLite:      sqlite.DriverType(),
	})
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	instruments := s.catalog.Instruments()
	respondList(w, instruments, len(instruments))
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	keys := s.catalog.Keys()
	respondList(w, keys, len(keys))
}

// handleTranspose handles POST /transpose. The body is either a JSON
// TransposeRequest or a raw chart (text/plain or xz) with the selection
// in query parameters.
func (s *Server) handleTranspose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	req, err := decodeTransposeRequest(w, r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	resp, err := s.transposeChart(r.Context(), req)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, resp)
}

// handleTransposeEntry handles POST /transpose/entry for a single token.
func (s *Server) handleTransposeEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	req, err := decodeJSON(w, r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	resp, err := s.transposeEntry(r.Context(), req)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, resp)
}

// transposeEntry transposes a single whitespace-free token.
func (s *Server) transposeEntry(ctx context.Context, req *TransposeRequest) (*TransposeResponse, error) {
	if req.Text == "" || strings.ContainsAny(req.Text, " \t\r\n") {
		return nil, &cserrors.ValidationError{Field: "text", Value: req.Text, Message: "entry must be a single token"}
	}

	tr, kind, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	logging.Transposition(ctx, kind, tr.Semitones, string(tr.Notation), 1)
	return newTransposeResponse(tr.Entry(req.Text), tr), nil
}

// handleDownload handles POST /download, returning the transposed chart as
// an attachment, xz-compressed when requested.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	req, err := decodeTransposeRequest(w, r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	resp, err := s.transposeChart(r.Context(), req)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := archive.EncodeChart(&buf, resp.Text, req.Compress); err != nil {
		respondErr(w, r, err)
		return
	}

	contentType := "text/plain; charset=utf-8"
	if req.Compress {
		contentType = "application/x-xz"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.OutputName(req.Compress)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// transposeChart resolves req and transposes its text, consulting the
// result cache first.
func (s *Server) transposeChart(ctx context.Context, req *TransposeRequest) (*TransposeResponse, error) {
	if err := validation.ValidateChartText([]byte(req.Text)); err != nil {
		return nil, err
	}

	tr, kind, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	key := cache.ResultKey(req.Text, tr)
	if s.results != nil {
		if res, ok := s.results.Get(key); ok {
			resp := newTransposeResponse(res.Text, tr)
			resp.Lines, resp.Tokens, resp.Cached = res.Lines, res.Tokens, true
			return resp, nil
		}
	}

	res, err := s.transposer.Transpose(ctx, req.Text, tr)
	if err != nil {
		return nil, err
	}
	if s.results != nil {
		s.results.Set(key, res)
	}

	logging.Transposition(ctx, kind, tr.Semitones, string(tr.Notation), res.Lines)
	resp := newTransposeResponse(res.Text, tr)
	resp.Lines, resp.Tokens = res.Lines, res.Tokens
	return resp, nil
}

// resolve turns a request into engine parameters. The returned kind names
// the selection mode for logging.
func (s *Server) resolve(req *TransposeRequest) (transpose.Request, string, error) {
	notation, err := transpose.ParseNotation(req.Notation)
	if err != nil {
		return transpose.Request{}, "", err
	}

	if req.Shift != "" {
		expr, err := shift.Parse(req.Shift)
		if err != nil {
			return transpose.Request{}, "", err
		}
		tr, err := s.catalog.Resolve(expr, notation)
		return tr, expr.Kind.String(), err
	}

	switch strings.ToLower(req.Mode) {
	case "", ModeInstruments:
		tr, err := s.catalog.ByInstruments(req.From, req.To, notation)
		return tr, ModeInstruments, err
	case ModeKeys:
		tr, err := s.catalog.ByKeys(req.From, req.To, notation)
		return tr, ModeKeys, err
	case ModeOffset:
		return transpose.Request{
			Semitones:   req.Semitones,
			PreferFlats: req.PreferFlats,
			Notation:    notation,
		}, ModeOffset, nil
	}
	return transpose.Request{}, "", &cserrors.ValidationError{
		Field:   "mode",
		Value:   req.Mode,
		Message: "must be instruments, keys or offset",
	}
}

func newTransposeResponse(text string, tr transpose.Request) *TransposeResponse {
	notation := tr.Notation
	if notation == "" {
		notation = transpose.Auto
	}
	return &TransposeResponse{
		Text:        text,
		Semitones:   tr.Semitones,
		PreferFlats: tr.PreferFlats,
		Notation:    string(notation),
		Spelling:    tr.Spelling().String(),
	}
}

// decodeTransposeRequest reads a JSON request, or a raw chart upload with
// the selection in query parameters.
func decodeTransposeRequest(w http.ResponseWriter, r *http.Request) (*TransposeRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" || server.ValidateContentType(contentType, server.JSONContentTypes) {
		return decodeJSON(w, r)
	}
	if !server.ValidateContentType(contentType, server.ChartContentTypes) {
		return nil, cserrors.NewUnsupported("content type", contentType)
	}

	text, err := decodeChartBody(w, r)
	if err != nil {
		return nil, err
	}

	q := r.URL.Query()
	req := &TransposeRequest{
		Text:     text,
		Mode:     q.Get("mode"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Shift:    q.Get("shift"),
		Notation: q.Get("notation"),
	}
	if v := q.Get("semitones"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &cserrors.ValidationError{Field: "semitones", Value: v, Message: "must be an integer"}
		}
		req.Semitones = n
	}
	req.PreferFlats, _ = strconv.ParseBool(q.Get("prefer_flats"))
	req.Compress, _ = strconv.ParseBool(q.Get("compress"))
	return req, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request) (*TransposeRequest, error) {
	var req TransposeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, cserrors.NewTooLarge("body", maxJSONBody)
		}
		return nil, &cserrors.ParseError{Format: "JSON", Message: err.Error()}
	}
	return &req, nil
}

// decodeChartBody reads an uploaded chart, rejecting binary formats and
// decompressing xz.
func decodeChartBody(w http.ResponseWriter, r *http.Request) (string, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validation.MaxChartSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", cserrors.NewTooLarge("body", validation.MaxChartSize)
		}
		return "", cserrors.NewIO("read", "request body", err)
	}

	if _, err := validation.DetectFileType(bytes.NewReader(data)); err != nil {
		return "", err
	}
	return archive.DecodeChart(bytes.NewReader(data))
}

// statusFor maps an error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, cserrors.ErrTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, "TOO_LARGE"
	case errors.Is(err, cserrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, cserrors.ErrUnsupported),
		errors.Is(err, validation.ErrNotText),
		errors.Is(err, validation.ErrInvalidUTF8):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"
	case errors.Is(err, cserrors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		message = "Internal server error"
	}
	respondError(w, status, code, message)
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondList(w http.ResponseWriter, data interface{}, total int) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
