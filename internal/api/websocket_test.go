package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, s *Server, header http.Header) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestWebSocketTranspose(t *testing.T) {
	s := newTestServer(t, testConfig())
	conn := dialWS(t, s, nil)

	msg := map[string]interface{}{
		"type": "transpose",
		"id":   "1",
		"text": "| Am  F | G  C |",
		"mode": "keys",
		"from": "C",
		"to":   "D",
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatal(err)
	}

	var reply WSReply
	readJSON(t, conn, &reply)
	if reply.Type != "result" || reply.ID != "1" {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.Result == nil || reply.Result.Text != "| Bm  G | A  D |" {
		t.Errorf("result = %+v", reply.Result)
	}

	conn.WriteJSON(map[string]interface{}{"type": "entry", "id": "2", "text": "Db", "mode": "offset", "notation": "sharps"})
	readJSON(t, conn, &reply)
	if reply.Type != "result" || reply.Result.Text != "C#" {
		t.Errorf("entry reply = %+v", reply)
	}
}

func TestWebSocketErrors(t *testing.T) {
	s := newTestServer(t, testConfig())
	conn := dialWS(t, s, nil)

	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"invalid json", "{oops", "INVALID_JSON"},
		{"unknown type", `{"type":"subscribe","id":"a"}`, "UNKNOWN_TYPE"},
		{"unknown instrument", `{"type":"transpose","id":"b","text":"C","from":"C","to":"X"}`, "NOT_FOUND"},
		{"missing target", `{"type":"transpose","id":"c","text":"C","from":"C"}`, "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)); err != nil {
				t.Fatal(err)
			}
			var reply WSReply
			readJSON(t, conn, &reply)
			if reply.Type != "error" || reply.Error == nil || reply.Error.Code != tt.code {
				t.Errorf("reply = %+v, want error %s", reply, tt.code)
			}
		})
	}

	conn.WriteJSON(map[string]string{"type": "ping", "id": "p"})
	var pong WSReply
	readJSON(t, conn, &pong)
	if pong.Type != "pong" || pong.ID != "p" {
		t.Errorf("pong = %+v", pong)
	}
}

func TestWebSocketMessageRate(t *testing.T) {
	cfg := testConfig()
	cfg.WSMessageRate = 1
	s := newTestServer(t, cfg)
	conn := dialWS(t, s, nil)

	for i := 0; i < 3; i++ {
		conn.WriteJSON(map[string]string{"type": "ping"})
	}

	var replies []WSReply
	for i := 0; i < 3; i++ {
		var r WSReply
		readJSON(t, conn, &r)
		replies = append(replies, r)
	}
	if replies[0].Type != "pong" || replies[1].Type != "pong" {
		t.Errorf("burst replies = %+v", replies[:2])
	}
	if replies[2].Type != "error" || replies[2].Error.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("third reply = %+v", replies[2])
	}
}

func TestWebSocketJobBroadcast(t *testing.T) {
	s := newTestServer(t, testConfig())
	conn := dialWS(t, s, nil)

	s.hub.BroadcastJob("job-1", JobStatusRunning, 10, "")

	var msg ProgressMessage
	readJSON(t, conn, &msg)
	if msg.Type != "job" || msg.JobID != "job-1" || msg.Status != JobStatusRunning || msg.Progress != 10 {
		t.Errorf("broadcast = %+v", msg)
	}
}

func TestWebSocketOriginRestricted(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://band.example"}
	s := newTestServer(t, cfg)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected handshake to fail for disallowed origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("handshake response = %v", resp)
	}

	header.Set("Origin", "https://band.example")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{"https://a.example", nil, true},
		{"", nil, true},
		{"https://a.example", []string{"https://a.example"}, true},
		{"https://b.example", []string{"https://a.example"}, false},
		{"", []string{"https://a.example"}, false},
		{"https://b.example", []string{"*"}, true},
	}
	for _, tt := range tests {
		if got := isOriginAllowed(tt.origin, tt.allowed); got != tt.want {
			t.Errorf("isOriginAllowed(%q, %v) = %v, want %v", tt.origin, tt.allowed, got, tt.want)
		}
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	c := &Client{hub: hub, send: make(chan []byte, 1)}

	if hub.sendTo(c, []byte("x")) {
		t.Error("sendTo unregistered client should fail")
	}

	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d", hub.ClientCount())
	}
	if !hub.sendTo(c, []byte("x")) {
		t.Error("sendTo registered client failed")
	}
	if hub.sendTo(c, []byte("y")) {
		t.Error("sendTo with full buffer should fail")
	}

	hub.Unregister(c)
	hub.Unregister(c)
	if _, ok := <-c.send; !ok {
		t.Error("queued message lost")
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel not closed")
	}

	hub.Close()
	hub.Close()
}

func TestProgressMessageJSON(t *testing.T) {
	data, err := json.Marshal(ProgressMessage{Type: "job", JobID: "x", Status: JobStatusCompleted, Progress: 100})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"status":"completed"`) {
		t.Errorf("json = %s", data)
	}
}
