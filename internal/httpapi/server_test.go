package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Whalli/whalli-sub000/internal/cache"
	"github.com/Whalli/whalli-sub000/internal/chat"
	"github.com/Whalli/whalli-sub000/internal/message"
	"github.com/Whalli/whalli-sub000/internal/policy"
	"github.com/Whalli/whalli-sub000/internal/protocol"
	"github.com/Whalli/whalli-sub000/internal/provider"
	"github.com/Whalli/whalli-sub000/internal/session"
	"github.com/Whalli/whalli-sub000/internal/workspace"
)

func newTestServer(t *testing.T, adapters ...provider.Adapter) *httptest.Server {
	t.Helper()
	if len(adapters) == 0 {
		adapters = []provider.Adapter{provider.NewMockAdapter("Hello", " ", "World")}
	}

	orch := chat.New(chat.Options{
		Sessions: session.NewMemoryStore(),
		Messages: message.NewMemoryStore(),
		Cache:    cache.NewMemoryStore(),
		Registry: provider.NewRegistry(adapters...),
		Policy: policy.NewAccessPolicy(policy.DefaultTierOrder, map[policy.Tier][]string{
			policy.TierFree: {"mock-model"},
			policy.TierPro:  {"pro-model"},
		}),
		Tasks:    workspace.NewMemoryTaskService(),
		Projects: workspace.NewMemoryProjectService(),
		Catalog: map[string]chat.ModelInfo{
			"mock-model": {ID: "mock-model", Vendor: "mock"},
			"pro-model":  {ID: "pro-model", Vendor: "mock"},
		},
		Logger: zerolog.Nop(),
	})

	srv := httptest.NewServer(New(orch, zerolog.Nop(), []string{"mock"}, false).Router())
	t.Cleanup(srv.Close)
	return srv
}

func startSession(t *testing.T, srv *httptest.Server, owner, model, prompt string) *session.Session {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"model_id": model, "prompt": prompt})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/chat/sessions", bytes.NewReader(body))
	req.Header.Set(identityHeader, owner)

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST sessions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 201; body: %s", resp.StatusCode, raw)
	}

	var s session.Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return &s
}

func readSSE(t *testing.T, srv *httptest.Server, owner, sessionID string) []protocol.StreamEvent {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/chat/sessions/"+sessionID+"/stream", nil)
	req.Header.Set(identityHeader, owner)

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream body: %v", err)
	}

	var events []protocol.StreamEvent
	for _, frame := range strings.Split(string(raw), "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		payload, ok := strings.CutPrefix(frame, "data: ")
		if !ok {
			t.Fatalf("frame without data prefix: %q", frame)
		}
		evt, err := protocol.ParseStreamEvent([]byte(payload))
		if err != nil {
			t.Fatalf("parse event %q: %v", payload, err)
		}
		events = append(events, evt)
	}
	return events
}

func TestStartSessionAndStreamSSE(t *testing.T) {
	srv := newTestServer(t)
	s := startSession(t, srv, "u1", "mock-model", "say hi")

	if s.ID == "" || s.OwnerID != "u1" || s.ModelID != "mock-model" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if !s.ExpiresAt.After(s.CreatedAt) {
		t.Fatalf("expires_at %v not after created_at %v", s.ExpiresAt, s.CreatedAt)
	}

	events := readSSE(t, srv, "u1", s.ID)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 3 tokens + done: %+v", len(events), events)
	}
	var text strings.Builder
	for _, evt := range events[:3] {
		if evt.Type != protocol.TypeToken {
			t.Fatalf("event = %+v, want token", evt)
		}
		text.WriteString(evt.Content)
	}
	if text.String() != "Hello World" {
		t.Fatalf("streamed text = %q, want %q", text.String(), "Hello World")
	}
	if events[3].Type != protocol.TypeDone {
		t.Fatalf("last event = %+v, want done", events[3])
	}
}

func TestStartSessionRequiresIdentity(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"model_id":"mock-model","prompt":"hi"}`)
	resp, err := srv.Client().Post(srv.URL+"/v1/chat/sessions", "application/json", body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestStartSessionErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"access denied", `{"model_id":"pro-model","prompt":"hi"}`, http.StatusForbidden, "access_denied"},
		{"unknown model", `{"model_id":"ghost","prompt":"hi"}`, http.StatusNotFound, "model_not_found"},
		{"empty prompt", `{"model_id":"mock-model"}`, http.StatusBadRequest, "invalid_request"},
		{"malformed body", `{`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/chat/sessions", strings.NewReader(tt.body))
			req.Header.Set(identityHeader, "u1")
			resp, err := srv.Client().Do(req)
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var e errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if e.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", e.Code, tt.wantCode)
			}
		})
	}
}

func TestStreamUnknownSessionYieldsErrorEvent(t *testing.T) {
	srv := newTestServer(t)

	events := readSSE(t, srv, "u1", "no-such-session")
	if len(events) != 1 || events[0].Type != protocol.TypeError {
		t.Fatalf("events = %+v, want a single error", events)
	}
	if events[0].Message != "session not found" {
		t.Fatalf("message = %q, want session not found", events[0].Message)
	}
}

func TestStreamWebsocket(t *testing.T) {
	srv := newTestServer(t)
	s := startSession(t, srv, "u1", "mock-model", "say hi")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chat/sessions/" + s.ID + "/ws"
	header := http.Header{}
	header.Set(identityHeader, "u1")

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	var events []protocol.StreamEvent
	for {
		var evt protocol.StreamEvent
		if err := conn.ReadJSON(&evt); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			t.Fatalf("read: %v", err)
		}
		events = append(events, evt)
		if evt.Terminal() {
			break
		}
	}

	var text strings.Builder
	for _, evt := range events {
		if evt.Type == protocol.TypeToken {
			text.WriteString(evt.Content)
		}
	}
	if text.String() != "Hello World" {
		t.Fatalf("streamed text = %q, want %q", text.String(), "Hello World")
	}
	if last := events[len(events)-1]; last.Type != protocol.TypeDone {
		t.Fatalf("last event = %+v, want done", last)
	}
}

func TestConversationMessagesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(map[string]string{
		"model_id":        "mock-model",
		"prompt":          "first",
		"conversation_id": "conv-1",
	})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/chat/sessions", bytes.NewReader(body))
	req.Header.Set(identityHeader, "u1")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	var s session.Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	resp.Body.Close()
	readSSE(t, srv, "u1", s.ID)

	get := func(owner string) *http.Response {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/chat/conversations/conv-1/messages", nil)
		req.Header.Set(identityHeader, owner)
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("GET messages: %v", err)
		}
		return resp
	}

	resp = get("u1")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Messages []message.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("got %d messages, want prompt + response", len(out.Messages))
	}

	foreign := get("u2")
	defer foreign.Body.Close()
	if foreign.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign status = %d, want 404", foreign.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}
