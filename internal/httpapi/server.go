// Package httpapi exposes the chat pipeline over HTTP: a JSON session
// endpoint plus two stream transports (SSE and websocket) carrying the same
// event protocol.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Whalli/whalli-sub000/internal/chat"
	"github.com/Whalli/whalli-sub000/internal/message"
	"github.com/Whalli/whalli-sub000/internal/observability"
	"github.com/Whalli/whalli-sub000/internal/protocol"
	"github.com/Whalli/whalli-sub000/internal/session"
)

// identityHeader names the authenticated caller. Authentication itself is the
// gateway's job; this service trusts the header.
const identityHeader = "X-Whalli-User"

// Orchestrator is the pipeline surface the transport needs.
type Orchestrator interface {
	StartSession(ctx context.Context, in chat.StartInput) (*session.Session, error)
	StreamSession(ctx context.Context, sessionID, requesterID string) <-chan protocol.StreamEvent
	ConversationMessages(ctx context.Context, ownerID, conversationID string, limit int) ([]message.Message, error)
}

type Server struct {
	orch     Orchestrator
	log      zerolog.Logger
	vendors  []string
	upgrader websocket.Upgrader
}

func New(orch Orchestrator, log zerolog.Logger, vendors []string, allowAnyOrigin bool) *Server {
	return &Server{
		orch:    orch,
		log:     log,
		vendors: vendors,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browser websocket connections must come from the same
				// origin unless explicitly opened up. Non-browser clients
				// omit Origin and are allowed.
				if allowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat/sessions", s.handleStartSession)
	r.Get("/v1/chat/sessions/{id}/stream", s.handleStreamSSE)
	r.Get("/v1/chat/sessions/{id}/ws", s.handleStreamWS)
	r.Get("/v1/chat/conversations/{id}/messages", s.handleConversationMessages)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"vendors": s.vendors,
	})
}

type startSessionRequest struct {
	ModelID        string `json:"model_id"`
	Prompt         string `json:"prompt"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ownerID := callerID(r)
	if ownerID == "" {
		respondError(w, http.StatusUnauthorized, "missing_identity", "the "+identityHeader+" header is required")
		return
	}

	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess, err := s.orch.StartSession(r.Context(), chat.StartInput{
		OwnerID:        ownerID,
		ModelID:        req.ModelID,
		Prompt:         req.Prompt,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		var denied *chat.AccessDeniedError
		switch {
		case errors.As(err, &denied):
			respondError(w, http.StatusForbidden, "access_denied", denied.Error())
		case errors.Is(err, chat.ErrModelNotFound):
			respondError(w, http.StatusNotFound, "model_not_found", err.Error())
		case errors.Is(err, chat.ErrInvalidRequest):
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			s.log.Error().Err(err).Msg("start session failed")
			respondError(w, http.StatusInternalServerError, "internal", "failed to start session")
		}
		return
	}

	respondJSON(w, http.StatusCreated, sess)
}

// handleStreamSSE relays the session's event stream as server-sent events,
// one JSON event per data frame.
func (s *Server) handleStreamSSE(w http.ResponseWriter, r *http.Request) {
	ownerID := callerID(r)
	if ownerID == "" {
		respondError(w, http.StatusUnauthorized, "missing_identity", "the "+identityHeader+" header is required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "unsupported", "streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := s.orch.StreamSession(r.Context(), chi.URLParam(r, "id"), ownerID)
	for evt := range events {
		payload, err := evt.Encode()
		if err != nil {
			s.log.Error().Err(err).Msg("encoding stream event failed")
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

// handleStreamWS carries the same events over a websocket, one JSON message
// per event, and closes cleanly after the terminal event.
func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	ownerID := callerID(r)
	if ownerID == "" {
		respondError(w, http.StatusUnauthorized, "missing_identity", "the "+identityHeader+" header is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain client frames so pings and close messages are processed; the
	// stream is one-directional.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events := s.orch.StreamSession(ctx, chi.URLParam(r, "id"), ownerID)
	for evt := range events {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(evt); err != nil {
			return
		}
	}

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	ownerID := callerID(r)
	if ownerID == "" {
		respondError(w, http.StatusUnauthorized, "missing_identity", "the "+identityHeader+" header is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	msgs, err := s.orch.ConversationMessages(r.Context(), ownerID, chi.URLParam(r, "id"), limit)
	if err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			respondError(w, http.StatusNotFound, "conversation_not_found", err.Error())
			return
		}
		s.log.Error().Err(err).Msg("listing conversation failed")
		respondError(w, http.StatusInternalServerError, "internal", "failed to list messages")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func callerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(identityHeader))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
