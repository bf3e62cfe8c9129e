package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/chatmem-go/internal/logging"
	"github.com/54b3r/chatmem-go/internal/memory"
)

// maxRequestBody caps the size of JSON request bodies. Chat messages are
// small; anything larger is malformed or hostile.
const maxRequestBody = 1 << 20 // 1 MiB

// handleIndex handles POST /api/index. It validates the job identity and
// hands the job to the dispatcher. In sync mode the response means the
// message is searchable; in queue mode it means the job is durably enqueued.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req indexRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.metrics.indexRequestsTotal.WithLabelValues("error").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.MessageID == "" || req.ChatID == "" || req.UserID == "" {
		s.metrics.indexRequestsTotal.WithLabelValues("error").Inc()
		http.Error(w, "messageId, chatId and userId are required", http.StatusBadRequest)
		return
	}

	job := &memory.IndexJob{
		MessageID: req.MessageID,
		ChatID:    req.ChatID,
		UserID:    req.UserID,
		Role:      memory.Role(req.Role),
		Parts:     req.Parts,
	}

	if err := s.dispatcher.Index(r.Context(), job); err != nil {
		log.Error("index dispatch failed",
			slog.String("message_id", req.MessageID),
			slog.Any("error", err),
		)
		s.metrics.indexRequestsTotal.WithLabelValues("error").Inc()
		http.Error(w, "indexing failed", http.StatusInternalServerError)
		return
	}

	resp := indexResponse{Status: "indexed", MessageID: req.MessageID}
	status := http.StatusOK
	if s.cfg.Async {
		resp.Status = "queued"
		status = http.StatusAccepted
	}

	s.metrics.indexRequestsTotal.WithLabelValues(resp.Status).Inc()
	writeJSON(w, status, resp)
}

// handleSearch handles POST /api/search: embed the query, run the filtered
// similarity search, and return the ranked hits.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.metrics.searchRequestsTotal.WithLabelValues("error").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Query == "" || req.UserID == "" {
		s.metrics.searchRequestsTotal.WithLabelValues("error").Inc()
		http.Error(w, "query and userId are required", http.StatusBadRequest)
		return
	}

	opts := memory.SearchOptions{
		Limit:          req.Limit,
		ScoreThreshold: req.ScoreThreshold,
		ChatID:         req.ChatID,
		Role:           memory.Role(req.Role),
	}

	var err error
	if opts.After, err = parseTime(req.After); err != nil {
		s.metrics.searchRequestsTotal.WithLabelValues("error").Inc()
		http.Error(w, "after must be RFC3339", http.StatusBadRequest)
		return
	}
	if opts.Before, err = parseTime(req.Before); err != nil {
		s.metrics.searchRequestsTotal.WithLabelValues("error").Inc()
		http.Error(w, "before must be RFC3339", http.StatusBadRequest)
		return
	}

	start := time.Now()
	hits, err := s.retriever.Search(r.Context(), req.Query, req.UserID, opts)
	if err != nil {
		log.Error("search failed",
			slog.String("user_id", req.UserID),
			slog.Any("error", err),
		)
		s.metrics.searchRequestsTotal.WithLabelValues("error").Inc()
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	s.metrics.searchRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.searchDurationSeconds.Observe(time.Since(start).Seconds())

	if hits == nil {
		hits = []memory.SearchHit{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Hits: hits})
}

// handleDeleteMessage handles DELETE /api/messages/{id}.
func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, "message", s.store.DeleteByMessageID)
}

// handleDeleteChat handles DELETE /api/chats/{id}. All points of the
// conversation are removed in one store call.
func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, "chat", s.store.DeleteByChatID)
}

// handleDeleteUser handles DELETE /api/users/{id}. All points owned by the
// user are removed in one store call.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, "user", s.store.DeleteByUserID)
}

// handleDelete is the shared body of the three delete handlers. The store
// treats deleting an absent id as success, so the response is 204 either way.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, kind string, del func(ctx context.Context, id string) error) {
	log := logging.FromContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	if err := del(r.Context(), id); err != nil {
		log.Error("delete failed",
			slog.String("kind", kind),
			slog.String("id", id),
			slog.Any("error", err),
		)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}

	log.Info("deleted",
		slog.String("kind", kind),
		slog.String("id", id),
	)
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON decodes the request body into v, rejecting unknown fields and
// oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

// parseTime parses an optional RFC3339 timestamp. An empty string yields the
// zero time, which the store interprets as "no bound".
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
