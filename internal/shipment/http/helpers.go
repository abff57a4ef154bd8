package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"riderBack/internal/shipment/repo"
)

type envelope struct {
	Success    bool        `json:"success"`
	Timestamp  string      `json:"timestamp"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
}

type pagination struct {
	Cursor     *string `json:"cursor"`
	NextCursor *string `json:"nextCursor"`
	PrevCursor *string `json:"prevCursor"`
	Limit      int     `json:"limit"`
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *Server) writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Timestamp: s.timestamp(), Data: data})
}

func (s *Server) writeMessage(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Timestamp: s.timestamp(), Message: message, Data: data})
}

func (s *Server) writePage(w http.ResponseWriter, data interface{}, page pagination) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Timestamp: s.timestamp(), Data: data, Pagination: &page})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeErrorWith(w, status, message, nil)
}

// writeErrorWith adds extra top-level fields next to the standard error envelope.
func (s *Server) writeErrorWith(w http.ResponseWriter, status int, message string, extra map[string]interface{}) {
	body := map[string]interface{}{
		"success":   false,
		"timestamp": s.timestamp(),
		"message":   message,
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func contextWithTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 5*time.Second)
}

func (s *Server) parsePaging(r *http.Request) (int, *repo.Cursor, error) {
	limit := s.cfg.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 {
			return 0, nil, fmt.Errorf("invalid limit")
		}
		limit = l
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	cursor, err := repo.DecodeCursor(strings.TrimSpace(r.URL.Query().Get("cursor")))
	if err != nil {
		return 0, nil, fmt.Errorf("invalid cursor")
	}
	return limit, cursor, nil
}

func pathID(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get(":id"))
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
