package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// handleQueryAudit lists audit entries, newest first.
//
// Query parameters: workflow, action, actor, from, to (RFC 3339 or
// YYYY-MM-DD), limit, offset.
func (s *Server) handleQueryAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := core.AuditFilter{
		Workflow: q.Get("workflow"),
		Action:   core.AuditAction(q.Get("action")),
		ActorID:  q.Get("actor"),
	}
	if filter.Action != "" && !filter.Action.Valid() {
		respondError(w, r, badRequest("action must be create, update or delete"))
		return
	}

	var err error
	if filter.From, err = parseTimeParam(q.Get("from")); err != nil {
		respondError(w, r, badRequest("from: "+err.Error()))
		return
	}
	if filter.To, err = parseTimeParam(q.Get("to")); err != nil {
		respondError(w, r, badRequest("to: "+err.Error()))
		return
	}
	filter.Limit = parseIntParam(r, "limit", core.DefaultAuditLimit)
	filter.Offset = parseIntParam(r, "offset", 0)

	entries, err := s.service.QueryAudit(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	filter = filter.Normalize()
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": nonNilEntries(entries),
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// handleRecordHistory returns every audit entry for one record.
func (s *Server) handleRecordHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.RecordHistory(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": nonNilEntries(entries)})
}

func nonNilEntries(entries []core.AuditEntry) []core.AuditEntry {
	if entries == nil {
		return []core.AuditEntry{}
	}
	return entries
}

// parseIntParam parses a non-negative integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates. Empty is the zero time.
func parseTimeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
