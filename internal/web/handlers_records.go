package web

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// maxRecordBody bounds JSON bodies for single-record routes.
const maxRecordBody = 1 << 20

// blockedResponse is returned with 422 when issues stop a mutation.
type blockedResponse struct {
	ErrorResponse
	Validation core.ValidationResult `json:"validation"`
}

// handleListEntities returns every registered entity schema.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entities": s.service.ListEntities()})
}

// handleValidate runs the entity rules without writing anything.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	candidate, err := decodeCandidate(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.service.Validate(r.Context(), chi.URLParam(r, "entity"), candidate)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCheckDuplicates reports natural-key conflicts. The optional exclude
// query parameter names the candidate's own id on updates.
func (s *Server) handleCheckDuplicates(w http.ResponseWriter, r *http.Request) {
	candidate, err := decodeCandidate(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	issues, err := s.service.CheckDuplicates(r.Context(), chi.URLParam(r, "entity"), candidate, r.URL.Query().Get("exclude"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if issues == nil {
		issues = []core.ValidationIssue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"duplicate": len(issues) > 0,
		"issues":    issues,
	})
}

// handleComputeMetrics returns derived fields for a candidate.
func (s *Server) handleComputeMetrics(w http.ResponseWriter, r *http.Request) {
	candidate, err := decodeCandidate(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	metrics, err := s.service.ComputeMetrics(chi.URLParam(r, "entity"), candidate)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// handleCreate validates and saves a new record.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	candidate, err := decodeCandidate(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.service.CreateRecord(r.Context(), chi.URLParam(r, "entity"), candidate, actorID(r))
	s.writeMutation(w, r, result, err, http.StatusCreated)
}

// handleUpdate applies a partial update to an existing record.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	candidate, err := decodeCandidate(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.service.UpdateRecord(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "id"), candidate, actorID(r))
	s.writeMutation(w, r, result, err, http.StatusOK)
}

func (s *Server) writeMutation(w http.ResponseWriter, r *http.Request, result *core.MutationResult, err error, okStatus int) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	if blocked := result.Err(); blocked != nil {
		writeJSON(w, http.StatusUnprocessableEntity, blockedResponse{
			ErrorResponse: newErrorResponse(core.MapError(blocked)),
			Validation:    result.Validation,
		})
		return
	}
	writeJSON(w, okStatus, result)
}

// handleDelete removes a record.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.DeleteRecord(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetRecord loads one record.
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.GetRecord(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// decodeCandidate reads a JSON object body. Numbers stay json.Number so
// binding sees the caller's exact digits.
func decodeCandidate(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBody))
	dec.UseNumber()

	var candidate map[string]any
	if err := dec.Decode(&candidate); err != nil {
		if err == io.EOF {
			return nil, badRequest("request body is empty")
		}
		return nil, badRequest("request body must be a JSON object")
	}
	if candidate == nil {
		return nil, badRequest("request body must be a JSON object")
	}
	return candidate, nil
}
