package web

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/csvrows"
)

// importRejectedResponse is returned with 422 when the batch fails validation.
type importRejectedResponse struct {
	ErrorResponse
	*core.ImportResult
}

// handleImport parses a CSV upload and imports it as one batch.
//
// The file is read from the multipart "file" field, or from the body itself
// when Content-Type is text/csv.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	if _, err := core.Lookup(entity); err != nil {
		respondError(w, r, err)
		return
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	body, closeBody, err := importBody(r, maxSize)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer closeBody()

	rows, err := csvrows.ReadRows(body, maxSize)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = csvrows.ErrFileTooLarge
		}
		respondError(w, r, err)
		return
	}

	result, err := s.service.BulkImport(r.Context(), entity, rows, actorID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if rejected := result.Err(); rejected != nil {
		writeJSON(w, http.StatusUnprocessableEntity, importRejectedResponse{
			ErrorResponse: newErrorResponse(core.MapError(rejected)),
			ImportResult:  result,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// importBody returns the CSV stream from the request.
func importBody(r *http.Request, maxSize int64) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "text/csv", "application/csv":
		return r.Body, func() {}, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxSize); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, nil, csvrows.ErrFileTooLarge
			}
			return nil, nil, badRequest("invalid multipart form")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, nil, badRequest("no file provided")
		}
		return file, func() { file.Close() }, nil
	default:
		return nil, nil, badRequest("upload a multipart form with a file field or a text/csv body")
	}
}
