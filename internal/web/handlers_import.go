package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/ticketimport/internal/core"
)

// multipartMemory is how much of a multipart form is buffered in memory
// before the rest spills to temporary files.
const multipartMemory = 8 << 20

// multipartOverhead leaves room for boundaries and form fields on top of
// the file itself.
const multipartOverhead = 64 << 10

// handleImport runs one batch import from a multipart upload.
//
// Form fields:
//   - file: the CSV, JSON or XML document (required)
//   - autoClassify: "true" or "false"; defaults to IMPORT_AUTO_CLASSIFY
//
// A batch with failed records still answers 200; the outcome lists them.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, core.ErrFileTooLarge)
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid request: expected multipart form with a file field")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	autoClassify := s.cfg.Import.AutoClassify
	if v := r.FormValue("autoClassify"); v != "" {
		autoClassify, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid request: autoClassify must be true or false")
			return
		}
	}

	// One byte past the limit is enough for the service to reject it.
	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request: could not read uploaded file")
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	outcome, err := s.service.ImportBatch(ctx, core.ImportRequest{
		Data:         data,
		FileName:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		AutoClassify: autoClassify,
	})
	if err != nil {
		if errors.Is(err, core.ErrTooManyImports) {
			w.Header().Set("Retry-After", "5")
		}
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// handleImportStatus returns the current state of the import limiter.
// Used for monitoring and to check if the system can accept more imports.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Health(r.Context()); err != nil {
		writeErrorStatus(w, r, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
