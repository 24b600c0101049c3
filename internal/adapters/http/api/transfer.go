package api

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/okian/rinkside/internal/adapters/sheet"
	"github.com/okian/rinkside/pkg/logger"
)

const maxUploadBytes = 10 << 20

// TransferHandler serves spreadsheet export and import.
type TransferHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(deps Dependencies, log logger.Logger) *TransferHandler {
	return &TransferHandler{deps: deps, logger: log}
}

// HandleExport handles GET /api/lessons/export.xlsx.
func (h *TransferHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_lessons"
	var buf bytes.Buffer
	if err := h.deps.Export(r.Context(), &buf); err != nil {
		writeFailure(w, r, h.logger, h.deps.Colors(), op, err)
		return
	}
	w.Header().Set("Content-Type", sheet.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="lessons.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// HandleImport handles POST /api/lessons/import. The workbook is either the
// raw body or the "file" part of a multipart form. Imported students join
// the caller's directory.
func (h *TransferHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.import_lessons"
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		defer file.Close()
		src = file
	}

	vs := viewStateFrom(r.Context())
	res, err := h.deps.Import(r.Context(), src, vs.Students)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if !vs.persist(w, r, h.logger, op) {
		return
	}
	writeJSON(w, http.StatusOK, res)
}
