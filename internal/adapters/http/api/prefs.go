package api

import (
	"net/http"
	"strings"

	"github.com/okian/rinkside/internal/domain/filter"
	"github.com/okian/rinkside/internal/domain/lesson"
	"github.com/okian/rinkside/pkg/logger"
)

// PrefsHandler serves the coach legend, the filter and the student list.
type PrefsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewPrefsHandler creates a new preferences handler.
func NewPrefsHandler(deps Dependencies, log logger.Logger) *PrefsHandler {
	return &PrefsHandler{deps: deps, logger: log}
}

type legendResponse struct {
	Coaches  []lesson.Swatch `json:"coaches"`
	Fallback string          `json:"fallback"`
}

// HandleCoaches handles GET /api/coaches.
func (h *PrefsHandler) HandleCoaches(w http.ResponseWriter, _ *http.Request) {
	colors := h.deps.Colors()
	writeJSON(w, http.StatusOK, legendResponse{
		Coaches:  colors.Legend(),
		Fallback: colors.Color(""),
	})
}

// HandleGetFilter handles GET /api/filters.
func (h *PrefsHandler) HandleGetFilter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewStateFrom(r.Context()).Filter)
}

// HandlePutFilter handles PUT /api/filters.
func (h *PrefsHandler) HandlePutFilter(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_filter"
	var f filter.Filter
	if err := decodeJSON(w, r, &f); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	f.Coach = strings.TrimSpace(f.Coach)

	vs := viewStateFrom(r.Context())
	vs.SetFilter(f)
	if !vs.persist(w, r, h.logger, op) {
		return
	}
	writeJSON(w, http.StatusOK, vs.Filter)
}

// HandleToggleCoach handles POST /api/filters/coach/{coach}/toggle, the
// legend click: selecting the active coach goes back to all coaches.
func (h *PrefsHandler) HandleToggleCoach(w http.ResponseWriter, r *http.Request) {
	const op = "api.toggle_coach"
	vs := viewStateFrom(r.Context())
	vs.SetFilter(vs.Filter.ToggleCoach(r.PathValue("coach")))
	if !vs.persist(w, r, h.logger, op) {
		return
	}
	writeJSON(w, http.StatusOK, vs.Filter)
}

type studentsResponse struct {
	Students []string `json:"students"`
}

// HandleStudents handles GET /api/students.
func (h *PrefsHandler) HandleStudents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, studentsResponse{Students: viewStateFrom(r.Context()).Students.Names()})
}

// HandleClearStudents handles DELETE /api/students.
func (h *PrefsHandler) HandleClearStudents(w http.ResponseWriter, r *http.Request) {
	const op = "api.clear_students"
	vs := viewStateFrom(r.Context())
	vs.Students.Clear()
	if !vs.persist(w, r, h.logger, op) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
