package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/rinkside/internal/domain/filter"
	"github.com/okian/rinkside/internal/domain/lesson"
	"github.com/okian/rinkside/pkg/logger"
)

// IdempotencyHeader de-duplicates add submissions.
const IdempotencyHeader = "Idempotency-Key"

// ReplayHeader is set on responses answered from an earlier submission.
const ReplayHeader = "Idempotent-Replayed"

// LessonsHandler serves lesson reads and the add, edit and delete flows.
type LessonsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewLessonsHandler creates a new lessons handler.
func NewLessonsHandler(deps Dependencies, log logger.Logger) *LessonsHandler {
	return &LessonsHandler{deps: deps, logger: log}
}

type listResponse struct {
	Lessons  []lessonView    `json:"lessons"`
	Total    int             `json:"total"`
	Filter   filter.Filter   `json:"filter"`
	Students []string        `json:"students"`
	Legend   []lesson.Swatch `json:"legend"`
	Locked   bool            `json:"locked"`
}

// HandleList handles GET /api/lessons. Query parameters coach and student
// override the persisted filter for this request only.
func (h *LessonsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_lessons"
	vs := viewStateFrom(r.Context())

	all, err := h.deps.Lessons(r.Context())
	if err != nil {
		writeFailure(w, r, h.logger, h.deps.Colors(), op, err)
		return
	}
	f := vs.filterFor(r)
	colors := h.deps.Colors()
	writeJSON(w, http.StatusOK, listResponse{
		Lessons:  newLessonViews(f.Apply(all), colors),
		Total:    len(all),
		Filter:   f,
		Students: filter.StudentOptions(all),
		Legend:   colors.Legend(),
		Locked:   vs.Gate.Locked(),
	})
}

// HandleGet handles GET /api/lessons/{id}.
func (h *LessonsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_lesson"
	l, err := h.deps.Lesson(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, h.logger, h.deps.Colors(), op, err)
		return
	}
	writeJSON(w, http.StatusOK, newLessonView(l, h.deps.Colors()))
}

// HandleCreate handles POST /api/lessons through the add form. A repeated
// Idempotency-Key returns the lesson created by the first request.
func (h *LessonsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_lesson"
	ctx := r.Context()
	colors := h.deps.Colors()

	var req lessonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key != "" {
		if id, seen := h.deps.SeenAndRecord(ctx, key); seen {
			if id == "" {
				writeError(w, http.StatusConflict, "in_flight", NewKind(op, ErrInFlight))
				return
			}
			l, err := h.deps.Lesson(ctx, id)
			if err != nil {
				writeFailure(w, r, h.logger, colors, op, err)
				return
			}
			w.Header().Set(ReplayHeader, "true")
			writeJSON(w, http.StatusOK, newLessonView(l, colors))
			return
		}
	}

	vs := viewStateFrom(ctx)
	f := h.deps.NewAddForm(h.deps.Now())
	req.apply(f, h.deps.Location())

	saved, err := h.deps.Submit(ctx, f, vs.Students)
	if err != nil {
		if key != "" {
			h.deps.Unrecord(ctx, key)
		}
		writeFailure(w, r, h.logger, colors, op, err)
		return
	}
	if key != "" {
		h.deps.Complete(ctx, key, saved.ID)
	}

	if !vs.persist(w, r, h.logger, op) {
		return
	}
	w.Header().Set("Location", "/api/lessons/"+saved.ID)
	writeJSON(w, http.StatusCreated, newLessonView(saved, colors))
}

// HandleUpdate handles PUT /api/lessons/{id} through the edit form. Fields
// missing from the body keep their stored values.
func (h *LessonsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_lesson"
	ctx := r.Context()
	colors := h.deps.Colors()

	var req lessonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	current, err := h.deps.Lesson(ctx, r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, h.logger, colors, op, err)
		return
	}

	vs := viewStateFrom(ctx)
	f := h.deps.NewEditForm(current)
	req.apply(f, h.deps.Location())

	saved, err := h.deps.Submit(ctx, f, vs.Students)
	if err != nil {
		writeFailure(w, r, h.logger, colors, op, err)
		return
	}
	if !vs.persist(w, r, h.logger, op) {
		return
	}
	writeJSON(w, http.StatusOK, newLessonView(saved, colors))
}

// HandleDelete handles DELETE /api/lessons/{id}. Unknown IDs succeed.
func (h *LessonsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_lesson"
	if err := h.deps.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, r, h.logger, h.deps.Colors(), op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type formResponse struct {
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Coach    string          `json:"coach"`
	Rink     string          `json:"rink"`
	Rinks    []string        `json:"rinks"`
	Coaches  []lesson.Swatch `json:"coaches"`
	Students []string        `json:"students"`
}

// HandleFormDefaults handles GET /api/form. Without start the slot begins at
// the current time rounded to the quarter hour; end always follows start.
func (h *LessonsHandler) HandleFormDefaults(w http.ResponseWriter, r *http.Request) {
	const op = "api.form_defaults"
	vs := viewStateFrom(r.Context())

	f := h.deps.NewAddForm(h.deps.Now())
	if raw := r.URL.Query().Get("start"); raw != "" {
		t, ok := lesson.ParseTimeText(raw, h.deps.Location())
		if !ok {
			writeFailure(w, r, h.logger, h.deps.Colors(), op, &lesson.ValidationError{Reason: lesson.ReasonInvalidTime})
			return
		}
		f.SetStart(t)
	}

	draft := f.Lesson()
	writeJSON(w, http.StatusOK, formResponse{
		Start:    draft.Start,
		End:      draft.End,
		Coach:    draft.Coach,
		Rink:     draft.Rink,
		Rinks:    h.deps.Rinks(),
		Coaches:  h.deps.Colors().Legend(),
		Students: vs.Students.Names(),
	})
}
