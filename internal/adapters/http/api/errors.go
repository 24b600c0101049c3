package api

import (
	"errors"
	"net/http"

	"github.com/okian/rinkside/internal/adapters/repository"
	"github.com/okian/rinkside/internal/domain/gate"
	"github.com/okian/rinkside/internal/domain/lesson"
	"github.com/okian/rinkside/pkg/logger"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrNotFound    = errors.New("not found")
	ErrInFlight    = errors.New("submission already in progress")
	ErrUnavailable = errors.New("service unavailable")
	ErrViewState   = errors.New("view state unavailable")
)

// Error tags a failure with the handler operation and an optional kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Kind != nil && e.Err != nil:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	case e.Kind != nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap tags err with op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// NewKind reports kind for op without an underlying cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Lesson  *lessonView `json:"lesson,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps domain errors onto status codes. Store failures are
// logged and reported without their cause.
func writeFailure(w http.ResponseWriter, r *http.Request, log logger.Logger, colors lesson.ColorTable, op string, err error) {
	var (
		validation *lesson.ValidationError
		conflict   *lesson.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Code: "validation_error", Message: validation.Reason})
	case errors.As(err, &conflict):
		v := newLessonView(conflict.With, colors)
		writeJSON(w, http.StatusConflict, errorResponse{Code: "conflict", Message: conflict.Error(), Lesson: &v})
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
	case errors.Is(err, gate.ErrWrongSecret):
		writeError(w, http.StatusUnauthorized, "unauthorized", gate.ErrWrongSecret)
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, lesson.ErrPersistence):
		log.Error(r.Context(), "lesson store write failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusBadGateway, "persistence_error", errors.New("could not save the lesson, try again"))
	default:
		log.Error(r.Context(), "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
