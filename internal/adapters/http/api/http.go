// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/okian/rinkside/internal/adapters/kv"
	"github.com/okian/rinkside/internal/adapters/mq/broadcast"
	"github.com/okian/rinkside/internal/adapters/sheet"
	"github.com/okian/rinkside/internal/domain/form"
	"github.com/okian/rinkside/internal/domain/lesson"
	"github.com/okian/rinkside/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Read operations over the full, unfiltered lesson set.
	Lessons(ctx context.Context) ([]lesson.Lesson, error)
	Lesson(ctx context.Context, id string) (lesson.Lesson, error)
	Subscribe(ctx context.Context) (*broadcast.Subscription, error)

	// Form flows and writes.
	NewAddForm(now time.Time) *form.Form
	NewEditForm(l lesson.Lesson) *form.Form
	Submit(ctx context.Context, f *form.Form, rec form.Recorder) (lesson.Lesson, error)
	Delete(ctx context.Context, id string) error

	// Idempotency keys for add submissions.
	SeenAndRecord(ctx context.Context, key string) (string, bool)
	Complete(ctx context.Context, key, lessonID string)
	Unrecord(ctx context.Context, key string)

	// Spreadsheets.
	Export(ctx context.Context, w io.Writer) error
	Import(ctx context.Context, r io.Reader, rec form.Recorder) (sheet.Result, error)

	// Presentation settings.
	Colors() lesson.ColorTable
	Rinks() []string
	Location() *time.Location
	Now() time.Time
}

// Server wires HTTP routes for the business API.
type Server struct {
	cookies   *kv.CookieStore
	secret    string
	keepAlive time.Duration
	logger    logger.Logger

	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	lessonsHandler  *LessonsHandler
	streamHandler   *StreamHandler
	prefsHandler    *PrefsHandler
	sessionHandler  *SessionHandler
	transferHandler *TransferHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		secret:    "letmein",
		keepAlive: 15 * time.Second,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.lessonsHandler = NewLessonsHandler(deps, s.logger)
	s.streamHandler = NewStreamHandler(deps, s.keepAlive, s.logger)
	s.prefsHandler = NewPrefsHandler(deps, s.logger)
	s.sessionHandler = NewSessionHandler(s.logger)
	s.transferHandler = NewTransferHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	vs := s.withViewState

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	// Literal segments win over {id}.
	mux.HandleFunc("GET /api/lessons", MetricsMiddleware(vs(s.lessonsHandler.HandleList), "lessons"))
	mux.HandleFunc("POST /api/lessons", MetricsMiddleware(vs(s.lessonsHandler.HandleCreate), "lessons"))
	mux.HandleFunc("GET /api/lessons/stream", MetricsMiddleware(vs(s.streamHandler.HandleStream), "lessons_stream"))
	mux.HandleFunc("GET /api/lessons/export.xlsx", MetricsMiddleware(s.transferHandler.HandleExport, "lessons_export"))
	mux.HandleFunc("POST /api/lessons/import", MetricsMiddleware(vs(s.transferHandler.HandleImport), "lessons_import"))
	mux.HandleFunc("GET /api/lessons/{id}", MetricsMiddleware(s.lessonsHandler.HandleGet, "lesson"))
	mux.HandleFunc("PUT /api/lessons/{id}", MetricsMiddleware(vs(s.lessonsHandler.HandleUpdate), "lesson"))
	mux.HandleFunc("DELETE /api/lessons/{id}", MetricsMiddleware(s.lessonsHandler.HandleDelete, "lesson"))
	mux.HandleFunc("GET /api/form", MetricsMiddleware(vs(s.lessonsHandler.HandleFormDefaults), "form"))

	mux.HandleFunc("GET /api/coaches", MetricsMiddleware(s.prefsHandler.HandleCoaches, "coaches"))
	mux.HandleFunc("GET /api/filters", MetricsMiddleware(vs(s.prefsHandler.HandleGetFilter), "filters"))
	mux.HandleFunc("PUT /api/filters", MetricsMiddleware(vs(s.prefsHandler.HandlePutFilter), "filters"))
	mux.HandleFunc("POST /api/filters/coach/{coach}/toggle", MetricsMiddleware(vs(s.prefsHandler.HandleToggleCoach), "filters"))
	mux.HandleFunc("GET /api/students", MetricsMiddleware(vs(s.prefsHandler.HandleStudents), "students"))
	mux.HandleFunc("DELETE /api/students", MetricsMiddleware(vs(s.prefsHandler.HandleClearStudents), "students"))

	mux.HandleFunc("GET /api/session", MetricsMiddleware(vs(s.sessionHandler.HandleSession), "session"))
	mux.HandleFunc("POST /api/unlock", MetricsMiddleware(vs(s.sessionHandler.HandleUnlock), "session"))
	mux.HandleFunc("POST /api/lock", MetricsMiddleware(vs(s.sessionHandler.HandleLock), "session"))
}

// lessonView is the JSON shape of a lesson with its derived fields.
type lessonView struct {
	ID         string    `json:"id"`
	Student    string    `json:"student"`
	Coach      string    `json:"coach"`
	Rink       string    `json:"rink"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Title      string    `json:"title"`
	ShortTitle string    `json:"shortTitle"`
	Color      string    `json:"color"`
}

func newLessonView(l lesson.Lesson, colors lesson.ColorTable) lessonView {
	return lessonView{
		ID:         l.ID,
		Student:    l.Student,
		Coach:      l.Coach,
		Rink:       l.Rink,
		Start:      l.Start,
		End:        l.End,
		Title:      l.Title(),
		ShortTitle: l.ShortTitle(),
		Color:      colors.Color(l.Coach),
	}
}

func newLessonViews(lessons []lesson.Lesson, colors lesson.ColorTable) []lessonView {
	out := make([]lessonView, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, newLessonView(l, colors))
	}
	return out
}

// lessonRequest carries the form fields; absent fields keep the form's value.
type lessonRequest struct {
	Student *string `json:"student"`
	Coach   *string `json:"coach"`
	Rink    *string `json:"rink"`
	Start   *string `json:"start"`
	End     *string `json:"end"`
}

// apply sets fields in form order: start before end, since moving start
// resets end.
func (req lessonRequest) apply(f *form.Form, loc *time.Location) {
	if req.Student != nil {
		f.SetStudent(*req.Student)
	}
	if req.Coach != nil {
		f.SetCoach(*req.Coach)
	}
	if req.Rink != nil {
		f.SetRink(*req.Rink)
	}
	if req.Start != nil {
		f.SetStartText(*req.Start, loc)
	}
	if req.End != nil {
		f.SetEndText(*req.End, loc)
	}
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
