package api

import (
	"context"
	"net/http"

	"github.com/okian/rinkside/internal/adapters/kv"
	"github.com/okian/rinkside/internal/domain/directory"
	"github.com/okian/rinkside/internal/domain/filter"
	"github.com/okian/rinkside/internal/domain/gate"
	"github.com/okian/rinkside/pkg/logger"
)

// viewState is the per-browser UI state for one request: the edit gate in
// the session scope, the filter and the student directory in the local scope.
type viewState struct {
	Gate     *gate.Gate
	Filter   filter.Filter
	Students *directory.Directory

	local kv.Store
	jar   *kv.Jar
}

type viewStateKey struct{}

// withViewState opens the cookie scopes and carries them in the request
// context. An undecodable cookie yields empty scopes.
func (s *Server) withViewState(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.view_state"

		var (
			session kv.Store = kv.NewMemory()
			local   kv.Store = kv.NewMemory()
			jar     *kv.Jar
		)
		if s.cookies != nil {
			var err error
			jar, err = s.cookies.Open(r)
			if err != nil {
				s.logger.Error(r.Context(), "opening view state", logger.Error(err))
				writeError(w, http.StatusInternalServerError, "internal_error", NewKind(op, ErrViewState))
				return
			}
			session, local = jar.Session(), jar.Local()
		}

		vs := &viewState{
			Gate:     gate.New(session, s.secret),
			Filter:   filter.Load(local),
			Students: directory.Load(local),
			local:    local,
			jar:      jar,
		}
		next(w, r.WithContext(context.WithValue(r.Context(), viewStateKey{}, vs)))
	}
}

func viewStateFrom(ctx context.Context) *viewState {
	vs, _ := ctx.Value(viewStateKey{}).(*viewState)
	return vs
}

// SetFilter replaces and persists the filter.
func (vs *viewState) SetFilter(f filter.Filter) {
	if f.Coach == "" {
		f.Coach = filter.AllCoaches
	}
	vs.Filter = f
	f.Save(vs.local)
}

// persist saves the scopes and, on failure, answers 500 view_state_error so
// the client knows its filter or directory change was not kept.
func (vs *viewState) persist(w http.ResponseWriter, r *http.Request, log logger.Logger, op string) bool {
	if err := vs.save(w, r); err != nil {
		log.Error(r.Context(), "saving view state", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "view_state_error", NewKind(op, ErrViewState))
		return false
	}
	return true
}

// save writes changed scopes back. It must run before the response header.
func (vs *viewState) save(w http.ResponseWriter, r *http.Request) error {
	if vs.jar == nil {
		return nil
	}
	return vs.jar.Save(r, w)
}

// filterFor returns the persisted filter with query overrides applied.
func (vs *viewState) filterFor(r *http.Request) filter.Filter {
	f := vs.Filter
	q := r.URL.Query()
	if q.Has("coach") {
		f.Coach = q.Get("coach")
	}
	if q.Has("student") {
		f.Student = q.Get("student")
	}
	if f.Coach == "" {
		f.Coach = filter.AllCoaches
	}
	return f
}
