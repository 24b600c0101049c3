package api

import (
	"errors"
	"net/http"

	"github.com/okian/rinkside/internal/domain/gate"
	"github.com/okian/rinkside/pkg/logger"
	"github.com/okian/rinkside/pkg/metrics"
)

// SessionHandler exposes the advisory edit gate. Nothing else in the API
// consults it.
type SessionHandler struct {
	logger logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(log logger.Logger) *SessionHandler {
	return &SessionHandler{logger: log}
}

type sessionResponse struct {
	Locked bool `json:"locked"`
}

type unlockRequest struct {
	Password string `json:"password"`
}

// HandleSession handles GET /api/session.
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{Locked: viewStateFrom(r.Context()).Gate.Locked()})
}

// HandleUnlock handles POST /api/unlock.
func (h *SessionHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	const op = "api.unlock"
	var req unlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	vs := viewStateFrom(r.Context())
	if err := vs.Gate.AttemptUnlock(req.Password); err != nil {
		if errors.Is(err, gate.ErrWrongSecret) {
			metrics.RecordUnlockAttempt("denied")
			h.logger.Info(r.Context(), "unlock denied")
		}
		writeError(w, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	metrics.RecordUnlockAttempt("granted")
	if !vs.persist(w, r, h.logger, op) {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Locked: false})
}

// HandleLock handles POST /api/lock.
func (h *SessionHandler) HandleLock(w http.ResponseWriter, r *http.Request) {
	const op = "api.lock"
	vs := viewStateFrom(r.Context())
	vs.Gate.Relock()
	if !vs.persist(w, r, h.logger, op) {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Locked: true})
}
