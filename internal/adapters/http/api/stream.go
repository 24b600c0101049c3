package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/rinkside/internal/adapters/mq/broadcast"
	"github.com/okian/rinkside/internal/domain/filter"
	"github.com/okian/rinkside/pkg/logger"
)

// StreamHandler serves the live lesson list as server-sent events.
type StreamHandler struct {
	deps      Dependencies
	keepAlive time.Duration
	logger    logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps Dependencies, keepAlive time.Duration, log logger.Logger) *StreamHandler {
	return &StreamHandler{deps: deps, keepAlive: keepAlive, logger: log}
}

type snapshotEvent struct {
	Version  uint64       `json:"version"`
	At       time.Time    `json:"at"`
	Lessons  []lessonView `json:"lessons"`
	Total    int          `json:"total"`
	Students []string     `json:"students"`
}

// HandleStream handles GET /api/lessons/stream. Every event carries the full
// filtered list; the filter is fixed when the stream opens.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const op = "api.stream_lessons"
	ctx := r.Context()

	sub, err := h.deps.Subscribe(ctx)
	if err != nil {
		h.logger.Warn(ctx, "subscribe failed", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	defer sub.Unsubscribe()

	rc := http.NewResponseController(w)
	// The server write timeout would cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error(ctx, "stream not flushable", logger.Error(err))
		return
	}

	f := viewStateFrom(ctx).filterFor(r)
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub.C:
			if !ok {
				return
			}
			if err := h.writeSnapshot(w, snap, f); err != nil {
				h.logger.Debug(ctx, "stream closed", logger.Error(err))
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) writeSnapshot(w http.ResponseWriter, snap broadcast.Snapshot, f filter.Filter) error {
	data, err := json.Marshal(snapshotEvent{
		Version:  snap.Version,
		At:       snap.At,
		Lessons:  newLessonViews(f.Apply(snap.Lessons), h.deps.Colors()),
		Total:    len(snap.Lessons),
		Students: filter.StudentOptions(snap.Lessons),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: lessons\ndata: %s\n\n", snap.Version, data)
	return err
}
