package seeder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/rinkside/pkg/logger"
)

// Headers understood by the add endpoint.
const (
	idempotencyHeader = "Idempotency-Key"
	replayHeader      = "Idempotent-Replayed"
)

// HTTPClient wraps http.Client with the service base URL.
type HTTPClient struct {
	client  *http.Client
	stream  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		stream:  &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, header http.Header) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	return c.client.Do(req)
}

// submitResult is the outcome of one add request.
type submitResult struct {
	ID       string
	Status   int
	Replayed bool
	Reason   string
}

// Submit posts one lesson with its idempotency key.
func (c *HTTPClient) Submit(ctx context.Context, p Planned) (submitResult, error) {
	h := http.Header{}
	h.Set(idempotencyHeader, p.Key)
	resp, err := c.do(ctx, http.MethodPost, "/api/lessons", p.Input, h)
	if err != nil {
		return submitResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	res := submitResult{Status: resp.StatusCode, Replayed: resp.Header.Get(replayHeader) == "true"}
	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		var l Lesson
		if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
			return res, fmt.Errorf("decode lesson: %w", err)
		}
		res.ID = l.ID
	default:
		var e struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		res.Reason = e.Code
		if res.Reason == "" {
			res.Reason = resp.Status
		}
	}
	return res, nil
}

// List returns the lessons whose student contains needle, and the unfiltered total.
func (c *HTTPClient) List(ctx context.Context, needle string) ([]Lesson, int, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/lessons?student="+url.QueryEscape(needle), nil, nil)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("list lessons: status %d", resp.StatusCode)
	}
	var body struct {
		Lessons []Lesson `json:"lessons"`
		Total   int      `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("decode lessons: %w", err)
	}
	return body.Lessons, body.Total, nil
}

// Delete removes one lesson.
func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/lessons/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete %s: status %d", id, resp.StatusCode)
	}
	return nil
}

// Health checks /healthz.
func (c *HTTPClient) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return fmt.Errorf("connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check status: %d", resp.StatusCode)
	}
	return nil
}

// streamEvent is the payload of one lessons event.
type streamEvent struct {
	Version uint64   `json:"version"`
	Lessons []Lesson `json:"lessons"`
	Total   int      `json:"total"`
}

// Watcher follows the lessons stream filtered to one student needle and keeps
// the latest snapshot.
type Watcher struct {
	mu     sync.Mutex
	latest streamEvent
	events atomic.Int64
	ready  chan struct{}
	done   chan struct{}
	err    error
}

// Watch opens the stream. The returned watcher runs until ctx ends or the
// server closes the stream.
func (c *HTTPClient) Watch(ctx context.Context, needle string) (*Watcher, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/lessons/stream?student="+url.QueryEscape(needle), nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("open stream: status %d", resp.StatusCode)
	}

	w := &Watcher{ready: make(chan struct{}), done: make(chan struct{})}
	go w.read(ctx, resp.Body)
	return w, nil
}

func (w *Watcher) read(ctx context.Context, body io.ReadCloser) {
	defer close(w.done)
	defer func() { _ = body.Close() }()

	var (
		event string
		data  strings.Builder
		first = true
	)
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == "lessons" && data.Len() > 0 {
				var ev streamEvent
				if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
					logger.Get().Warn(ctx, "bad stream event", logger.Error(err))
				} else {
					w.mu.Lock()
					w.latest = ev
					w.mu.Unlock()
					w.events.Add(1)
					if first {
						close(w.ready)
						first = false
					}
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
	}
}

// Latest returns the most recent snapshot seen.
func (w *Watcher) Latest() streamEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest
}

// Events counts the snapshots received.
func (w *Watcher) Events() int { return int(w.events.Load()) }

// Ready is closed once the first snapshot arrives.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Done is closed when the stream ends.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Err is the read error that ended the stream, if any.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
