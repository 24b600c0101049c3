package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/rinkside/internal/domain/lesson"
	"github.com/okian/rinkside/internal/domain/model"
	"github.com/okian/rinkside/pkg/logger"
)

// MemoryStore keeps documents in process memory. Documents are held encoded
// so callers never share maps with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	order  []string
	closed bool
	opts   *options
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		docs: make(map[string][]byte),
		opts: buildOptions(opts),
	}
}

func (s *MemoryStore) Create(ctx context.Context, data map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadRecord, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	id := s.opts.newID()
	s.docs[id] = raw
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.opts.log.Debug(ctx, "lesson created", logger.String("id", id))
	s.opts.notify(model.OpCreate, id)
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyID
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadRecord, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.docs[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.docs[id] = raw
	s.mu.Unlock()

	s.opts.notify(model.OpUpdate, id)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.docs[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.docs, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	s.mu.Unlock()

	s.opts.notify(model.OpDelete, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]lesson.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	out := make([]lesson.Document, 0, len(s.order))
	for _, id := range s.order {
		doc, err := decode(id, s.docs[id])
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return len(s.docs), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func decode(id string, raw []byte) (lesson.Document, error) {
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return lesson.Document{}, fmt.Errorf("%w: %s: %w", ErrBadRecord, id, err)
	}
	return lesson.Document{ID: id, Data: data}, nil
}
