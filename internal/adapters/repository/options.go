package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/rinkside/internal/domain/model"
	"github.com/okian/rinkside/pkg/logger"
)

type options struct {
	onChange func(model.Change)
	now      func() time.Time
	newID    func() string
	log      logger.Logger
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithOnChange registers fn to be called after every committed write.
func WithOnChange(fn func(model.Change)) Option {
	return func(o *options) {
		if fn != nil {
			o.onChange = fn
		}
	}
}

// WithClock overrides time.Now for change timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func (o *options) notify(op model.Op, id string) {
	if o.onChange == nil {
		return
	}
	o.onChange(model.Change{Op: op, LessonID: id, At: o.now()})
}

func buildOptions(opts []Option) *options {
	o := &options{
		now:   time.Now,
		newID: uuid.NewString,
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
