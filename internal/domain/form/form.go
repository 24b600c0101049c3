// Package form implements the add/edit lesson form: the default-duration rule,
// submit validation and the Editing -> Validating -> Rejected|Submitted state
// machine. A Form holds its own copy of the lesson, so snapshots arriving while
// it is open never change it.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/rinkside/internal/domain/lesson"
)

// Mode tells an add form from an edit form.
type Mode int

const (
	Add Mode = iota
	Edit
)

func (m Mode) String() string {
	if m == Edit {
		return "edit"
	}
	return "add"
}

// State is the form lifecycle.
type State int

const (
	Editing State = iota
	Validating
	Rejected
	Submitted
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Validating:
		return "validating"
	case Rejected:
		return "rejected"
	case Submitted:
		return "submitted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Errors returned by Submit besides the lesson package's typed errors.
var (
	ErrClosed = errors.New("form already submitted")
	ErrNoID   = errors.New("edit form has no lesson id")
)

// Writer persists lessons.
type Writer interface {
	Create(ctx context.Context, l lesson.Lesson) (string, error)
	Update(ctx context.Context, id string, l lesson.Lesson) error
}

// Recorder remembers student names for autocomplete.
type Recorder interface {
	Remember(name string) bool
}

// Check is an extra validation step run on add forms after the built-in
// rules pass. A non-nil error rejects the form.
type Check func(ctx context.Context, candidate lesson.Lesson) error

// ConflictCheck rejects candidates that overlap an existing lesson sharing the
// student or coach. list returns the full, unfiltered lesson set.
func ConflictCheck(list func(ctx context.Context) ([]lesson.Lesson, error)) Check {
	return func(ctx context.Context, candidate lesson.Lesson) error {
		existing, err := list(ctx)
		if err != nil {
			return fmt.Errorf("conflict check: %w", err)
		}
		if with, ok := lesson.FindConflict(candidate, existing); ok {
			return &lesson.ConflictError{With: with}
		}
		return nil
	}
}

// Form is one open add or edit dialog.
type Form struct {
	mode    Mode
	state   State
	err     error
	draft   lesson.Lesson
	startOK bool
	endOK   bool
	length  time.Duration
	checks  []Check
}

// Option configures a Form.
type Option func(*Form)

// WithLength overrides the default lesson length.
func WithLength(d time.Duration) Option {
	return func(f *Form) {
		if d > 0 {
			f.length = d
		}
	}
}

// WithChecks adds validation steps run on add forms only.
func WithChecks(checks ...Check) Option {
	return func(f *Form) {
		for _, c := range checks {
			if c != nil {
				f.checks = append(f.checks, c)
			}
		}
	}
}

// WithDefaults sets the preselected coach and rink of an add form.
func WithDefaults(coach, rink string) Option {
	return func(f *Form) {
		if f.mode != Add {
			return
		}
		if coach != "" {
			f.draft.Coach = coach
		}
		if rink != "" {
			f.draft.Rink = rink
		}
	}
}

// RoundQuarter rounds t to the nearest quarter hour.
func RoundQuarter(t time.Time) time.Time {
	return t.Round(15 * time.Minute)
}

// NewAdd opens an add form starting at now rounded to the quarter hour.
func NewAdd(now time.Time, opts ...Option) *Form {
	f := &Form{
		mode:   Add,
		length: lesson.DefaultLength,
		draft: lesson.Lesson{
			Coach: lesson.CoachSilvia,
			Rink:  lesson.RinkDen,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.SetStart(RoundQuarter(now))
	return f
}

// NewEdit opens an edit form over a copy of l.
func NewEdit(l lesson.Lesson, opts ...Option) *Form {
	f := &Form{
		mode:    Edit,
		length:  lesson.DefaultLength,
		draft:   l,
		startOK: !l.Start.IsZero(),
		endOK:   !l.End.IsZero(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Form) Mode() Mode   { return f.mode }
func (f *Form) State() State { return f.state }

// Err is the rejection of the last submit, or nil.
func (f *Form) Err() error { return f.err }

// Lesson returns the current draft.
func (f *Form) Lesson() lesson.Lesson { return f.draft }

func (f *Form) touch() {
	if f.state == Rejected {
		f.state = Editing
		f.err = nil
	}
}

func (f *Form) SetStudent(s string) { f.touch(); f.draft.Student = s }
func (f *Form) SetCoach(c string)   { f.touch(); f.draft.Coach = c }
func (f *Form) SetRink(r string)    { f.touch(); f.draft.Rink = r }

// SetStart moves start and resets end to start plus the lesson length, every
// time. A zero t is a cleared picker and is ignored.
func (f *Form) SetStart(t time.Time) {
	if t.IsZero() {
		return
	}
	f.touch()
	f.draft.Start = t
	f.draft.End = t.Add(f.length)
	f.startOK, f.endOK = true, true
}

// SetStartText parses s in loc and applies SetStart. Unparseable text marks
// start invalid until it is set again.
func (f *Form) SetStartText(s string, loc *time.Location) {
	t, ok := lesson.ParseTimeText(s, loc)
	if !ok {
		f.touch()
		f.startOK = false
		return
	}
	f.SetStart(t)
}

// SetEnd moves end only.
func (f *Form) SetEnd(t time.Time) {
	f.touch()
	f.draft.End = t
	f.endOK = !t.IsZero()
}

// SetEndText parses s in loc and applies SetEnd.
func (f *Form) SetEndText(s string, loc *time.Location) {
	t, ok := lesson.ParseTimeText(s, loc)
	if !ok {
		f.touch()
		f.endOK = false
		return
	}
	f.SetEnd(t)
}

// Validate applies the built-in rules without changing state.
func (f *Form) Validate() error {
	switch {
	case strings.TrimSpace(f.draft.Student) == "":
		return &lesson.ValidationError{Reason: lesson.ReasonEmptyStudent}
	case !f.startOK || !f.endOK:
		return &lesson.ValidationError{Reason: lesson.ReasonInvalidTime}
	case !f.draft.End.After(f.draft.Start):
		return &lesson.ValidationError{Reason: lesson.ReasonEndBeforeStart}
	}
	return nil
}

// Submit validates, runs add-only checks, writes through w and remembers the
// student in rec (which may be nil). On any failure the form is Rejected and
// may be submitted again; a write failure is a *lesson.PersistenceError.
func (f *Form) Submit(ctx context.Context, w Writer, rec Recorder) (lesson.Lesson, error) {
	if f.state == Submitted {
		return lesson.Lesson{}, ErrClosed
	}
	f.state = Validating
	f.err = nil

	if err := f.Validate(); err != nil {
		return lesson.Lesson{}, f.reject(err)
	}
	candidate := lesson.Clean(f.draft)

	if f.mode == Add {
		for _, check := range f.checks {
			if err := check(ctx, candidate); err != nil {
				return lesson.Lesson{}, f.reject(err)
			}
		}
	}

	switch f.mode {
	case Add:
		id, err := w.Create(ctx, candidate)
		if err != nil {
			return lesson.Lesson{}, f.reject(&lesson.PersistenceError{Op: "create", Err: err})
		}
		candidate.ID = id
	case Edit:
		if candidate.ID == "" {
			return lesson.Lesson{}, f.reject(ErrNoID)
		}
		if err := w.Update(ctx, candidate.ID, candidate); err != nil {
			return lesson.Lesson{}, f.reject(&lesson.PersistenceError{Op: "update", Err: err})
		}
	}

	if rec != nil {
		rec.Remember(candidate.Student)
	}
	f.draft = candidate
	f.state = Submitted
	return candidate, nil
}

func (f *Form) reject(err error) error {
	f.state = Rejected
	f.err = err
	return err
}
