// Package filter selects the visible subset of lessons by coach and student.
package filter

import (
	"sort"
	"strings"

	"github.com/okian/rinkside/internal/adapters/kv"
	"github.com/okian/rinkside/internal/domain/lesson"
)

// AllCoaches disables the coach predicate.
const AllCoaches = "All"

// Local-scope keys.
const (
	CoachKey   = "coach_filter"
	StudentKey = "student_filter"
)

// Filter is the pair of predicates applied to the lesson list.
type Filter struct {
	Coach   string `json:"coach"`
	Student string `json:"student"`
}

// Load reads the persisted filter; missing values mean show everything.
func Load(store kv.Store) Filter {
	f := Filter{Coach: AllCoaches}
	if v, ok := store.Get(CoachKey); ok && v != "" {
		f.Coach = v
	}
	if v, ok := store.Get(StudentKey); ok {
		f.Student = v
	}
	return f
}

// Save persists f.
func (f Filter) Save(store kv.Store) {
	coach := f.Coach
	if coach == "" {
		coach = AllCoaches
	}
	store.Set(CoachKey, coach)
	store.Set(StudentKey, f.Student)
}

// Match reports whether l passes both predicates.
func (f Filter) Match(l lesson.Lesson) bool {
	if f.Coach != "" && f.Coach != AllCoaches && l.Coach != f.Coach {
		return false
	}
	needle := strings.ToLower(strings.TrimSpace(f.Student))
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(l.Student), needle)
}

// Apply returns the matching lessons in their original order.
func (f Filter) Apply(lessons []lesson.Lesson) []lesson.Lesson {
	out := make([]lesson.Lesson, 0, len(lessons))
	for _, l := range lessons {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	return out
}

// ToggleCoach selects coach, or resets to all when coach is already selected.
func (f Filter) ToggleCoach(coach string) Filter {
	if f.Coach == coach {
		f.Coach = AllCoaches
		return f
	}
	f.Coach = coach
	return f
}

// StudentOptions lists the distinct non-empty student names in lessons, sorted.
func StudentOptions(lessons []lesson.Lesson) []string {
	seen := make(map[string]struct{}, len(lessons))
	out := make([]string, 0, len(lessons))
	for _, l := range lessons {
		name := strings.TrimSpace(l.Student)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
