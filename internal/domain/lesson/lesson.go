// Package lesson holds the canonical lesson model and the pure rules around it:
// normalization of stored records, derived title and color, and the overlap
// check used to detect double-booked students or coaches.
package lesson

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Coaches and rinks known at build time.
const (
	CoachSilvia = "Silvia"
	CoachJohn   = "John"
	CoachSherry = "Sherry"

	RinkStadium   = "Stadium"
	RinkMezzanine = "Mezzanine"
	RinkDen       = "Den"
)

// DefaultLength is the lesson length applied whenever start is set.
const DefaultLength = 30 * time.Minute

// FallbackColor is used for coaches that are not in the color table.
const FallbackColor = "#6366f1"

// Lesson is one scheduled appointment between a student and a coach.
// ID is empty until the store assigns one.
type Lesson struct {
	ID      string    `json:"id,omitempty"`
	Student string    `json:"student"`
	Coach   string    `json:"coach"`
	Rink    string    `json:"rink"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Title renders "{student} - {coach} ({rink})".
func (l Lesson) Title() string {
	return fmt.Sprintf("%s - %s (%s)", l.Student, l.Coach, StripThe(l.Rink))
}

// ShortTitle is the narrow-screen form that omits the coach.
func (l Lesson) ShortTitle() string {
	return fmt.Sprintf("%s (%s)", l.Student, StripThe(l.Rink))
}

// Duration returns End - Start.
func (l Lesson) Duration() time.Duration {
	return l.End.Sub(l.Start)
}

var thePrefix = regexp.MustCompile(`(?i)^\s*the\s+`)

// StripThe removes a leading "The " (any case, any run of whitespace) from a rink name.
func StripThe(rink string) string {
	return thePrefix.ReplaceAllString(rink, "")
}

// ColorTable maps coach names to display colors.
type ColorTable struct {
	colors   map[string]string
	fallback string
}

// Swatch is one legend entry.
type Swatch struct {
	Coach string `json:"coach"`
	Color string `json:"color"`
}

// DefaultColors returns the stock coach palette.
func DefaultColors() ColorTable {
	return NewColorTable(map[string]string{
		CoachSilvia: "#3b82f6",
		CoachJohn:   "#22c55e",
		CoachSherry: "#f43f5e",
	}, FallbackColor)
}

// NewColorTable copies colors so later changes to the map do not leak in.
// An empty fallback means FallbackColor.
func NewColorTable(colors map[string]string, fallback string) ColorTable {
	cp := make(map[string]string, len(colors))
	for k, v := range colors {
		cp[k] = v
	}
	if fallback == "" {
		fallback = FallbackColor
	}
	return ColorTable{colors: cp, fallback: fallback}
}

// Color resolves coach to a color; unknown coaches get the fallback.
func (t ColorTable) Color(coach string) string {
	if c, ok := t.colors[coach]; ok {
		return c
	}
	if t.fallback == "" {
		return FallbackColor
	}
	return t.fallback
}

// Coaches lists the known coach names in alphabetical order.
func (t ColorTable) Coaches() []string {
	out := make([]string, 0, len(t.colors))
	for k := range t.colors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Legend returns one swatch per known coach.
func (t ColorTable) Legend() []Swatch {
	coaches := t.Coaches()
	out := make([]Swatch, 0, len(coaches))
	for _, c := range coaches {
		out = append(out, Swatch{Coach: c, Color: t.colors[c]})
	}
	return out
}

// Clean trims the free-text fields and strips the rink prefix.
func Clean(l Lesson) Lesson {
	l.Student = strings.TrimSpace(l.Student)
	l.Coach = strings.TrimSpace(l.Coach)
	l.Rink = strings.TrimSpace(StripThe(l.Rink))
	return l
}
