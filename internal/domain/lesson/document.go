package lesson

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Document is a raw record from the lessons collection. Data holds whatever
// the writer stored: either flat student/coach/rink fields or the same fields
// nested under "extendedProps", plus start/end in any supported timestamp form.
type Document struct {
	ID   string
	Data map[string]any
}

// Document field names.
const (
	FieldTitle   = "title"
	FieldStart   = "start"
	FieldEnd     = "end"
	FieldStudent = "student"
	FieldCoach   = "coach"
	FieldRink    = "rink"
	FieldNested  = "extendedProps"
	FieldSeconds = "seconds"
	FieldNanos   = "nanoseconds"
)

// SheetLayout is the minute-precision text form used in spreadsheets.
const SheetLayout = "2006-01-02 15:04"

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	SheetLayout,
}

// Defaults fill fields a record does not carry.
type Defaults struct {
	Coach  string
	Rink   string
	Length time.Duration
}

// StandardDefaults are Silvia at the Den for thirty minutes.
var StandardDefaults = Defaults{Coach: CoachSilvia, Rink: RinkDen, Length: DefaultLength}

func (d Defaults) withFallbacks() Defaults {
	if d.Coach == "" {
		d.Coach = StandardDefaults.Coach
	}
	if d.Rink == "" {
		d.Rink = StandardDefaults.Rink
	}
	if d.Length <= 0 {
		d.Length = StandardDefaults.Length
	}
	return d
}

// Normalize maps a stored record to a canonical Lesson. It never fails:
// missing coach and rink take the defaults, a missing or unreadable start
// becomes now and a missing or unreadable end becomes start plus the default
// length. A stored title is ignored. Times come back in now's location.
func Normalize(doc Document, now time.Time, d Defaults) Lesson {
	d = d.withFallbacks()
	loc := now.Location()

	l := Lesson{
		ID:      doc.ID,
		Student: field(doc.Data, FieldStudent),
		Coach:   field(doc.Data, FieldCoach),
		Rink:    field(doc.Data, FieldRink),
	}
	l = Clean(l)
	if l.Coach == "" {
		l.Coach = d.Coach
	}
	if l.Rink == "" {
		l.Rink = d.Rink
	}

	start, ok := ParseTime(doc.Data[FieldStart], loc)
	if !ok {
		start = now
	}
	l.Start = start.In(loc)

	end, ok := ParseTime(doc.Data[FieldEnd], loc)
	if !ok {
		end = l.Start.Add(d.Length)
	}
	l.End = end.In(loc)
	return l
}

// NormalizeAll normalizes docs in order.
func NormalizeAll(docs []Document, now time.Time, d Defaults) []Lesson {
	out := make([]Lesson, 0, len(docs))
	for _, doc := range docs {
		out = append(out, Normalize(doc, now, d))
	}
	return out
}

// ToDocument renders l in the nested layout with store-native timestamps.
// The title is written for readers of the raw collection; Normalize ignores it.
func ToDocument(l Lesson) Document {
	l = Clean(l)
	return Document{
		ID: l.ID,
		Data: map[string]any{
			FieldTitle: l.Title(),
			FieldStart: Timestamp(l.Start),
			FieldEnd:   Timestamp(l.End),
			FieldNested: map[string]any{
				FieldStudent: l.Student,
				FieldCoach:   l.Coach,
				FieldRink:    l.Rink,
			},
		},
	}
}

// Timestamp renders t as {"seconds", "nanoseconds"}.
func Timestamp(t time.Time) map[string]any {
	return map[string]any{
		FieldSeconds: t.Unix(),
		FieldNanos:   int64(t.Nanosecond()),
	}
}

// field prefers the nested value, then the top-level one.
func field(data map[string]any, key string) string {
	if nested, ok := data[FieldNested].(map[string]any); ok {
		if s, ok := nested[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

// ParseTime reads the timestamp forms found in stored records: a
// {seconds, nanoseconds} map (also with leading underscores), RFC 3339
// text, local "2006-01-02T15:04[:05]" text (T or space) interpreted in loc, epoch
// milliseconds, or a time.Time. The zero time is treated as absent.
func ParseTime(v any, loc *time.Location) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case map[string]any:
		return parseTimestampMap(t)
	case string:
		return parseTimeText(t, loc)
	default:
		ms, ok := number(v)
		if !ok {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)), true
	}
}

// ParseTimeText parses user-entered text in loc.
func ParseTimeText(s string, loc *time.Location) (time.Time, bool) {
	return parseTimeText(s, loc)
}

func parseTimeText(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTimestampMap(m map[string]any) (time.Time, bool) {
	secV, ok := m[FieldSeconds]
	if !ok {
		secV, ok = m["_"+FieldSeconds]
	}
	if !ok {
		return time.Time{}, false
	}
	sec, ok := number(secV)
	if !ok {
		return time.Time{}, false
	}
	nsV, ok := m[FieldNanos]
	if !ok {
		nsV = m["_"+FieldNanos]
	}
	ns, _ := number(nsV)
	return time.Unix(int64(sec), int64(ns)), true
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
