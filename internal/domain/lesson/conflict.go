package lesson

// Overlaps reports whether the half-open intervals [a.Start, a.End) and
// [b.Start, b.End) intersect.
func Overlaps(a, b Lesson) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// FindConflict returns the first lesson in existing that overlaps candidate
// and shares its student or coach. Rink is not part of the key. A lesson with
// the same non-empty ID as the candidate is the candidate itself and is skipped.
func FindConflict(candidate Lesson, existing []Lesson) (Lesson, bool) {
	for _, l := range existing {
		if candidate.ID != "" && l.ID == candidate.ID {
			continue
		}
		if l.Student != candidate.Student && l.Coach != candidate.Coach {
			continue
		}
		if Overlaps(candidate, l) {
			return l, true
		}
	}
	return Lesson{}, false
}
