// Package model contains domain models passed between layers.
package model

import "time"

// Op names the kind of write that produced a change.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is a notice that the lessons collection was written. It carries no
// data: consumers reload the full collection.
type Change struct {
	Op       Op        // kind of write
	LessonID string    // affected lesson
	At       time.Time // commit time
}
