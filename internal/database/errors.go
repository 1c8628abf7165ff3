package database

import "errors"

var (
	// ErrMarkConflict means another writer inserted the mark for the same
	// (student, course, day) first. Callers must swallow it and behave as
	// "already marked today"; it must never crash a stream loop.
	ErrMarkConflict = errors.New("attendance mark already exists for this day")

	// ErrDuplicate means a record with the same key already exists.
	ErrDuplicate = errors.New("record already exists")
)
