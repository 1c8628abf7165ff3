package database

import (
	"context"
)

// StudentStore provides roster access. Get returns nil when missing.
type StudentStore interface {
	CreateStudent(ctx context.Context, s Student) error
	GetStudent(ctx context.Context, id string) (*Student, error)
	ListStudents(ctx context.Context) ([]Student, error)
	// SearchStudents matches names case-insensitively and without
	// diacritics, so "jiri" finds "Jiří".
	SearchStudents(ctx context.Context, query string) ([]Student, error)
	DeleteStudent(ctx context.Context, id string) (bool, error)
}

// CourseStore provides course access. Get returns nil when missing.
type CourseStore interface {
	CreateCourse(ctx context.Context, c Course) error
	GetCourse(ctx context.Context, id string) (*Course, error)
	ListCourses(ctx context.Context) ([]Course, error)
	UpdateCourse(ctx context.Context, c Course) error
	DeleteCourse(ctx context.Context, id string) (bool, error)
}

// EnrollmentStore is the existence-only student<->course relation.
type EnrollmentStore interface {
	CreateEnrollment(ctx context.Context, studentID, courseID string) error
	IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	ListEnrollments(ctx context.Context, courseID string) ([]Enrollment, error)
	DeleteEnrollment(ctx context.Context, studentID, courseID string) (bool, error)
}

// MarkStore persists attendance marks.
//
// CreateMark is atomic create-if-absent on (student, course, day): when
// a mark already exists it returns ErrMarkConflict without writing, so
// two concurrent recognition loops can never both insert. Losing
// writers treat the conflict as "already marked today".
type MarkStore interface {
	CreateMark(ctx context.Context, m AttendanceMark) error
	HasMarkForDay(ctx context.Context, studentID, courseID, day string) (bool, error)
	ListMarks(ctx context.Context, filter MarkFilter) ([]AttendanceMark, error)
}

// Store is the full record store used by the web layer and the session
// controller. It is the one shared mutable resource across streams.
type Store interface {
	StudentStore
	CourseStore
	EnrollmentStore
	MarkStore
}
