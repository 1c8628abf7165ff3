package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-memory Store. It backs tests and single-process runs
// without postgres; all methods are safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	students    map[string]Student
	courses     map[string]Course
	enrollments map[string]Enrollment    // key: studentID|courseID
	marks       map[string]AttendanceMark // key: studentID|courseID|day
	markList    []AttendanceMark
}

func NewMemory() *Memory {
	return &Memory{
		students:    make(map[string]Student),
		courses:     make(map[string]Course),
		enrollments: make(map[string]Enrollment),
		marks:       make(map[string]AttendanceMark),
	}
}

func enrollmentKey(studentID, courseID string) string {
	return studentID + "|" + courseID
}

func markKey(studentID, courseID, day string) string {
	return studentID + "|" + courseID + "|" + day
}

func (m *Memory) CreateStudent(ctx context.Context, s Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[s.ID]; ok {
		return fmt.Errorf("student %q: %w", s.ID, ErrDuplicate)
	}
	m.students[s.ID] = s
	return nil
}

func (m *Memory) GetStudent(ctx context.Context, id string) (*Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) ListStudents(ctx context.Context) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	students := make([]Student, 0, len(m.students))
	for _, s := range m.students {
		students = append(students, s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (m *Memory) SearchStudents(ctx context.Context, query string) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := NormalizeName(query)
	var matched []Student
	for _, s := range m.students {
		if strings.Contains(NormalizeName(s.Name), needle) {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (m *Memory) DeleteStudent(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return false, nil
	}
	delete(m.students, id)
	return true, nil
}

func (m *Memory) CreateCourse(ctx context.Context, c Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		return fmt.Errorf("course id must not be empty")
	}
	if _, ok := m.courses[c.ID]; ok {
		return fmt.Errorf("course %q: %w", c.ID, ErrDuplicate)
	}
	m.courses[c.ID] = c
	return nil
}

func (m *Memory) GetCourse(ctx context.Context, id string) (*Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) ListCourses(ctx context.Context) ([]Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	courses := make([]Course, 0, len(m.courses))
	for _, c := range m.courses {
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (m *Memory) UpdateCourse(ctx context.Context, c Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[c.ID]; !ok {
		return fmt.Errorf("course %q not found", c.ID)
	}
	m.courses[c.ID] = c
	return nil
}

func (m *Memory) DeleteCourse(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[id]; !ok {
		return false, nil
	}
	delete(m.courses, id)
	return true, nil
}

func (m *Memory) CreateEnrollment(ctx context.Context, studentID, courseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := enrollmentKey(studentID, courseID)
	if _, ok := m.enrollments[key]; ok {
		return fmt.Errorf("enrollment %s/%s: %w", studentID, courseID, ErrDuplicate)
	}
	m.enrollments[key] = Enrollment{StudentID: studentID, CourseID: courseID}
	return nil
}

func (m *Memory) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.enrollments[enrollmentKey(studentID, courseID)]
	return ok, nil
}

func (m *Memory) ListEnrollments(ctx context.Context, courseID string) ([]Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var enrollments []Enrollment
	for _, e := range m.enrollments {
		if e.CourseID == courseID {
			enrollments = append(enrollments, e)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool {
		return enrollments[i].StudentID < enrollments[j].StudentID
	})
	return enrollments, nil
}

func (m *Memory) DeleteEnrollment(ctx context.Context, studentID, courseID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := enrollmentKey(studentID, courseID)
	if _, ok := m.enrollments[key]; !ok {
		return false, nil
	}
	delete(m.enrollments, key)
	return true, nil
}

func (m *Memory) CreateMark(ctx context.Context, mark AttendanceMark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := markKey(mark.StudentID, mark.CourseID, mark.Day)
	if _, ok := m.marks[key]; ok {
		return ErrMarkConflict
	}
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	m.marks[key] = mark
	m.markList = append(m.markList, mark)
	return nil
}

func (m *Memory) HasMarkForDay(ctx context.Context, studentID, courseID, day string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.marks[markKey(studentID, courseID, day)]
	return ok, nil
}

func (m *Memory) ListMarks(ctx context.Context, filter MarkFilter) ([]AttendanceMark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var marks []AttendanceMark
	for _, mark := range m.markList {
		if filter.StudentID != "" && mark.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && mark.CourseID != filter.CourseID {
			continue
		}
		if filter.Day != "" && mark.Day != filter.Day {
			continue
		}
		marks = append(marks, mark)
	}
	return marks, nil
}
