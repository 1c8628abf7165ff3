package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// RecordStore is the PostgreSQL implementation of database.Store.
type RecordStore struct {
	pool *Pool
}

func NewRecordStore(pool *Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *RecordStore) CreateStudent(ctx context.Context, student database.Student) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO students (id, name, email, phone, active, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, student.ID, student.Name, student.Email, student.Phone, student.Active)
	if isUniqueViolation(err) {
		return fmt.Errorf("student %q: %w", student.ID, database.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

func (s *RecordStore) GetStudent(ctx context.Context, id string) (*database.Student, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, active, created_at FROM students WHERE id = $1
	`, id)

	var student database.Student
	err := row.Scan(&student.ID, &student.Name, &student.Email, &student.Phone,
		&student.Active, &student.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan student: %w", err)
	}
	return &student, nil
}

func (s *RecordStore) ListStudents(ctx context.Context) ([]database.Student, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, phone, active, created_at FROM students ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// SearchStudents matches names without diacritics using unaccent, mirroring
// database.NormalizeName.
func (s *RecordStore) SearchStudents(ctx context.Context, query string) ([]database.Student, error) {
	needle := database.NormalizeName(query)
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, phone, active, created_at
		FROM students
		WHERE LOWER(REPLACE(unaccent(name), '-', ' ')) LIKE '%' || $1 || '%'
		ORDER BY id
	`, needle)
	if err != nil {
		return nil, fmt.Errorf("search students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

func (s *RecordStore) DeleteStudent(ctx context.Context, id string) (bool, error) {
	result, err := s.pool.Exec(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	return affected > 0, nil
}

func scanStudents(rows *sql.Rows) ([]database.Student, error) {
	var students []database.Student
	for rows.Next() {
		var student database.Student
		if err := rows.Scan(&student.ID, &student.Name, &student.Email, &student.Phone,
			&student.Active, &student.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

func (s *RecordStore) CreateCourse(ctx context.Context, course database.Course) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO courses (id, code, name, start_minute, end_minute, days, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, course.ID, course.Code, course.Name, course.StartMinute, course.EndMinute,
		database.FormatDays(course.Days), course.Active)
	if isUniqueViolation(err) {
		return fmt.Errorf("course %q: %w", course.ID, database.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

func (s *RecordStore) GetCourse(ctx context.Context, id string) (*database.Course, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, code, name, start_minute, end_minute, days, active, created_at
		FROM courses WHERE id = $1
	`, id)

	course, err := scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return course, nil
}

func (s *RecordStore) ListCourses(ctx context.Context) ([]database.Course, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, name, start_minute, end_minute, days, active, created_at
		FROM courses ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	var courses []database.Course
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return courses, nil
}

func (s *RecordStore) UpdateCourse(ctx context.Context, course database.Course) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE courses SET code = $2, name = $3, start_minute = $4, end_minute = $5,
			days = $6, active = $7
		WHERE id = $1
	`, course.ID, course.Code, course.Name, course.StartMinute, course.EndMinute,
		database.FormatDays(course.Days), course.Active)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("course %q not found", course.ID)
	}
	return nil
}

func (s *RecordStore) DeleteCourse(ctx context.Context, id string) (bool, error) {
	result, err := s.pool.Exec(ctx, "DELETE FROM courses WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	return affected > 0, nil
}

func scanCourse(scanner interface{ Scan(...any) error }) (*database.Course, error) {
	var course database.Course
	var days string
	err := scanner.Scan(&course.ID, &course.Code, &course.Name, &course.StartMinute,
		&course.EndMinute, &days, &course.Active, &course.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan course: %w", err)
	}
	course.Days, err = database.ParseDays(days)
	if err != nil {
		return nil, fmt.Errorf("course %q: %w", course.ID, err)
	}
	return &course, nil
}

func (s *RecordStore) CreateEnrollment(ctx context.Context, studentID, courseID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO enrollments (student_id, course_id, enrolled_at)
		VALUES ($1, $2, NOW())
	`, studentID, courseID)
	if isUniqueViolation(err) {
		return fmt.Errorf("enrollment %s/%s: %w", studentID, courseID, database.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

func (s *RecordStore) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2)
	`, studentID, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

func (s *RecordStore) ListEnrollments(ctx context.Context, courseID string) ([]database.Enrollment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT student_id, course_id, enrolled_at FROM enrollments
		WHERE course_id = $1 ORDER BY student_id
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []database.Enrollment
	for rows.Next() {
		var e database.Enrollment
		if err := rows.Scan(&e.StudentID, &e.CourseID, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return enrollments, nil
}

func (s *RecordStore) DeleteEnrollment(ctx context.Context, studentID, courseID string) (bool, error) {
	result, err := s.pool.Exec(ctx,
		"DELETE FROM enrollments WHERE student_id = $1 AND course_id = $2", studentID, courseID)
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	return affected > 0, nil
}

// CreateMark inserts the mark unless one already exists for the same
// (student, course, day). The unique index decides the winner under
// concurrency; losers get ErrMarkConflict.
func (s *RecordStore) CreateMark(ctx context.Context, mark database.AttendanceMark) error {
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	result, err := s.pool.Exec(ctx, `
		INSERT INTO attendance (id, student_id, course_id, day, ts, confidence, image_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, course_id, day) DO NOTHING
	`, mark.ID, mark.StudentID, mark.CourseID, mark.Day, mark.Timestamp, mark.Confidence, mark.ImagePath)
	if err != nil {
		return fmt.Errorf("insert mark: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert mark: %w", err)
	}
	if affected == 0 {
		return database.ErrMarkConflict
	}
	return nil
}

func (s *RecordStore) HasMarkForDay(ctx context.Context, studentID, courseID, day string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM attendance WHERE student_id = $1 AND course_id = $2 AND day = $3)
	`, studentID, courseID, day).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check mark: %w", err)
	}
	return exists, nil
}

func (s *RecordStore) ListMarks(ctx context.Context, filter database.MarkFilter) ([]database.AttendanceMark, error) {
	query := `
		SELECT id, student_id, course_id, day, ts, confidence, image_path
		FROM attendance
		WHERE ($1 = '' OR student_id = $1)
		  AND ($2 = '' OR course_id = $2)
		  AND ($3 = '' OR day = NULLIF($3, '')::date)
		ORDER BY ts
	`
	rows, err := s.pool.Query(ctx, query, filter.StudentID, filter.CourseID, filter.Day)
	if err != nil {
		return nil, fmt.Errorf("query marks: %w", err)
	}
	defer rows.Close()

	var marks []database.AttendanceMark
	for rows.Next() {
		var mark database.AttendanceMark
		var day time.Time
		if err := rows.Scan(&mark.ID, &mark.StudentID, &mark.CourseID, &day,
			&mark.Timestamp, &mark.Confidence, &mark.ImagePath); err != nil {
			return nil, fmt.Errorf("scan mark: %w", err)
		}
		mark.Day = database.DayOf(day)
		marks = append(marks, mark)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate marks: %w", err)
	}
	return marks, nil
}

// Verify interface compliance.
var _ database.Store = (*RecordStore)(nil)
