package database

import (
	"fmt"
	"strings"
	"time"
)

// Student is one roster entry. ID is the stable student code (e.g.
// "S2024001") and doubles as the identity id in the face database.
type Student struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Active    bool
	CreatedAt time.Time
}

// Course is a scheduled class with a daily time window. StartMinute is
// inclusive, EndMinute exclusive, both minutes from local midnight.
type Course struct {
	ID          string
	Code        string
	Name        string
	StartMinute int
	EndMinute   int
	Days        []time.Weekday
	Active      bool
	CreatedAt   time.Time
}

// HasDay reports whether the course meets on the given weekday.
func (c *Course) HasDay(day time.Weekday) bool {
	for _, d := range c.Days {
		if d == day {
			return true
		}
	}
	return false
}

// InSession reports whether now falls inside the course's [start, end)
// window on one of its active weekdays.
func (c *Course) InSession(now time.Time) bool {
	if !c.HasDay(now.Weekday()) {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	return minute >= c.StartMinute && minute < c.EndMinute
}

// Enrollment links a student to a course. Existence-only relation.
type Enrollment struct {
	StudentID  string
	CourseID   string
	EnrolledAt time.Time
}

// AttendanceMark records that a student was recognized as present for a
// course on a given day. At most one exists per (student, course, day);
// the store enforces this even under concurrent writers.
type AttendanceMark struct {
	ID         string
	StudentID  string
	CourseID   string
	Day        string // local date, YYYY-MM-DD
	Timestamp  time.Time
	Confidence float64
	ImagePath  string // captured face image
}

// MarkFilter narrows ListMarks. Zero values mean "any".
type MarkFilter struct {
	StudentID string
	CourseID  string
	Day       string
}

// DayOf formats a timestamp as the local attendance day key.
func DayOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseClock parses "HH:MM" into minutes from midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes from midnight as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

var dayNames = map[string]time.Weekday{
	"Sun": time.Sunday, "Mon": time.Monday, "Tue": time.Tuesday,
	"Wed": time.Wednesday, "Thu": time.Thursday, "Fri": time.Friday,
	"Sat": time.Saturday,
}

// ParseDays parses a comma-separated weekday list like "Mon,Wed,Fri".
func ParseDays(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		day, ok := dayNames[strings.TrimSpace(part)]
		if !ok {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		days = append(days, day)
	}
	return days, nil
}

// FormatDays renders weekdays as "Mon,Wed,Fri".
func FormatDays(days []time.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, d.String()[:3])
	}
	return strings.Join(parts, ",")
}
