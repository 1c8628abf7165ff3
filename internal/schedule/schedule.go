// Package schedule decides which course an attendance mark belongs to.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Resolver maps a point in time to the active course, honoring an explicit
// course override when the caller provides one.
type Resolver struct {
	courses database.CourseStore
}

func NewResolver(courses database.CourseStore) *Resolver {
	return &Resolver{courses: courses}
}

// Resolve returns the course attendance should be marked against, or nil
// when no course is in session.
//
// With explicitID set, that course wins regardless of its schedule, as long
// as it exists and is active. Otherwise the active courses are scanned in ID
// order and the first one whose window contains now is chosen, which keeps
// the pick deterministic when schedules overlap.
func (r *Resolver) Resolve(ctx context.Context, now time.Time, explicitID string) (*database.Course, error) {
	if explicitID != "" {
		course, err := r.courses.GetCourse(ctx, explicitID)
		if err != nil {
			return nil, fmt.Errorf("resolve course %q: %w", explicitID, err)
		}
		if course == nil || !course.Active {
			return nil, nil
		}
		return course, nil
	}

	courses, err := r.courses.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	for i := range courses {
		if courses[i].Active && courses[i].InSession(now) {
			return &courses[i], nil
		}
	}
	return nil, nil
}

// Overlap is a pair of active courses whose windows intersect on at least
// one shared weekday.
type Overlap struct {
	A, B database.Course
	Day  time.Weekday
}

// DetectOverlaps reports every pair of active courses competing for the same
// time slot. Useful at seed time: overlapping schedules make the implicit
// pick in Resolve depend on course IDs.
func (r *Resolver) DetectOverlaps(ctx context.Context) ([]Overlap, error) {
	courses, err := r.courses.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	var overlaps []Overlap
	for i := 0; i < len(courses); i++ {
		for j := i + 1; j < len(courses); j++ {
			a, b := courses[i], courses[j]
			if !a.Active || !b.Active {
				continue
			}
			if a.StartMinute >= b.EndMinute || b.StartMinute >= a.EndMinute {
				continue
			}
			for _, day := range a.Days {
				if b.HasDay(day) {
					overlaps = append(overlaps, Overlap{A: a, B: b, Day: day})
					break
				}
			}
		}
	}
	return overlaps, nil
}
