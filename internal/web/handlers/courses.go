package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/schedule"
)

// CoursesHandler handles course CRUD and schedule inspection.
type CoursesHandler struct {
	store    database.Store
	resolver *schedule.Resolver
}

func NewCoursesHandler(store database.Store, resolver *schedule.Resolver) *CoursesHandler {
	return &CoursesHandler{store: store, resolver: resolver}
}

// CourseRequest is the create/update payload. Times are "HH:MM", days a
// comma-separated list like "Mon,Wed,Fri".
type CourseRequest struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Days      string `json:"days"`
	Active    *bool  `json:"active"`
}

type CourseResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Days      string    `json:"days"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func courseResponse(c database.Course) CourseResponse {
	return CourseResponse{
		ID:        c.ID,
		Code:      c.Code,
		Name:      c.Name,
		StartTime: database.FormatClock(c.StartMinute),
		EndTime:   database.FormatClock(c.EndMinute),
		Days:      database.FormatDays(c.Days),
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
	}
}

// parseCourseRequest validates the payload and builds a Course without ID.
func parseCourseRequest(req CourseRequest) (database.Course, error) {
	if req.Code == "" || req.Name == "" {
		return database.Course{}, errors.New("code and name are required")
	}
	start, err := database.ParseClock(req.StartTime)
	if err != nil {
		return database.Course{}, err
	}
	end, err := database.ParseClock(req.EndTime)
	if err != nil {
		return database.Course{}, err
	}
	if start >= end {
		return database.Course{}, errors.New("start_time must be before end_time")
	}
	days, err := database.ParseDays(req.Days)
	if err != nil {
		return database.Course{}, err
	}
	if len(days) == 0 {
		return database.Course{}, errors.New("at least one weekday is required")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return database.Course{
		Code:        req.Code,
		Name:        req.Name,
		StartMinute: start,
		EndMinute:   end,
		Days:        days,
		Active:      active,
	}, nil
}

// Create handles POST /courses.
func (h *CoursesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CourseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	course, err := parseCourseRequest(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	course.ID = uuid.NewString()

	if err := h.store.CreateCourse(r.Context(), course); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create course")
		return
	}
	respondJSON(w, http.StatusCreated, courseResponse(course))
}

// List handles GET /courses.
func (h *CoursesHandler) List(w http.ResponseWriter, r *http.Request) {
	courses, err := h.store.ListCourses(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}
	resp := make([]CourseResponse, 0, len(courses))
	for _, c := range courses {
		resp = append(resp, courseResponse(c))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get handles GET /courses/{id}.
func (h *CoursesHandler) Get(w http.ResponseWriter, r *http.Request) {
	course, err := h.store.GetCourse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load course")
		return
	}
	if course == nil {
		respondError(w, http.StatusNotFound, "course not found")
		return
	}
	respondJSON(w, http.StatusOK, courseResponse(*course))
}

// Update handles PUT /courses/{id}.
func (h *CoursesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := h.store.GetCourse(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load course")
		return
	}
	if existing == nil {
		respondError(w, http.StatusNotFound, "course not found")
		return
	}

	var req CourseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	course, err := parseCourseRequest(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	course.ID = id
	course.CreatedAt = existing.CreatedAt

	if err := h.store.UpdateCourse(r.Context(), course); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update course")
		return
	}
	respondJSON(w, http.StatusOK, courseResponse(course))
}

// Delete handles DELETE /courses/{id}.
func (h *CoursesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existed, err := h.store.DeleteCourse(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete course")
		return
	}
	if !existed {
		respondError(w, http.StatusNotFound, "course not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// Active handles GET /courses/active: the course a mark would go to right
// now.
func (h *CoursesHandler) Active(w http.ResponseWriter, r *http.Request) {
	course, err := h.resolver.Resolve(r.Context(), time.Now(), r.URL.Query().Get("course"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve schedule")
		return
	}
	if course == nil {
		respondJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"active": true,
		"course": courseResponse(*course),
	})
}

// Overlaps handles GET /courses/overlaps: pairs of active courses whose
// schedules collide.
func (h *CoursesHandler) Overlaps(w http.ResponseWriter, r *http.Request) {
	overlaps, err := h.resolver.DetectOverlaps(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to detect overlaps")
		return
	}

	type overlapResponse struct {
		CourseA string `json:"course_a"`
		CourseB string `json:"course_b"`
		Day     string `json:"day"`
	}
	resp := make([]overlapResponse, 0, len(overlaps))
	for _, o := range overlaps {
		resp = append(resp, overlapResponse{
			CourseA: o.A.Code,
			CourseB: o.B.Code,
			Day:     o.Day.String(),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
