package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// EnrollmentsHandler links students to courses.
type EnrollmentsHandler struct {
	store database.Store
}

func NewEnrollmentsHandler(store database.Store) *EnrollmentsHandler {
	return &EnrollmentsHandler{store: store}
}

type enrollmentRequest struct {
	StudentID string `json:"student_id"`
}

// Create handles POST /courses/{id}/enrollments.
func (h *EnrollmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "id")

	var req enrollmentRequest
	if err := decodeJSON(r, &req); err != nil || req.StudentID == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	course, err := h.store.GetCourse(r.Context(), courseID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load course")
		return
	}
	if course == nil {
		respondError(w, http.StatusNotFound, "course not found")
		return
	}
	student, err := h.store.GetStudent(r.Context(), req.StudentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	if err := h.store.CreateEnrollment(r.Context(), req.StudentID, courseID); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			respondError(w, http.StatusConflict, "student already enrolled")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to enroll student")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"student_id": req.StudentID,
		"course_id":  courseID,
	})
}

// List handles GET /courses/{id}/enrollments.
func (h *EnrollmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "id")
	enrollments, err := h.store.ListEnrollments(r.Context(), courseID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list enrollments")
		return
	}

	type entry struct {
		StudentID string `json:"student_id"`
		Name      string `json:"name,omitempty"`
	}
	resp := make([]entry, 0, len(enrollments))
	for _, e := range enrollments {
		item := entry{StudentID: e.StudentID}
		if student, err := h.store.GetStudent(r.Context(), e.StudentID); err == nil && student != nil {
			item.Name = student.Name
		}
		resp = append(resp, item)
	}
	respondJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /courses/{id}/enrollments/{studentId}.
func (h *EnrollmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "id")
	studentID := chi.URLParam(r, "studentId")

	existed, err := h.store.DeleteEnrollment(r.Context(), studentID, courseID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete enrollment")
		return
	}
	if !existed {
		respondError(w, http.StatusNotFound, "enrollment not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"student_id": studentID,
		"course_id":  courseID,
	})
}
