package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/session"
)

// ControllerFactory builds a fresh recognition controller pinned to an
// optional course. Each stream or one-shot request gets its own controller
// because the dedup state is single-owner.
type ControllerFactory func(courseID string) (*session.Controller, error)

// AttendanceHandler exposes recorded marks and a one-shot photo check-in.
type AttendanceHandler struct {
	store      database.Store
	controller ControllerFactory
}

func NewAttendanceHandler(store database.Store, controller ControllerFactory) *AttendanceHandler {
	return &AttendanceHandler{store: store, controller: controller}
}

type MarkResponse struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	CourseID   string    `json:"course_id"`
	Day        string    `json:"day"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
	ImagePath  string    `json:"image_path,omitempty"`
}

func markFilter(r *http.Request) database.MarkFilter {
	q := r.URL.Query()
	return database.MarkFilter{
		StudentID: q.Get("student"),
		CourseID:  q.Get("course"),
		Day:       q.Get("day"),
	}
}

// List handles GET /attendance with optional student/course/day filters.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	marks, err := h.store.ListMarks(r.Context(), markFilter(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list marks")
		return
	}

	resp := make([]MarkResponse, 0, len(marks))
	for _, m := range marks {
		resp = append(resp, MarkResponse{
			ID:         m.ID,
			StudentID:  m.StudentID,
			CourseID:   m.CourseID,
			Day:        m.Day,
			Timestamp:  m.Timestamp,
			Confidence: m.Confidence,
			ImagePath:  m.ImagePath,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// ExportCSV handles GET /attendance/export: the same filters as List, as a
// CSV download.
func (h *AttendanceHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	marks, err := h.store.ListMarks(r.Context(), markFilter(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list marks")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=attendance-%s.csv", time.Now().Format("2006-01-02")))

	writer := csv.NewWriter(w)
	writer.Write([]string{"student_id", "student_name", "course_id", "day", "time", "confidence"})
	for _, m := range marks {
		name := ""
		if student, err := h.store.GetStudent(r.Context(), m.StudentID); err == nil && student != nil {
			name = student.Name
		}
		writer.Write([]string{
			m.StudentID,
			name,
			m.CourseID,
			m.Day,
			m.Timestamp.Format("15:04:05"),
			strconv.FormatFloat(m.Confidence, 'f', 3, 64),
		})
	}
	writer.Flush()
}

// MarkPhoto handles POST /attendance/mark: runs the full recognition
// pipeline once over an uploaded photo, as if it were a single stream
// frame. ?course= pins the course the same way a stream would.
func (h *AttendanceHandler) MarkPhoto(w http.ResponseWriter, r *http.Request) {
	img, err := readPhotoUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	controller, err := h.controller(r.URL.Query().Get("course"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to start recognition")
		return
	}

	result, err := controller.ProcessFrame(r.Context(), img)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "recognition failed")
		return
	}

	type faceResponse struct {
		Outcome    string  `json:"outcome"`
		StudentID  string  `json:"student_id,omitempty"`
		Confidence float64 `json:"confidence,omitempty"`
	}
	faces := make([]faceResponse, 0, len(result.Faces))
	for _, face := range result.Faces {
		faces = append(faces, faceResponse{
			Outcome:    face.Outcome.String(),
			StudentID:  face.IdentityID,
			Confidence: face.Confidence,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"faces": faces})
}
