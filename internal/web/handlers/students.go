package handlers

import (
	"errors"
	"image"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

// StudentsHandler handles the student roster and face enrollment.
type StudentsHandler struct {
	store      database.Store
	enroller   *identity.Enroller
	identities identity.Store
	captureDir string
}

func NewStudentsHandler(store database.Store, enroller *identity.Enroller, identities identity.Store, captureDir string) *StudentsHandler {
	return &StudentsHandler{
		store:      store,
		enroller:   enroller,
		identities: identities,
		captureDir: captureDir,
	}
}

// StudentRequest is the create-student payload.
type StudentRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// StudentResponse is a roster entry plus its enrollment status in the face
// database.
type StudentResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	FaceSamples int       `json:"face_samples"`
}

func (h *StudentsHandler) toResponse(r *http.Request, s database.Student) StudentResponse {
	resp := StudentResponse{
		ID:        s.ID,
		Name:      s.Name,
		Email:     s.Email,
		Phone:     s.Phone,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
	}
	if ident, err := h.identities.Get(r.Context(), s.ID); err == nil && ident != nil {
		resp.FaceSamples = len(ident.Samples)
	}
	return resp
}

// Create handles POST /students.
func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ID == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "id and name are required")
		return
	}

	student := database.Student{
		ID:     req.ID,
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Active: true,
	}
	if err := h.store.CreateStudent(r.Context(), student); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			respondError(w, http.StatusConflict, "student already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create student")
		return
	}
	respondJSON(w, http.StatusCreated, h.toResponse(r, student))
}

// List handles GET /students with an optional ?q= name search.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		students []database.Student
		err      error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		students, err = h.store.SearchStudents(r.Context(), q)
	} else {
		students, err = h.store.ListStudents(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	resp := make([]StudentResponse, 0, len(students))
	for _, s := range students {
		resp = append(resp, h.toResponse(r, s))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get handles GET /students/{id}.
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	student, err := h.store.GetStudent(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}
	respondJSON(w, http.StatusOK, h.toResponse(r, *student))
}

// Delete handles DELETE /students/{id}: removes the roster entry and any
// enrolled face samples.
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existed, err := h.store.DeleteStudent(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete student")
		return
	}
	if !existed {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}
	if _, err := h.enroller.Remove(r.Context(), id); err != nil {
		log.Printf("delete student %s: face samples not removed: %v", sanitizeForLog(id), err)
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// EnrollFace handles POST /students/{id}/face: a multipart photo upload
// that appends face samples for the student.
func (h *StudentsHandler) EnrollFace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	student, err := h.store.GetStudent(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	img, err := readPhotoUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	imagePath := h.saveEnrollmentImage(id, img)
	ident, err := h.enroller.Enroll(r.Context(), id, img, imagePath)
	if err != nil {
		if errors.Is(err, identity.ErrEnrollmentFailed) {
			respondError(w, http.StatusUnprocessableEntity, "no face could be embedded from the photo")
			return
		}
		respondError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":           ident.ID,
		"face_samples": len(ident.Samples),
	})
}

// saveEnrollmentImage keeps the uploaded photo next to the captures so the
// identity record can reference it. Best effort only.
func (h *StudentsHandler) saveEnrollmentImage(id string, img image.Image) string {
	if h.captureDir == "" {
		return ""
	}
	if err := os.MkdirAll(h.captureDir, 0o755); err != nil {
		log.Printf("enroll %s: capture dir: %v", sanitizeForLog(id), err)
		return ""
	}
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		log.Printf("enroll %s: encode image: %v", sanitizeForLog(id), err)
		return ""
	}
	path := filepath.Join(h.captureDir, "enroll-"+filepath.Base(id)+".jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("enroll %s: save image: %v", sanitizeForLog(id), err)
		return ""
	}
	return path
}
