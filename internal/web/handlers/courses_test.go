package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func coursesRouter(env *testEnv) *chi.Mux {
	coursesHandler := NewCoursesHandler(env.store, env.resolver)
	enrollmentsHandler := NewEnrollmentsHandler(env.store)
	r := chi.NewRouter()
	r.Get("/courses", coursesHandler.List)
	r.Post("/courses", coursesHandler.Create)
	r.Get("/courses/overlaps", coursesHandler.Overlaps)
	r.Get("/courses/{id}", coursesHandler.Get)
	r.Put("/courses/{id}", coursesHandler.Update)
	r.Delete("/courses/{id}", coursesHandler.Delete)
	r.Get("/courses/{id}/enrollments", enrollmentsHandler.List)
	r.Post("/courses/{id}/enrollments", enrollmentsHandler.Create)
	r.Delete("/courses/{id}/enrollments/{studentId}", enrollmentsHandler.Delete)
	return r
}

func TestCoursesCreateRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	router := coursesRouter(env)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/courses", CourseRequest{
		Code: "CS101", Name: "Intro to CS",
		StartTime: "06:00", EndTime: "08:00", Days: "Mon,Wed,Fri",
	}))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", recorder.Code, recorder.Body.String())
	}

	var created CourseResponse
	decodeBody(t, recorder, &created)
	if created.ID == "" {
		t.Fatal("expected generated course id")
	}
	if created.StartTime != "06:00" || created.EndTime != "08:00" || created.Days != "Mon,Wed,Fri" {
		t.Errorf("schedule not round tripped: %+v", created)
	}
	if !created.Active {
		t.Error("new course should default to active")
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/courses/"+created.ID, nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("get status = %d", recorder.Code)
	}
}

func TestCoursesCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	router := coursesRouter(env)

	tests := []struct {
		name string
		req  CourseRequest
	}{
		{"missing code", CourseRequest{Name: "x", StartTime: "06:00", EndTime: "08:00", Days: "Mon"}},
		{"bad clock", CourseRequest{Code: "C", Name: "x", StartTime: "6am", EndTime: "08:00", Days: "Mon"}},
		{"inverted window", CourseRequest{Code: "C", Name: "x", StartTime: "09:00", EndTime: "08:00", Days: "Mon"}},
		{"bad weekday", CourseRequest{Code: "C", Name: "x", StartTime: "06:00", EndTime: "08:00", Days: "Funday"}},
		{"no days", CourseRequest{Code: "C", Name: "x", StartTime: "06:00", EndTime: "08:00", Days: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/courses", tt.req))
			if recorder.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", recorder.Code)
			}
		})
	}
}

func TestCoursesOverlaps(t *testing.T) {
	env := newTestEnv(t)
	env.seedRoster(t)
	router := coursesRouter(env)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/courses", CourseRequest{
		Code: "ZZ999", Name: "Clash",
		StartTime: "07:00", EndTime: "09:00", Days: "Mon",
	}))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create status = %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/courses/overlaps", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("overlaps status = %d", recorder.Code)
	}
	var overlaps []map[string]string
	decodeBody(t, recorder, &overlaps)
	if len(overlaps) != 1 {
		t.Fatalf("expected 1 overlap, got %d", len(overlaps))
	}
}

func TestEnrollmentsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedRoster(t)
	router := coursesRouter(env)

	// S001 is already enrolled by the seed; a second enroll conflicts.
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/courses/c1/enrollments",
		map[string]string{"student_id": "S001"}))
	if recorder.Code != http.StatusConflict {
		t.Errorf("re-enroll status = %d, want 409", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/courses/c1/enrollments", nil))
	var list []map[string]string
	decodeBody(t, recorder, &list)
	if len(list) != 1 || list[0]["student_id"] != "S001" || list[0]["name"] != "Jiří Novák" {
		t.Errorf("unexpected enrollments: %+v", list)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodDelete, "/courses/c1/enrollments/S001", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("delete status = %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodDelete, "/courses/c1/enrollments/S001", nil))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", recorder.Code)
	}
}

func TestEnrollUnknownStudent(t *testing.T) {
	env := newTestEnv(t)
	env.seedRoster(t)
	router := coursesRouter(env)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/courses/c1/enrollments",
		map[string]string{"student_id": "S999"}))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", recorder.Code)
	}
}
