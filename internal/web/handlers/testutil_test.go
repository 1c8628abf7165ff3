package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/recognize"
	"github.com/kozaktomas/face-attendance/internal/schedule"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// testEnv bundles the collaborators handlers need, backed by in-memory
// stores and deterministic vision fakes.
type testEnv struct {
	store      *database.Memory
	identities *identity.MemoryStore
	enroller   *identity.Enroller
	engine     *recognize.Engine
	index      *recognize.Index
	resolver   *schedule.Resolver
	detector   *vision.FakeDetector
	embedder   *vision.FakeEmbedder
	now        time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	identities := identity.NewMemoryStore()
	detector := &vision.FakeDetector{
		Batches: [][]vision.Box{{{X1: 10, Y1: 10, X2: 60, Y2: 60, Score: 0.9}}},
	}
	embedder := &vision.FakeEmbedder{Fixed: []float32{1, 0}}
	store := database.NewMemory()

	return &testEnv{
		store:      store,
		identities: identities,
		enroller:   identity.NewEnroller(identities, embedder),
		engine:     recognize.NewEngine(identity.CandidateSource{Store: identities}, 0.6),
		index:      recognize.NewIndex(),
		resolver:   schedule.NewResolver(store),
		detector:   detector,
		embedder:   embedder,
		now:        time.Date(2026, 8, 24, 7, 0, 0, 0, time.Local), // Monday 07:00
	}
}

// controllerFactory mirrors the server wiring with the test clock.
func (env *testEnv) controllerFactory(courseID string) (*session.Controller, error) {
	return session.NewController(session.Config{
		Detector:    env.detector,
		Embedder:    env.embedder,
		Engine:      env.engine,
		Resolver:    env.resolver,
		Store:       env.store,
		CourseID:    courseID,
		SampleEvery: 1,
		Logger:      log.New(io.Discard, "", 0),
		Now:         func() time.Time { return env.now },
	})
}

// seedRoster creates one student enrolled in one in-session course.
func (env *testEnv) seedRoster(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := env.store.CreateStudent(ctx, database.Student{ID: "S001", Name: "Jiří Novák", Active: true}); err != nil {
		t.Fatalf("seed student: %v", err)
	}
	if err := env.store.CreateCourse(ctx, database.Course{
		ID: "c1", Code: "CS101", Name: "Intro to CS",
		StartMinute: 360, EndMinute: 480,
		Days:   []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		Active: true,
	}); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	if err := env.store.CreateEnrollment(ctx, "S001", "c1"); err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}
	env.identities.Put(ctx, identity.Identity{ID: "S001", Samples: [][]float32{{1, 0}}})
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// photoRequest builds a multipart upload with a decodable JPEG under the
// "photo" field.
func photoRequest(t *testing.T, target string) *http.Request {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		t.Fatalf("encode test photo: %v", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("photo", "face.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(data)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// decodeBody unmarshals a recorded JSON response.
func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
}
