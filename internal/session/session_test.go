package session

import (
	"context"
	"image"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/recognize"
	"github.com/kozaktomas/face-attendance/internal/schedule"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// Monday 2026-08-24, inside the seeded course window.
var mondayMorning = time.Date(2026, 8, 24, 7, 0, 0, 0, time.Local)

// clock is an adjustable time source for the dedup window.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store    *database.Memory
	faces    *identity.MemoryStore
	detector *vision.FakeDetector
	embedder *vision.FakeEmbedder
	clock    *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := database.NewMemory()
	if err := store.CreateStudent(ctx, database.Student{ID: "S001", Name: "Jiří Novák", Active: true}); err != nil {
		t.Fatalf("seed student: %v", err)
	}
	if err := store.CreateCourse(ctx, database.Course{
		ID: "c1", Code: "CS101", Name: "Intro to CS",
		StartMinute: 360, EndMinute: 480,
		Days:   []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		Active: true,
	}); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	if err := store.CreateEnrollment(ctx, "S001", "c1"); err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}

	faces := identity.NewMemoryStore()
	faces.Put(ctx, identity.Identity{ID: "S001", Samples: [][]float32{{1, 0}}})

	return &fixture{
		store:    store,
		faces:    faces,
		detector: &vision.FakeDetector{Batches: [][]vision.Box{{{X1: 10, Y1: 10, X2: 60, Y2: 60, Score: 0.9}}}},
		embedder: &vision.FakeEmbedder{Fixed: []float32{1, 0}},
		clock:    &clock{t: mondayMorning},
	}
}

func (f *fixture) controller(t *testing.T, mutate func(*Config)) *Controller {
	t.Helper()
	cfg := Config{
		Detector:    f.detector,
		Embedder:    f.embedder,
		Engine:      recognize.NewEngine(identity.CandidateSource{Store: f.faces}, 0.6),
		Resolver:    schedule.NewResolver(f.store),
		Store:       f.store,
		SampleEvery: 1,
		Logger:      log.New(io.Discard, "", 0),
		Now:         f.clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	controller, err := NewController(cfg)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	return controller
}

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 640, 480))
}

func singleOutcome(t *testing.T, result *FrameResult) FaceOutcome {
	t.Helper()
	if len(result.Faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(result.Faces))
	}
	return result.Faces[0]
}

func TestMarkedNowHappyPath(t *testing.T) {
	f := newFixture(t)
	controller := f.controller(t, nil)
	ctx := context.Background()

	result, err := controller.ProcessFrame(ctx, testFrame())
	if err != nil {
		t.Fatalf("process frame: %v", err)
	}
	face := singleOutcome(t, result)
	if face.Outcome != MarkedNow {
		t.Fatalf("outcome = %v, want MarkedNow", face.Outcome)
	}
	if face.IdentityID != "S001" {
		t.Errorf("identity = %q", face.IdentityID)
	}
	if face.Confidence < 0.99 {
		t.Errorf("confidence = %f, want ~1", face.Confidence)
	}

	marks, _ := f.store.ListMarks(ctx, database.MarkFilter{StudentID: "S001"})
	if len(marks) != 1 {
		t.Fatalf("expected 1 mark, got %d", len(marks))
	}
	if marks[0].CourseID != "c1" || marks[0].Day != "2026-08-24" {
		t.Errorf("unexpected mark: %+v", marks[0])
	}
	if result.Annotated == nil {
		t.Error("expected annotated frame")
	}
}

func TestDedupWindowSuppresses(t *testing.T) {
	f := newFixture(t)
	controller := f.controller(t, nil)
	ctx := context.Background()

	result, _ := controller.ProcessFrame(ctx, testFrame())
	if got := singleOutcome(t, result).Outcome; got != MarkedNow {
		t.Fatalf("first frame outcome = %v", got)
	}

	f.clock.Advance(10 * time.Second)
	result, _ = controller.ProcessFrame(ctx, testFrame())
	if got := singleOutcome(t, result).Outcome; got != RecentSuppressed {
		t.Fatalf("within window outcome = %v, want RecentSuppressed", got)
	}

	f.clock.Advance(25 * time.Second) // 35s past the mark
	result, _ = controller.ProcessFrame(ctx, testFrame())
	if got := singleOutcome(t, result).Outcome; got != AlreadyMarkedToday {
		t.Fatalf("past window outcome = %v, want AlreadyMarkedToday", got)
	}
}

// Suppression must not refresh the last-seen timestamp: a face staying in
// view re-evaluates one dedup window after its last real evaluation.
func TestSuppressionDoesNotRefreshWindow(t *testing.T) {
	f := newFixture(t)
	controller := f.controller(t, nil)
	ctx := context.Background()

	controller.ProcessFrame(ctx, testFrame()) // t=0, MarkedNow

	f.clock.Advance(20 * time.Second)
	result, _ := controller.ProcessFrame(ctx, testFrame()) // t=20, suppressed
	if got := singleOutcome(t, result).Outcome; got != RecentSuppressed {
		t.Fatalf("t=20 outcome = %v", got)
	}

	// t=35: 15s after the suppressed sighting but 35s after the real
	// evaluation, so the window has expired.
	f.clock.Advance(15 * time.Second)
	result, _ = controller.ProcessFrame(ctx, testFrame())
	if got := singleOutcome(t, result).Outcome; got == RecentSuppressed {
		t.Fatal("suppressed sighting refreshed the dedup window")
	}
}

func TestNoActiveSessionUpdatesLastSeen(t *testing.T) {
	f := newFixture(t)
	f.clock.t = time.Date(2026, 8, 23, 7, 0, 0, 0, time.Local) // Sunday
	controller := f.controller(t, nil)
	ctx := context.Background()

	result, _ := controller.ProcessFrame(ctx, testFrame())
	if got := singleOutcome(t, result).Outcome; got != NoActiveSession {
		t.Fatalf("outcome = %v, want NoActiveSession", got)
	}

	// The failed attempt still started a dedup window.
	f.clock.Advance(5 * time.Second)
	result, _ = controller.ProcessFrame(ctx, testFrame())
	if got := singleOutcome(t, result).Outcome; got != RecentSuppressed {
		t.Fatalf("outcome = %v, want RecentSuppressed", got)
	}
}

func TestNotEnrolledNeverMarks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.DeleteEnrollment(ctx, "S001", "c1")
	controller := f.controller(t, nil)

	result, _ := controller.ProcessFrame(ctx, testFrame())
	if got := singleOutcome(t, result).Outcome; got != NotEnrolled {
		t.Fatalf("outcome = %v, want NotEnrolled", got)
	}

	marks, _ := f.store.ListMarks(ctx, database.MarkFilter{StudentID: "S001"})
	if len(marks) != 0 {
		t.Errorf("unenrolled student got %d marks", len(marks))
	}
}

func TestExplicitCourseOverridesSchedule(t *testing.T) {
	f := newFixture(t)
	f.clock.t = time.Date(2026, 8, 23, 3, 0, 0, 0, time.Local) // Sunday night
	controller := f.controller(t, func(cfg *Config) {
		cfg.CourseID = "c1"
	})

	result, _ := controller.ProcessFrame(context.Background(), testFrame())
	if got := singleOutcome(t, result).Outcome; got != MarkedNow {
		t.Fatalf("outcome = %v, want MarkedNow with explicit course", got)
	}
}

func TestEmbedderFailureIsolatedPerFace(t *testing.T) {
	f := newFixture(t)
	f.detector.Batches = [][]vision.Box{{
		{X1: 10, Y1: 10, X2: 60, Y2: 60, Score: 0.9},
		{X1: 100, Y1: 10, X2: 160, Y2: 60, Score: 0.8},
	}}
	f.embedder.Err = context.DeadlineExceeded
	controller := f.controller(t, nil)

	result, err := controller.ProcessFrame(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("frame must survive embedder failure: %v", err)
	}
	if len(result.Faces) != 2 {
		t.Fatalf("expected both faces in result, got %d", len(result.Faces))
	}
	for i, face := range result.Faces {
		if face.Outcome != Unknown {
			t.Errorf("face %d outcome = %v, want Unknown", i, face.Outcome)
		}
	}
}

func TestDetectorFailureKeepsLoopAlive(t *testing.T) {
	f := newFixture(t)
	f.detector.Err = context.DeadlineExceeded
	controller := f.controller(t, nil)

	result, err := controller.ProcessFrame(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("frame must survive detector failure: %v", err)
	}
	if len(result.Faces) != 0 {
		t.Errorf("expected no faces, got %d", len(result.Faces))
	}
	if result.Annotated == nil {
		t.Error("expected passthrough frame")
	}
}

func TestDegenerateCropLabelsUnknown(t *testing.T) {
	f := newFixture(t)
	f.detector.Batches = [][]vision.Box{{{X1: 50, Y1: 50, X2: 50, Y2: 80, Score: 0.9}}}
	controller := f.controller(t, nil)

	result, _ := controller.ProcessFrame(context.Background(), testFrame())
	face := singleOutcome(t, result)
	if face.Outcome != Unknown || face.IdentityID != "" {
		t.Errorf("zero-area crop should stay Unknown, got %v/%q", face.Outcome, face.IdentityID)
	}
	if f.embedder.Calls() != 0 {
		t.Error("degenerate crop must not reach the embedder")
	}
}

func TestSamplingRunsRecognitionEveryNth(t *testing.T) {
	f := newFixture(t)
	controller := f.controller(t, func(cfg *Config) {
		cfg.SampleEvery = 3
	})
	ctx := context.Background()

	var recognized []bool
	for i := 0; i < 6; i++ {
		result, err := controller.ProcessFrame(ctx, testFrame())
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		recognized = append(recognized, result.Recognized)
	}

	want := []bool{true, false, false, true, false, false}
	for i := range want {
		if recognized[i] != want[i] {
			t.Errorf("frame %d recognized = %v, want %v", i, recognized[i], want[i])
		}
	}
	// Detection still runs on every frame.
	if f.detector.Calls() != 6 {
		t.Errorf("detector calls = %d, want 6", f.detector.Calls())
	}
}

// conflictStore fakes a race: the existence check sees nothing, but the
// insert loses to a concurrent writer.
type conflictStore struct {
	*database.Memory
}

func (s *conflictStore) HasMarkForDay(ctx context.Context, studentID, courseID, day string) (bool, error) {
	return false, nil
}

func (s *conflictStore) CreateMark(ctx context.Context, m database.AttendanceMark) error {
	return database.ErrMarkConflict
}

func TestMarkConflictBecomesAlreadyMarked(t *testing.T) {
	f := newFixture(t)
	controller := f.controller(t, func(cfg *Config) {
		cfg.Store = &conflictStore{Memory: f.store}
	})

	result, err := controller.ProcessFrame(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("conflict must not fail the frame: %v", err)
	}
	if got := singleOutcome(t, result).Outcome; got != AlreadyMarkedToday {
		t.Fatalf("outcome = %v, want AlreadyMarkedToday", got)
	}
}

// Two streams watching the same person must produce exactly one mark.
func TestDailyUniquenessAcrossControllers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const streams = 4
	controllers := make([]*Controller, streams)
	for i := range controllers {
		controllers[i] = f.controller(t, nil)
	}

	var wg sync.WaitGroup
	for _, controller := range controllers {
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if _, err := c.ProcessFrame(ctx, testFrame()); err != nil {
					t.Errorf("process frame: %v", err)
					return
				}
			}
		}(controller)
	}
	wg.Wait()

	marks, _ := f.store.ListMarks(ctx, database.MarkFilter{StudentID: "S001", CourseID: "c1"})
	if len(marks) != 1 {
		t.Fatalf("expected exactly 1 mark across %d streams, got %d", streams, len(marks))
	}
}

func TestNoMatchLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.embedder.Fixed = []float32{0, 1} // orthogonal to the enrolled sample
	controller := f.controller(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, _ := controller.ProcessFrame(ctx, testFrame())
		if got := singleOutcome(t, result).Outcome; got != Unknown {
			t.Fatalf("frame %d outcome = %v, want Unknown", i, got)
		}
	}
	marks, _ := f.store.ListMarks(ctx, database.MarkFilter{})
	if len(marks) != 0 {
		t.Errorf("unknown faces produced %d marks", len(marks))
	}
}
